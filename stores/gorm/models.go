package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	cb "github.com/codeboard/codeboard"
)

// JSONMap is a helper type for storing JSON maps in GORM
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// AccountModel is the GORM model for accounts. The unique index on
// ExternalID is what resolves concurrent first-sight creates to one winner.
type AccountModel struct {
	ID               string    `gorm:"primaryKey;size:64"`
	ExternalID       string    `gorm:"uniqueIndex;size:128;not null"`
	DisplayName      string    `gorm:"size:255"`
	AvatarURL        string    `gorm:"size:512"`
	ProfileURL       string    `gorm:"size:512"`
	RefreshTokenHash *string   `gorm:"size:128"`
	Stats            JSONMap   `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *cb.Account {
	return &cb.Account{
		ID:               m.ID,
		ExternalID:       m.ExternalID,
		DisplayName:      m.DisplayName,
		AvatarURL:        m.AvatarURL,
		ProfileURL:       m.ProfileURL,
		RefreshTokenHash: m.RefreshTokenHash,
		Stats:            m.Stats,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func AccountToModel(a *cb.Account) *AccountModel {
	return &AccountModel{
		ID:               a.ID,
		ExternalID:       a.ExternalID,
		DisplayName:      a.DisplayName,
		AvatarURL:        a.AvatarURL,
		ProfileURL:       a.ProfileURL,
		RefreshTokenHash: a.RefreshTokenHash,
		Stats:            JSONMap(a.Stats),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}
