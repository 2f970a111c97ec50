package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	cb "github.com/codeboard/codeboard"

	"github.com/google/uuid"
)

// AutoMigrate runs database migrations for all codeboard tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

// AccountStore implements cb.AccountStore using GORM. Open the database with
// TranslateError enabled so unique-constraint violations surface as
// gorm.ErrDuplicatedKey.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) FindByExternalID(ctx context.Context, externalID string) (*cb.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, "external_id = ?", externalID).Error; err != nil {
		return nil, s.classify(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*cb.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, s.classify(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) Create(ctx context.Context, profile cb.ExternalProfile) (*cb.Account, error) {
	now := time.Now().UTC()
	model := &AccountModel{
		ID:          uuid.NewString(),
		ExternalID:  profile.ExternalID,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		ProfileURL:  profile.ProfileURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, s.classify(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) SetRefreshHash(ctx context.Context, accountID string, digest *string) error {
	res := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ?", accountID).
		Update("refresh_token_hash", digest)
	if res.Error != nil {
		return s.classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return cb.ErrAccountNotFound
	}
	return nil
}

// RotateRefreshHash is the conditional update the whole rotation protocol
// hangs on: the hash only changes if it still equals the value observed at
// read time, in one statement, so concurrent rotations against the same
// account serialize in the database.
func (s *AccountStore) RotateRefreshHash(ctx context.Context, accountID string, observed string, next *string) error {
	res := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ? AND refresh_token_hash = ?", accountID, observed).
		Update("refresh_token_hash", next)
	if res.Error != nil {
		return s.classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return cb.ErrTokenMismatch
	}
	return nil
}

func (s *AccountStore) SaveStats(ctx context.Context, accountID string, stats map[string]any) error {
	res := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ?", accountID).
		Update("stats", JSONMap(stats))
	if res.Error != nil {
		return s.classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return cb.ErrAccountNotFound
	}
	return nil
}

// classify maps driver errors onto the protocol taxonomy.
func (s *AccountStore) classify(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return cb.ErrAccountNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return cb.ErrDuplicateAccount
	default:
		return fmt.Errorf("%w: %v", cb.ErrStorageUnavailable, err)
	}
}
