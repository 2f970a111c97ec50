// Package fs provides a file-backed AccountStore. Each account lives in its
// own JSON file, with a second index directory mapping external IDs to
// account IDs. Intended for development and tests; production deployments use
// stores/gorm.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeboard/codeboard"
)

// AccountStore stores accounts as JSON files under StoragePath. A single
// mutex serializes writes, which is what makes RotateRefreshHash an atomic
// compare-and-swap here.
type AccountStore struct {
	StoragePath string
	mu          sync.RWMutex
}

// NewAccountStore creates a file-based account store rooted at storagePath.
func NewAccountStore(storagePath string) *AccountStore {
	return &AccountStore{StoragePath: storagePath}
}

// accountModel is the on-disk shape. Separate from codeboard.Account so the
// refresh hash persists even though the API type hides it from JSON.
type accountModel struct {
	ID               string         `json:"id"`
	ExternalID       string         `json:"external_id"`
	DisplayName      string         `json:"display_name"`
	AvatarURL        string         `json:"avatar_url"`
	ProfileURL       string         `json:"profile_url"`
	RefreshTokenHash *string        `json:"refresh_token_hash"`
	Stats            map[string]any `json:"stats,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (m *accountModel) toAccount() *codeboard.Account {
	return &codeboard.Account{
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

type externalIndexEntry struct {
	AccountID string `json:"account_id"`
}

func (s *AccountStore) accountPath(id string) string {
	return filepath.Join(s.StoragePath, "accounts", id+".json")
}

// externalPath hashes the external ID so arbitrary provider identifiers make
// safe filenames.
func (s *AccountStore) externalPath(externalID string) string {
	sum := sha256.Sum256([]byte(externalID))
	return filepath.Join(s.StoragePath, "external", hex.EncodeToString(sum[:])+".json")
}

func (s *AccountStore) FindByExternalID(ctx context.Context, externalID string) (*codeboard.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry externalIndexEntry
	if err := s.readJSON(s.externalPath(externalID), &entry); err != nil {
		return nil, err
	}
	var model accountModel
	if err := s.readJSON(s.accountPath(entry.AccountID), &model); err != nil {
		return nil, err
	}
	return model.toAccount(), nil
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*codeboard.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var model accountModel
	if err := s.readJSON(s.accountPath(id), &model); err != nil {
		return nil, err
	}
	return model.toAccount(), nil
}

func (s *AccountStore) Create(ctx context.Context, profile codeboard.ExternalProfile) (*codeboard.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The index file doubles as the uniqueness constraint.
	if _, err := os.Stat(s.externalPath(profile.ExternalID)); err == nil {
		return nil, codeboard.ErrDuplicateAccount
	}

	now := time.Now().UTC()
	model := &accountModel{
		ID:          uuid.NewString(),
		ExternalID:  profile.ExternalID,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		ProfileURL:  profile.ProfileURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.writeJSON(s.accountPath(model.ID), model); err != nil {
		return nil, err
	}
	if err := s.writeJSON(s.externalPath(profile.ExternalID), externalIndexEntry{AccountID: model.ID}); err != nil {
		os.Remove(s.accountPath(model.ID))
		return nil, err
	}
	return model.toAccount(), nil
}

func (s *AccountStore) SetRefreshHash(ctx context.Context, accountID string, digest *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateAccount(accountID, func(model *accountModel) error {
		model.RefreshTokenHash = digest
		return nil
	})
}

func (s *AccountStore) RotateRefreshHash(ctx context.Context, accountID string, observed string, next *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateAccount(accountID, func(model *accountModel) error {
		if model.RefreshTokenHash == nil || *model.RefreshTokenHash != observed {
			return codeboard.ErrTokenMismatch
		}
		model.RefreshTokenHash = next
		return nil
	})
}

func (s *AccountStore) SaveStats(ctx context.Context, accountID string, stats map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateAccount(accountID, func(model *accountModel) error {
		model.Stats = stats
		return nil
	})
}

// updateAccount applies mutate to the stored record and persists the result.
// Caller must hold the write lock.
func (s *AccountStore) updateAccount(accountID string, mutate func(*accountModel) error) error {
	var model accountModel
	if err := s.readJSON(s.accountPath(accountID), &model); err != nil {
		return err
	}
	if err := mutate(&model); err != nil {
		return err
	}
	model.UpdatedAt = time.Now().UTC()
	return s.writeJSON(s.accountPath(accountID), &model)
}

func (s *AccountStore) readJSON(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return codeboard.ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", codeboard.ErrStorageUnavailable, err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("%w: %v", codeboard.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *AccountStore) writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", codeboard.ErrStorageUnavailable, err)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", codeboard.ErrStorageUnavailable, err)
	}
	if err := writeAtomicFile(path, data); err != nil {
		return fmt.Errorf("%w: %v", codeboard.ErrStorageUnavailable, err)
	}
	return nil
}

// writeAtomicFile writes data via a temp file and rename so readers never
// observe a partial record.
func writeAtomicFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
