package codeboard

import (
	"context"
	"time"
)

// Account is the identity record for a user who has signed in through the
// external provider. ExternalID is the provider's stable identifier and never
// changes after creation.
//
// RefreshTokenHash holds the digest of the single currently-valid refresh
// token, or nil when no session is active. At most one refresh token is valid
// per account at any time: issuing a new one overwrites the hash and
// invalidates the prior token immediately. Only the session protocol mutates
// this field.
type Account struct {
	ID               string         `json:"id"`
	ExternalID       string         `json:"external_id"`
	DisplayName      string         `json:"display_name"`
	AvatarURL        string         `json:"avatar_url"`
	ProfileURL       string         `json:"profile_url"`
	RefreshTokenHash *string        `json:"-"`
	Stats            map[string]any `json:"stats,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// AccountStore persists accounts. Implementations hold no business policy;
// rotation and revocation rules live in Sessions.
//
// Lookup methods return ErrAccountNotFound for absent records and wrap
// infrastructure failures with ErrStorageUnavailable.
type AccountStore interface {
	// FindByExternalID looks up an account by the provider's identifier.
	FindByExternalID(ctx context.Context, externalID string) (*Account, error)

	// FindByID looks up an account by its internal ID.
	FindByID(ctx context.Context, id string) (*Account, error)

	// Create persists a new account populated from the provider profile.
	// The store assigns ID and timestamps. Returns ErrDuplicateAccount if an
	// account with the same external ID already exists, including when a
	// concurrent create wins the race.
	Create(ctx context.Context, profile ExternalProfile) (*Account, error)

	// SetRefreshHash unconditionally replaces the stored refresh token hash.
	// A nil digest clears the session. The update is atomic: a cancelled or
	// failed call leaves the previous value in place.
	SetRefreshHash(ctx context.Context, accountID string, digest *string) error

	// RotateRefreshHash replaces the stored hash only if it still equals
	// observed, the value loaded at the start of the refresh. A nil next
	// clears the session. Returns ErrTokenMismatch without modifying anything
	// when the stored value changed in between; concurrent rotations against
	// one account resolve to exactly one winner this way.
	RotateRefreshHash(ctx context.Context, accountID string, observed string, next *string) error

	// SaveStats replaces the stored stats snapshot for an account.
	SaveStats(ctx context.Context, accountID string, stats map[string]any) error
}
