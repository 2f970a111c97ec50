package codeboard

import (
	"context"
	"errors"
)

// ExternalProfile is the verified profile delivered by the identity provider
// after a successful OAuth handshake. ExternalID must be the provider's
// stable unique identifier.
type ExternalProfile struct {
	ExternalID  string
	DisplayName string
	AvatarURL   string
	ProfileURL  string
}

// Bridge maps a verified external profile onto an internal account, creating
// one the first time an external ID is seen.
type Bridge struct {
	Accounts AccountStore
}

// Resolve returns the account for a profile, creating it if absent.
//
// Resolve is idempotent under concurrent calls for the same external ID: when
// two first-time logins race, the store's uniqueness constraint picks one
// winner and the loser re-reads and returns the winner's record instead of
// surfacing the conflict.
func (b *Bridge) Resolve(ctx context.Context, profile ExternalProfile) (*Account, error) {
	account, err := b.Accounts.FindByExternalID(ctx, profile.ExternalID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	account, err = b.Accounts.Create(ctx, profile)
	if errors.Is(err, ErrDuplicateAccount) {
		// Lost the first-sight race; the winner's record is authoritative.
		return b.Accounts.FindByExternalID(ctx, profile.ExternalID)
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}
