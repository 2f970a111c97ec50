package codeboard

import (
	"context"
	"errors"
	"log/slog"
)

// TokenPair is the result of a successful login or refresh. The access token
// goes back to the caller in the response body; the refresh token travels
// only inside the protected cookie.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Sessions is the session protocol: it owns every transition between the
// anonymous, authenticated and revoked states of an account and enforces the
// rotation and revocation rules. All refresh-hash writes go through here.
type Sessions struct {
	Accounts AccountStore
	Issuer   *Issuer
	Hasher   TokenHasher

	Logger *slog.Logger
}

func (s *Sessions) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Login resolves the external profile to an account, mints a fresh token
// pair and stores the refresh token's hash, replacing whatever session was
// active before. The account always ends up authenticated.
func (s *Sessions) Login(ctx context.Context, profile ExternalProfile) (*Account, *TokenPair, error) {
	bridge := &Bridge{Accounts: s.Accounts}
	account, err := bridge.Resolve(ctx, profile)
	if err != nil {
		return nil, nil, err
	}

	pair, digest, err := s.mintPair(account)
	if err != nil {
		return nil, nil, err
	}

	// The hash write is the only durable side effect; if it fails the tokens
	// are discarded and the previous session stays intact.
	if err := s.Accounts.SetRefreshHash(ctx, account.ID, &digest); err != nil {
		return nil, nil, err
	}

	s.logger().Info("session started", "account_id", account.ID, "display_name", account.DisplayName)
	return account, pair, nil
}

// Refresh validates a presented refresh token, rotates the stored hash and
// returns a new token pair. The old token is invalid the instant the rotation
// lands; presenting it again fails with ErrTokenMismatch.
//
// Revocation policy: an explicit mismatch (valid signature, resolvable
// account, wrong hash) signals likely token theft and clears the stored hash
// defensively. Ambient failures such as an expired or malformed token leave
// the stored session untouched.
func (s *Sessions) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.Issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	account, err := s.Accounts.FindByID(ctx, claims.AccountID())
	if err != nil {
		return nil, err
	}

	if account.RefreshTokenHash == nil {
		// Revoked or never logged in; nothing to rotate and nothing to clear.
		return nil, ErrTokenMismatch
	}

	observed := *account.RefreshTokenHash
	if !s.Hasher.Verify(refreshToken, observed) {
		// Valid signature but wrong hash: the token was rotated out or
		// stolen. Revoke the session, but only if the hash is still the one
		// we just read so a concurrent legitimate rotation is not clobbered.
		if err := s.Accounts.RotateRefreshHash(ctx, account.ID, observed, nil); err != nil && !errors.Is(err, ErrTokenMismatch) {
			s.logger().Warn("failed to revoke session after token mismatch", "account_id", account.ID, "err", err)
		}
		s.logger().Warn("refresh token replay detected", "account_id", account.ID)
		return nil, ErrTokenMismatch
	}

	pair, digest, err := s.mintPair(account)
	if err != nil {
		return nil, err
	}

	// Compare-and-swap on the stored digest: when two refresh calls race on
	// the same token, exactly one rotation lands and the other observes the
	// mismatch.
	if err := s.Accounts.RotateRefreshHash(ctx, account.ID, observed, &digest); err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout clears the stored refresh hash for the account named by the token.
// It is idempotent: an absent, expired or otherwise unusable token still
// counts as a successful logout since the caller ends up signed out either
// way. Only a storage failure is reported.
func (s *Sessions) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := s.Issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}

	account, err := s.Accounts.FindByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}

	if err := s.Accounts.SetRefreshHash(ctx, account.ID, nil); err != nil {
		return err
	}
	s.logger().Info("session revoked", "account_id", account.ID)
	return nil
}

// Profile returns the account behind a valid access token. It never touches
// refresh state: access tokens carry no storage-side revocation check, so a
// revoked account keeps read access until the access token's TTL elapses.
func (s *Sessions) Profile(ctx context.Context, accessToken string) (*Account, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.Issuer.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}
	return s.Accounts.FindByID(ctx, claims.AccountID())
}

func (s *Sessions) mintPair(account *Account) (*TokenPair, string, error) {
	access, err := s.Issuer.IssueAccess(account.ID, account.DisplayName)
	if err != nil {
		return nil, "", err
	}
	refresh, err := s.Issuer.IssueRefresh(account.ID, account.DisplayName)
	if err != nil {
		return nil, "", err
	}
	digest, err := s.Hasher.Hash(refresh)
	if err != nil {
		return nil, "", err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, digest, nil
}
