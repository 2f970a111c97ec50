package codeboard

import "errors"

// Session protocol errors. Handlers map these onto HTTP statuses; callers
// should match with errors.Is since store and issuer errors may be wrapped.
var (
	// ErrMissingToken indicates no credential was presented at all.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken indicates a token that failed signature or structural
	// verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates a token whose signature is fine but whose
	// lifetime has elapsed.
	ErrExpiredToken = errors.New("token expired")

	// ErrTokenMismatch indicates a refresh token that verified
	// cryptographically but does not hash to the stored digest. This is the
	// replay/staleness signal: the token was already rotated out or the
	// session was revoked.
	ErrTokenMismatch = errors.New("token mismatch")

	// ErrAccountNotFound indicates the account referenced by a token or
	// lookup does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateAccount indicates a create raced with another create for
	// the same external ID. The identity bridge recovers from this by
	// re-reading the winner's record.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrStorageUnavailable indicates the persistence layer failed. It is
	// never retried inside the session protocol.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
