package codeboard

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// TokenHasher produces the at-rest digest for refresh tokens. The raw token
// never touches storage; only the digest does.
//
// Refresh tokens are signed JWTs well past bcrypt's 72 byte input limit, so
// the token is reduced with SHA-256 first and the digest is what bcrypt
// processes. bcrypt salts per call, so two hashes of the same token differ
// while both verify.
type TokenHasher struct {
	// Cost is the bcrypt work factor. Zero means bcrypt.DefaultCost; tests
	// use bcrypt.MinCost.
	Cost int
}

// Hash returns the storable digest for a token.
func (h TokenHasher) Hash(token string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	sum := sha256.Sum256([]byte(token))
	digest, err := bcrypt.GenerateFromPassword(sum[:], cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether token hashes to digest. It fails closed: a malformed
// digest verifies false rather than erroring. bcrypt's comparison does not
// leak match position through timing.
func (h TokenHasher) Verify(token, digest string) bool {
	sum := sha256.Sum256([]byte(token))
	return bcrypt.CompareHashAndPassword([]byte(digest), sum[:]) == nil
}
