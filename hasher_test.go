package codeboard_test

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	cb "github.com/codeboard/codeboard"
)

func TestHasherRoundTrip(t *testing.T) {
	hasher := cb.TokenHasher{Cost: bcrypt.MinCost}

	tests := []struct {
		name  string
		token string
	}{
		{"short token", "abc"},
		{"jwt sized token", strings.Repeat("eyJhbGciOiJIUzI1NiJ9.", 20)},
		{"empty token", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest, err := hasher.Hash(tt.token)
			if err != nil {
				t.Fatalf("Hash failed: %v", err)
			}
			if digest == tt.token {
				t.Error("digest must not equal the raw token")
			}
			if !hasher.Verify(tt.token, digest) {
				t.Error("token should verify against its own digest")
			}
			if hasher.Verify(tt.token+"x", digest) {
				t.Error("different token should not verify")
			}
		})
	}
}

func TestHasherSaltsPerCall(t *testing.T) {
	hasher := cb.TokenHasher{Cost: bcrypt.MinCost}

	d1, err := hasher.Hash("same-token")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	d2, err := hasher.Hash("same-token")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if d1 == d2 {
		t.Error("two hashes of the same token should differ")
	}
	if !hasher.Verify("same-token", d1) || !hasher.Verify("same-token", d2) {
		t.Error("both digests should verify the original token")
	}
}

func TestHasherFailsClosedOnMalformedDigest(t *testing.T) {
	hasher := cb.TokenHasher{Cost: bcrypt.MinCost}

	for _, digest := range []string{"", "not-a-bcrypt-digest", "$2a$garbage"} {
		if hasher.Verify("token", digest) {
			t.Errorf("malformed digest %q should verify false", digest)
		}
	}
}
