package codeboard_test

import (
	"errors"
	"testing"
	"time"

	cb "github.com/codeboard/codeboard"
)

func newTestIssuer() *cb.Issuer {
	return &cb.Issuer{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		Name:          "codeboard-test",
	}
}

func TestIssueAndVerifyAccess(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.IssueAccess("acct-1", "octocat")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	claims, err := issuer.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.AccountID() != "acct-1" {
		t.Errorf("expected account acct-1, got %q", claims.AccountID())
	}
	if claims.DisplayName != "octocat" {
		t.Errorf("expected display name octocat, got %q", claims.DisplayName)
	}
}

func TestIssueAndVerifyRefresh(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.IssueRefresh("acct-1", "octocat")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}

	claims, err := issuer.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh failed: %v", err)
	}
	if claims.AccountID() != "acct-1" {
		t.Errorf("expected account acct-1, got %q", claims.AccountID())
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer()

	access, _ := issuer.IssueAccess("acct-1", "octocat")
	refresh, _ := issuer.IssueRefresh("acct-1", "octocat")

	// The secrets differ, so each kind only verifies on its own path.
	if _, err := issuer.VerifyRefresh(access); !errors.Is(err, cb.ErrInvalidToken) {
		t.Errorf("access token should not verify as refresh, got %v", err)
	}
	if _, err := issuer.VerifyAccess(refresh); !errors.Is(err, cb.ErrInvalidToken) {
		t.Errorf("refresh token should not verify as access, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issuer := newTestIssuer()
	issuer.AccessTTL = -time.Minute

	token, err := issuer.IssueAccess("acct-1", "octocat")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	_, err = issuer.VerifyAccess(token)
	if !errors.Is(err, cb.ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := newTestIssuer()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a jwt", "hello world"},
		{"wrong secret", mustSign(t, &cb.Issuer{
			AccessSecret:  []byte("some-other-secret"),
			RefreshSecret: []byte("another"),
			Name:          "codeboard-test",
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.VerifyAccess(tt.token); !errors.Is(err, cb.ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestRefreshTokensAreUnique(t *testing.T) {
	issuer := newTestIssuer()

	// Rotation relies on consecutive tokens never colliding, even when
	// minted within the same second.
	r1, _ := issuer.IssueRefresh("acct-1", "octocat")
	r2, _ := issuer.IssueRefresh("acct-1", "octocat")
	if r1 == r2 {
		t.Error("two refresh tokens for the same account should differ")
	}
}

func mustSign(t *testing.T, issuer *cb.Issuer) string {
	t.Helper()
	token, err := issuer.IssueAccess("acct-1", "octocat")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	return token
}
