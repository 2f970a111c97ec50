package codeboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token lifetimes.
const (
	TokenExpiryAccess  = 15 * time.Minute
	TokenExpiryRefresh = 7 * 24 * time.Hour
)

// Token type claim values.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the signed claim set carried by both token kinds. The account ID
// travels in the registered subject claim.
type Claims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name,omitempty"`
	TokenType   string `json:"typ,omitempty"`
}

// AccountID returns the account the token was issued for.
func (c *Claims) AccountID() string { return c.Subject }

// Issuer mints and verifies the access/refresh token pair. Access and refresh
// tokens are signed with distinct secrets so compromise of one cannot forge
// the other. An Issuer is built once at startup from configuration and never
// mutated afterwards.
type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte

	// AccessTTL and RefreshTTL default to TokenExpiryAccess and
	// TokenExpiryRefresh when zero.
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Name is the issuer claim stamped on every token.
	Name string
}

// AccessTokenTTL returns the effective access token lifetime.
func (i *Issuer) AccessTokenTTL() time.Duration {
	if i.AccessTTL != 0 {
		return i.AccessTTL
	}
	return TokenExpiryAccess
}

// RefreshTokenTTL returns the effective refresh token lifetime.
func (i *Issuer) RefreshTokenTTL() time.Duration {
	if i.RefreshTTL != 0 {
		return i.RefreshTTL
	}
	return TokenExpiryRefresh
}

// IssueAccess mints a short-lived access token for an account.
func (i *Issuer) IssueAccess(accountID, displayName string) (string, error) {
	return i.sign(accountID, displayName, tokenTypeAccess, i.AccessTokenTTL(), i.AccessSecret)
}

// IssueRefresh mints a long-lived refresh token for an account.
func (i *Issuer) IssueRefresh(accountID, displayName string) (string, error) {
	return i.sign(accountID, displayName, tokenTypeRefresh, i.RefreshTokenTTL(), i.RefreshSecret)
}

func (i *Issuer) sign(accountID, displayName, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti makes every token unique even when two are minted for
			// the same account within one second; rotation depends on the
			// old and new refresh tokens never being equal.
			ID:        uuid.NewString(),
			Subject:   accountID,
			Issuer:    i.Name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		DisplayName: displayName,
		TokenType:   tokenType,
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns its claims.
func (i *Issuer) VerifyAccess(tokenString string) (*Claims, error) {
	return i.verify(tokenString, tokenTypeAccess, i.AccessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (i *Issuer) VerifyRefresh(tokenString string) (*Claims, error) {
	return i.verify(tokenString, tokenTypeRefresh, i.RefreshSecret)
}

func (i *Issuer) verify(tokenString, tokenType string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %s", ErrExpiredToken, tokenType)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: wrong token type %q", ErrInvalidToken, claims.TokenType)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
