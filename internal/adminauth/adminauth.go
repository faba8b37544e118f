// Package adminauth is the out-of-scope admin-login collaborator's entry
// point: JWT minting/verification against the admin credential stored by
// internal/settings. Login request handling, session cookies, and CORS
// policy remain unimplemented per spec.md's Non-goals; this package only
// gives that collaborator a real token primitive to call.
package adminauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Minter mints and verifies admin session tokens signed with a shared
// secret, per SPEC_FULL.md section 3's JWT wiring.
type Minter struct {
	secret   []byte
	lifetime time.Duration
}

// New builds a Minter. lifetime defaults to 24h, matching
// gwconfig.AdminConfig's default JWT lifetime.
func New(secret string, lifetime time.Duration) *Minter {
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &Minter{secret: []byte(secret), lifetime: lifetime}
}

// claims carries only the admin username; the admin-login route layer
// owns everything else about the session.
type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Mint issues a signed token for username, valid for m.lifetime.
func (m *Minter) Mint(username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("adminauth: mint: %w", err)
	}
	return signed, nil
}

// Verify validates a token's signature and expiry and returns the
// username it was minted for.
func (m *Minter) Verify(tokenString string) (username string, err error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("adminauth: verify: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("adminauth: verify: invalid token")
	}
	return c.Username, nil
}
