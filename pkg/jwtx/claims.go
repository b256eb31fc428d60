package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims issued by the authorization server.
// The shape is fixed by the token contract: consumers of these tokens
// (resource servers, introspection clients) rely on every field below.
type Claims struct {
	jwt.RegisteredClaims

	// Org is the organization the grant was issued under, if any.
	Org string `json:"org,omitempty"`

	// ClientID identifies the OAuth client the token was issued to.
	ClientID string `json:"client_id,omitempty"`

	// Email of the authorizing user, resolved at issuance time.
	Email string `json:"email,omitempty"`

	// Scope is the space-delimited granted scope string.
	Scope string `json:"scope,omitempty"`

	// APIKeyID/APIKeySecret carry host-application API credentials when the
	// user-data provider supplies them, letting resource servers act on the
	// user's behalf without a second lookup.
	APIKeyID     string `json:"api_key_id,omitempty"`
	APIKeySecret string `json:"api_key_secret,omitempty"`
}

// NewAccessClaims builds minimally-correct claims for an access token.
// Audience is a single resource URI per RFC 8707; the caller normalizes it.
func NewAccessClaims(
	issuer, audience, subject string,
	org, clientID, email, scope string,
	apiKeyID, apiKeySecret string,
	now, expiresAt time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Org:          org,
		ClientID:     clientID,
		Email:        email,
		Scope:        scope,
		APIKeyID:     apiKeyID,
		APIKeySecret: apiKeySecret,
	}
}

// TokenAudience returns the token's bound audience, or "" when absent.
func (c *Claims) TokenAudience() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}

// ValidateExpiry ensures the token has not expired. Tokens without an exp
// claim are rejected; every token this server mints carries one.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}
