package domain

import "time"

// TokenPair is what the token endpoint returns: the signed access token
// (JWT) and the opaque refresh token.
type TokenPair struct {
	AccessToken  string
	TokenType    string // always "Bearer"
	ExpiresIn    time.Duration
	Scope        string
	RefreshToken string
}

// AccessToken mirrors a signed access token in the database. The token is
// self-contained and verifiable offline; the record exists so revocation
// and introspection can consult server-side state.
type AccessToken struct {
	ID        string
	TokenHash string // SHA-256 fingerprint of the serialized JWT
	ClientID  string
	Resource  string // normalized bound audience
	Scope     string
	UserID    string
	OrgID     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RefreshToken models the stored refresh token record. Destroyed when used
// for rotation, explicitly revoked, or swept after expiry.
type RefreshToken struct {
	ID        string
	TokenHash string // SHA-256 fingerprint of the opaque secret
	ClientID  string
	Scope     string
	UserID    string
	OrgID     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
