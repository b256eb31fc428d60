package domain

import "time"

// AuthorizationCode is a one-time-use grant issued on a successful
// authorization decision. Only the SHA-256 fingerprint of the opaque code
// is stored; the record is destroyed on redemption or expiry and never
// updated in place.
type AuthorizationCode struct {
	ID                  string
	CodeHash            string
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string // fixed to "S256"
	Resource            string // optional RFC 8707 target audience
	Scope               string
	UserID              string
	OrgID               string // optional
	ExpiresAt           time.Time
	CreatedAt           time.Time
}
