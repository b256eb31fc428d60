package domain

import (
	"slices"
	"time"
)

// Default client metadata applied at registration when the request omits
// the corresponding fields (RFC 7591 section 2).
var (
	DefaultGrantTypes    = []string{"authorization_code", "refresh_token"}
	DefaultResponseTypes = []string{"code"}
)

// Client is a registered OAuth 2.1 client. Clients are created through
// dynamic registration and immutable afterwards; deleting a client cascades
// to its codes and tokens at the storage layer.
type Client struct {
	ClientID      string
	SecretHash    string // empty for public clients
	RedirectURIs  []string
	GrantTypes    []string
	ResponseTypes []string
	Scope         string // default space-delimited scope string
	Name          string
	URI           string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Confidential reports whether the client registered with a secret and must
// therefore authenticate at the token endpoint.
func (c Client) Confidential() bool { return c.SecretHash != "" }

// ValidRedirectURI reports whether uri exactly matches a registered
// redirect URI. No pattern or prefix matching; OAuth 2.1 requires exact
// string comparison.
func (c Client) ValidRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// SupportsGrantType reports whether the client registered for grantType.
func (c Client) SupportsGrantType(grantType string) bool {
	return slices.Contains(c.GrantTypes, grantType)
}
