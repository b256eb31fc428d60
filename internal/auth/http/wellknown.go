package http

import (
	"net/http"

	"github.com/relayforge/mcp-auth/internal/auth/scope"
	"github.com/relayforge/mcp-auth/pkg/httpx"
)

// serverMetadata is the RFC 8414 authorization server metadata document.
// The same shape doubles as the OpenID Provider configuration.
type serverMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	AuthorizationResponseIssParam     bool     `json:"authorization_response_iss_parameter_supported"`
}

// resourceMetadata is the RFC 9728 protected resource metadata document.
type resourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// WellKnownHandler serves the discovery documents under /.well-known/.
type WellKnownHandler struct {
	Issuer       string
	ResourcePath string
	Registry     *scope.Registry
}

func (h *WellKnownHandler) metadata() serverMetadata {
	return serverMetadata{
		Issuer:                            h.Issuer,
		AuthorizationEndpoint:             h.Issuer + "/oauth/authorize",
		TokenEndpoint:                     h.Issuer + "/oauth/token",
		RegistrationEndpoint:              h.Issuer + "/oauth/register",
		RevocationEndpoint:                h.Issuer + "/oauth/revoke",
		IntrospectionEndpoint:             h.Issuer + "/oauth/introspect",
		UserInfoEndpoint:                  h.Issuer + "/oauth/userinfo",
		JWKSURI:                           h.Issuer + "/.well-known/jwks.json",
		ScopesSupported:                   h.Registry.Keys(),
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		AuthorizationResponseIssParam:     true,
	}
}

func (h *WellKnownHandler) HandleAuthorizationServer(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.metadata())
}

func (h *WellKnownHandler) HandleOpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.metadata())
}

func (h *WellKnownHandler) HandleProtectedResource(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, resourceMetadata{
		Resource:               h.Issuer + h.ResourcePath,
		AuthorizationServers:   []string{h.Issuer},
		ScopesSupported:        h.Registry.Keys(),
		BearerMethodsSupported: []string{"header"},
	})
}

// HandleJWKS serves an empty key set. Access tokens are HMAC-signed, so
// there is no public key to publish; the endpoint exists because discovery
// advertises it and some clients fetch it unconditionally.
func (h *WellKnownHandler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"keys": []any{}})
}
