package http

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/mcp-auth/internal/auth/scope"
	"github.com/relayforge/mcp-auth/internal/auth/service"
	"github.com/relayforge/mcp-auth/internal/auth/store/drivers/sqlite"
	"github.com/relayforge/mcp-auth/pkg/jwtx"
)

const testIssuer = "https://auth.example.com"

type testServer struct {
	*httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	st, err := sqlite.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	signer, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	registry := scope.NewRegistry()
	registry.Register("mcp:read", "Read access", "Read resources.", true)
	registry.Register("mcp:write", "Write access", "Modify resources.", false)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := NewRouter(testIssuer, "/mcp/api", "test", st, registry, logger)
	router.TokenService = service.NewTokenService(st, signer, service.TokenServiceConfig{
		Issuer: testIssuer,
	})
	router.AuthorizeService = service.NewAuthorizeService(st, registry, 0)
	router.ClientService = service.NewClientService(st, registry)
	router.Identity = IdentityResolverFunc(func(r *http.Request) (Identity, error) {
		return Identity{UserID: "user-1", OrgID: "org-1"}, nil
	})
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testServer{Server: srv, client: client}
}

func (s *testServer) registerClient(t *testing.T) (clientID, clientSecret string) {
	t.Helper()

	body := `{"redirect_uris": ["https://app.example/callback"], "client_name": "Test App"}`
	resp, err := s.client.Post(s.URL+"/oauth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var reg RegistrationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
	require.NotEmpty(t, reg.ClientID)
	require.NotEmpty(t, reg.ClientSecret)
	return reg.ClientID, reg.ClientSecret
}

func (s *testServer) authorize(t *testing.T, clientID, challenge string) (code string) {
	t.Helper()

	q := url.Values{
		"client_id":             {clientID},
		"redirect_uri":          {"https://app.example/callback"},
		"response_type":         {"code"},
		"scope":                 {"mcp:read mcp:write"},
		"state":                 {"opaque-state"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	resp, err := s.client.Get(s.URL + "/oauth/authorize?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "opaque-state", location.Query().Get("state"))
	require.Equal(t, testIssuer, location.Query().Get("iss"))
	require.Empty(t, location.Query().Get("error"))

	code = location.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func (s *testServer) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()

	resp, err := s.client.Post(s.URL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	return resp
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestAuthorizationCodeFlow(t *testing.T) {
	srv := newTestServer(t)
	clientID, clientSecret := srv.registerClient(t)

	verifier := "end-to-end-code-verifier-with-plenty-of-entropy"
	code := srv.authorize(t, clientID, s256Challenge(verifier))

	resp := srv.postForm(t, "/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.example/callback"},
		"code_verifier": {verifier},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var tokens TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.Equal(t, "Bearer", tokens.TokenType)
	require.Equal(t, 3600, tokens.ExpiresIn)
	require.Equal(t, "mcp:read mcp:write", tokens.Scope)

	t.Run("code reuse is rejected", func(t *testing.T) {
		resp := srv.postForm(t, "/oauth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"https://app.example/callback"},
			"code_verifier": {verifier},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var oerr OAuth2Error
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&oerr))
		require.Equal(t, "invalid_grant", oerr.Code)
	})

	t.Run("userinfo returns the token subject", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/oauth/userinfo", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

		resp, err := srv.client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var info struct {
			Sub   string `json:"sub"`
			Email string `json:"email"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
		require.Equal(t, "user-1", info.Sub)
		require.Equal(t, service.FallbackEmail, info.Email)
	})

	t.Run("introspection reports the access token active", func(t *testing.T) {
		resp := srv.postForm(t, "/oauth/introspect", url.Values{"token": {tokens.AccessToken}})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var intro IntrospectionResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&intro))
		require.True(t, intro.Active)
		require.Equal(t, clientID, intro.ClientID)
		require.Equal(t, "access_token", intro.TokenType)
		require.Equal(t, testIssuer, intro.Iss)
	})

	t.Run("refresh rotation", func(t *testing.T) {
		resp := srv.postForm(t, "/oauth/token", url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {tokens.RefreshToken},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rotated TokenResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rotated))
		require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

		t.Run("old refresh token is dead", func(t *testing.T) {
			resp := srv.postForm(t, "/oauth/token", url.Values{
				"grant_type":    {"refresh_token"},
				"refresh_token": {tokens.RefreshToken},
				"client_id":     {clientID},
				"client_secret": {clientSecret},
			})
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})

		t.Run("revocation kills the new refresh token", func(t *testing.T) {
			resp := srv.postForm(t, "/oauth/revoke", url.Values{"token": {rotated.RefreshToken}})
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			introResp := srv.postForm(t, "/oauth/introspect", url.Values{"token": {rotated.RefreshToken}})
			defer introResp.Body.Close()

			var intro IntrospectionResponse
			require.NoError(t, json.NewDecoder(introResp.Body).Decode(&intro))
			require.False(t, intro.Active)
		})

		t.Run("revoking an unknown token still returns 200", func(t *testing.T) {
			resp := srv.postForm(t, "/oauth/revoke", url.Values{"token": {"never-issued"}})
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	})
}

func TestTokenEndpointErrors(t *testing.T) {
	srv := newTestServer(t)
	clientID, clientSecret := srv.registerClient(t)

	t.Run("unsupported grant type", func(t *testing.T) {
		resp := srv.postForm(t, "/oauth/token", url.Values{
			"grant_type": {"password"},
			"client_id":  {clientID},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var oerr OAuth2Error
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&oerr))
		require.Equal(t, "unsupported_grant_type", oerr.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		resp, err := srv.client.Post(srv.URL+"/oauth/token", "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong client secret is unauthorized", func(t *testing.T) {
		verifier := "errors-flow-verifier-with-plenty-of-entropy"
		code := srv.authorize(t, clientID, s256Challenge(verifier))

		resp := srv.postForm(t, "/oauth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"https://app.example/callback"},
			"code_verifier": {verifier},
			"client_id":     {clientID},
			"client_secret": {"wrong"},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var oerr OAuth2Error
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&oerr))
		require.Equal(t, "invalid_client", oerr.Code)
	})

	t.Run("wrong verifier is invalid_grant", func(t *testing.T) {
		verifier := "pkce-errors-verifier-with-plenty-of-entropy"
		code := srv.authorize(t, clientID, s256Challenge(verifier))

		resp := srv.postForm(t, "/oauth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"https://app.example/callback"},
			"code_verifier": {"not-the-verifier"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var oerr OAuth2Error
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&oerr))
		require.Equal(t, "invalid_grant", oerr.Code)
	})

	t.Run("basic auth also authenticates the client", func(t *testing.T) {
		verifier := "basic-auth-verifier-with-plenty-of-entropy"
		code := srv.authorize(t, clientID, s256Challenge(verifier))

		form := url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"https://app.example/callback"},
			"code_verifier": {verifier},
		}
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/oauth/token", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(url.QueryEscape(clientID), url.QueryEscape(clientSecret))

		resp, err := srv.client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestAuthorizeEndpointErrors(t *testing.T) {
	srv := newTestServer(t)
	clientID, _ := srv.registerClient(t)

	t.Run("unknown client gets no redirect", func(t *testing.T) {
		q := url.Values{
			"client_id":     {"nope"},
			"redirect_uri":  {"https://app.example/callback"},
			"response_type": {"code"},
		}
		resp, err := srv.client.Get(srv.URL + "/oauth/authorize?" + q.Encode())
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing pkce redirects with invalid_request", func(t *testing.T) {
		q := url.Values{
			"client_id":     {clientID},
			"redirect_uri":  {"https://app.example/callback"},
			"response_type": {"code"},
			"state":         {"abc"},
		}
		resp, err := srv.client.Get(srv.URL + "/oauth/authorize?" + q.Encode())
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)

		location, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "invalid_request", location.Query().Get("error"))
		require.Equal(t, "abc", location.Query().Get("state"))
	})

	t.Run("denial redirects with access_denied", func(t *testing.T) {
		q := url.Values{
			"client_id":             {clientID},
			"redirect_uri":          {"https://app.example/callback"},
			"response_type":         {"code"},
			"code_challenge":        {s256Challenge("denied-verifier")},
			"code_challenge_method": {"S256"},
			"deny":                  {"true"},
		}
		resp, err := srv.client.Get(srv.URL + "/oauth/authorize?" + q.Encode())
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)

		location, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "access_denied", location.Query().Get("error"))
		require.Empty(t, location.Query().Get("code"))
	})
}

func TestRegisterEchoesAuthMethod(t *testing.T) {
	srv := newTestServer(t)

	register := func(t *testing.T, body string) RegistrationResponse {
		t.Helper()
		resp, err := srv.client.Post(srv.URL+"/oauth/register", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var reg RegistrationResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
		return reg
	}

	t.Run("client_secret_post is honored", func(t *testing.T) {
		reg := register(t, `{"redirect_uris": ["https://app.example/callback"], "token_endpoint_auth_method": "client_secret_post"}`)
		require.Equal(t, "client_secret_post", reg.TokenEndpointAuthMethod)
		require.NotEmpty(t, reg.ClientSecret)
	})

	t.Run("unspecified method settles on basic", func(t *testing.T) {
		reg := register(t, `{"redirect_uris": ["https://app.example/callback"]}`)
		require.Equal(t, "client_secret_basic", reg.TokenEndpointAuthMethod)
		require.NotEmpty(t, reg.ClientSecret)
	})

	t.Run("public clients stay none", func(t *testing.T) {
		reg := register(t, `{"redirect_uris": ["https://app.example/callback"], "token_endpoint_auth_method": "none"}`)
		require.Equal(t, "none", reg.TokenEndpointAuthMethod)
		require.Empty(t, reg.ClientSecret)
	})
}

func TestWellKnownEndpoints(t *testing.T) {
	srv := newTestServer(t)

	t.Run("authorization server metadata", func(t *testing.T) {
		resp, err := srv.client.Get(srv.URL + "/.well-known/oauth-authorization-server")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var meta serverMetadata
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
		require.Equal(t, testIssuer, meta.Issuer)
		require.Equal(t, testIssuer+"/oauth/token", meta.TokenEndpoint)
		require.Equal(t, []string{"code"}, meta.ResponseTypesSupported)
		require.Equal(t, []string{"S256"}, meta.CodeChallengeMethodsSupported)
		require.Contains(t, meta.ScopesSupported, "mcp:read")
	})

	t.Run("protected resource metadata", func(t *testing.T) {
		resp, err := srv.client.Get(srv.URL + "/.well-known/oauth-protected-resource")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var meta resourceMetadata
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
		require.Equal(t, testIssuer+"/mcp/api", meta.Resource)
		require.Equal(t, []string{testIssuer}, meta.AuthorizationServers)
	})

	t.Run("jwks is an empty key set", func(t *testing.T) {
		resp, err := srv.client.Get(srv.URL + "/.well-known/jwks.json")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var jwks struct {
			Keys []any `json:"keys"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
		require.Empty(t, jwks.Keys)
	})
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := srv.client.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}
