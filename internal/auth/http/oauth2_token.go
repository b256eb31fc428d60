package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/relayforge/mcp-auth/internal/auth/domain"
	"github.com/relayforge/mcp-auth/internal/auth/service"
	"github.com/relayforge/mcp-auth/pkg/httpx"
	"github.com/relayforge/mcp-auth/pkg/slogx"
)

// TokenHandler serves POST /oauth/token.
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		ErrInvalidFormBody.WriteError(w)
		return
	}

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, r.Form)
	case "refresh_token":
		h.handleRefreshGrant(w, r, r.Form)
	default:
		ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID, clientSecret := clientCredentials(r, form)
	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	codeVerifier := strings.TrimSpace(form.Get("code_verifier"))
	resource := strings.TrimSpace(form.Get("resource"))

	if code == "" || redirectURI == "" || clientID == "" || codeVerifier == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeAuthorizationCode(ctx, service.AuthorizationCodeExchange{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         code,
		RedirectURI:  redirectURI,
		CodeVerifier: codeVerifier,
		Resource:     resource,
	})
	if err != nil {
		writeGrantError(w, log, "authorization_code", err)
		return
	}

	writeTokenResponse(w, pair)
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID, clientSecret := clientCredentials(r, form)
	refresh := form.Get("refresh_token")
	requestedScope := strings.TrimSpace(form.Get("scope"))
	resource := strings.TrimSpace(form.Get("resource"))

	if refresh == "" || clientID == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(ctx, service.RefreshTokenExchange{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refresh,
		Scope:        requestedScope,
		Resource:     resource,
	})
	if err != nil {
		writeGrantError(w, log, "refresh_token", err)
		return
	}

	writeTokenResponse(w, pair)
}

// clientCredentials extracts client authentication from HTTP Basic auth
// (client_secret_basic) or the form body (client_secret_post). Basic auth
// wins when both are present.
func clientCredentials(r *http.Request, form url.Values) (clientID, clientSecret string) {
	if id, secret, ok := r.BasicAuth(); ok {
		if decoded, err := url.QueryUnescape(id); err == nil {
			id = decoded
		}
		if decoded, err := url.QueryUnescape(secret); err == nil {
			secret = decoded
		}
		return id, secret
	}
	return strings.TrimSpace(form.Get("client_id")), form.Get("client_secret")
}

func writeGrantError(w http.ResponseWriter, log *slog.Logger, grant string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidGrant):
		ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		ErrInvalidScope.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		ErrInvalidRequest.WriteError(w)
	default:
		log.Error(grant+" grant failed", "err", err)
		ErrServerError.WriteError(w)
	}
}

func writeTokenResponse(w http.ResponseWriter, pair domain.TokenPair) {
	response := TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		Scope:        strings.TrimSpace(pair.Scope),
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
