package http

import (
	"net/http"
	"strings"

	"github.com/relayforge/mcp-auth/internal/auth/service"
	"github.com/relayforge/mcp-auth/pkg/httpx"
)

// IntrospectHandler serves POST /oauth/introspect (RFC 7662). Tokens that
// are unknown, expired, or revoked all produce {"active": false} with no
// further detail.
type IntrospectHandler struct {
	TokenService *service.TokenService
}

func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		ErrInvalidFormBody.WriteError(w)
		return
	}

	token := r.Form.Get("token")
	if token == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	info := h.TokenService.Introspect(r.Context(), token)
	if !info.Active {
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, IntrospectionResponse{Active: false})
		return
	}

	response := IntrospectionResponse{
		Active:    true,
		Scope:     info.Scope,
		ClientID:  info.ClientID,
		Username:  info.UserID,
		TokenType: info.TokenType,
		Exp:       info.ExpiresAt.Unix(),
		Iat:       info.IssuedAt.Unix(),
		Sub:       info.UserID,
	}
	if info.TokenType == "access_token" {
		response.Aud = info.Claims.TokenAudience()
		response.Iss = info.Claims.Issuer
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
