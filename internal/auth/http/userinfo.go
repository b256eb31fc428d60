package http

import (
	"net/http"
	"strings"

	"github.com/relayforge/mcp-auth/internal/auth/service"
	"github.com/relayforge/mcp-auth/pkg/httpx"
)

// UserInfoHandler serves GET /oauth/userinfo. It accepts a bearer access
// token and returns the identity claims embedded in it; revoked tokens are
// rejected even before their natural expiry.
type UserInfoHandler struct {
	TokenService *service.TokenService
}

type userInfoResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email,omitempty"`
	Org   string `json:"org,omitempty"`
	Scope string `json:"scope,omitempty"`
}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
		ErrInvalidToken.WriteError(w)
		return
	}

	info := h.TokenService.Introspect(r.Context(), token)
	if !info.Active || info.TokenType != "access_token" {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		ErrInvalidToken.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, userInfoResponse{
		Sub:   info.UserID,
		Email: info.Claims.Email,
		Org:   info.Claims.Org,
		Scope: info.Scope,
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
