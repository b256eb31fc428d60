package http

import (
	"net/http"
	"strings"

	"github.com/relayforge/mcp-auth/internal/auth/service"
	"github.com/relayforge/mcp-auth/pkg/slogx"
)

// RevokeHandler serves POST /oauth/revoke (RFC 7009). The endpoint always
// answers 200 for well-formed requests, whether or not the token existed,
// so callers cannot probe for live tokens.
type RevokeHandler struct {
	TokenService *service.TokenService
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

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

	revoked, err := h.TokenService.Revoke(ctx, token)
	if err != nil {
		log.Error("token revocation failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}
	if revoked {
		log.Info("token revoked")
	}

	w.WriteHeader(http.StatusOK)
}
