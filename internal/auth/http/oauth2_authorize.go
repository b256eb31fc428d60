package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/relayforge/mcp-auth/internal/auth/service"
	"github.com/relayforge/mcp-auth/pkg/slogx"
)

// Identity is the authenticated principal approving an authorization
// request.
type Identity struct {
	UserID string
	OrgID  string
}

// IdentityResolver bridges to the host application's session handling.
// The server core does not render login screens; the host authenticates
// the user and this hook surfaces the result. A zero Identity means no
// authenticated user.
type IdentityResolver interface {
	ResolveIdentity(r *http.Request) (Identity, error)
}

// IdentityResolverFunc adapts a function to the IdentityResolver interface.
type IdentityResolverFunc func(r *http.Request) (Identity, error)

func (f IdentityResolverFunc) ResolveIdentity(r *http.Request) (Identity, error) {
	return f(r)
}

// AuthorizeHandler serves GET and POST /oauth/authorize. The host
// application authenticates the user and collects consent before the
// request lands here; the handler validates, mints the code and redirects.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Identity         IdentityResolver
	Issuer           string
}

func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			ErrInvalidFormBody.WriteError(w)
			return
		}
	}

	params := r.Form
	if r.Method == http.MethodGet {
		params = r.URL.Query()
	}

	req := service.AuthorizationRequest{
		ClientID:            strings.TrimSpace(params.Get("client_id")),
		RedirectURI:         strings.TrimSpace(params.Get("redirect_uri")),
		ResponseType:        strings.TrimSpace(params.Get("response_type")),
		Scope:               strings.TrimSpace(params.Get("scope")),
		State:               params.Get("state"),
		CodeChallenge:       strings.TrimSpace(params.Get("code_challenge")),
		CodeChallengeMethod: strings.TrimSpace(params.Get("code_challenge_method")),
		Resource:            strings.TrimSpace(params.Get("resource")),
	}

	validated, err := h.AuthorizeService.Validate(ctx, req)
	if err != nil {
		// Unknown client or unregistered redirect URI must never redirect
		// (RFC 6749 section 4.1.2.1); once the redirect URI is known good,
		// errors go back to the client through it.
		switch {
		case errors.Is(err, service.ErrInvalidClient), errors.Is(err, service.ErrInvalidRedirect):
			ErrInvalidRequest.WriteError(w)
		case errors.Is(err, service.ErrUnsupportedResponseType):
			redirectError(w, r, req.RedirectURI, req.State, ErrUnsupportedResponseType)
		case errors.Is(err, service.ErrInvalidRequest):
			redirectError(w, r, req.RedirectURI, req.State, ErrInvalidRequest)
		default:
			log.Error("authorization request validation failed", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	if params.Get("deny") == "true" {
		redirectError(w, r, validated.RedirectURI, validated.State, ErrAccessDenied)
		return
	}

	identity, err := h.Identity.ResolveIdentity(r)
	if err != nil || identity.UserID == "" {
		redirectError(w, r, validated.RedirectURI, validated.State, ErrAccessDenied)
		return
	}

	code, err := h.AuthorizeService.Approve(ctx, validated, identity.UserID, identity.OrgID)
	if err != nil {
		log.Error("authorization approval failed", "err", err)
		redirectError(w, r, validated.RedirectURI, validated.State, ErrServerError)
		return
	}

	target, _ := url.Parse(validated.RedirectURI)
	q := target.Query()
	q.Set("code", code)
	if validated.State != "" {
		q.Set("state", validated.State)
	}
	if h.Issuer != "" {
		q.Set("iss", h.Issuer)
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func redirectError(w http.ResponseWriter, r *http.Request, redirectURI, state string, oerr *OAuth2Error) {
	target, err := url.Parse(redirectURI)
	if err != nil {
		oerr.WriteError(w)
		return
	}
	q := target.Query()
	q.Set("error", oerr.Code)
	if oerr.Description != "" {
		q.Set("error_description", oerr.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
