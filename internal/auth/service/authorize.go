package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relayforge/mcp-auth/internal/auth/domain"
	"github.com/relayforge/mcp-auth/internal/auth/scope"
	"github.com/relayforge/mcp-auth/internal/auth/store"
	"github.com/relayforge/mcp-auth/pkg/cryptox"
	"github.com/relayforge/mcp-auth/pkg/idx"
)

var (
	ErrUnsupportedResponseType = errors.New("service: unsupported response type")
	ErrInvalidRedirect         = errors.New("service: invalid redirect uri")
	ErrAccessDenied            = errors.New("service: access denied")
)

// AuthorizeService validates authorization requests and mints one-time
// authorization codes. PKCE with S256 is mandatory; there is no plain
// method and no implicit flow.
type AuthorizeService struct {
	store    store.Store
	registry *scope.Registry
	codeTTL  time.Duration

	now func() time.Time
}

func NewAuthorizeService(st store.Store, registry *scope.Registry, codeTTL time.Duration) *AuthorizeService {
	if codeTTL <= 0 {
		codeTTL = DefaultAuthorizationCodeTTL
	}
	return &AuthorizeService{
		store:    st,
		registry: registry,
		codeTTL:  codeTTL,
		now:      time.Now,
	}
}

// AuthorizationRequest carries the query parameters of a front-channel
// authorization request.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Resource            string
}

// ValidatedRequest is an authorization request that passed validation: the
// client is known, the redirect URI is registered, PKCE parameters are
// well-formed and the scope is reduced to what may be granted.
type ValidatedRequest struct {
	Client      domain.Client
	RedirectURI string
	Scope       string
	State       string
	Challenge   string
	Resource    string // normalized, may be empty
}

// Validate checks an authorization request before any user interaction.
// Client and redirect URI failures must never redirect, so they surface as
// errors for the handler to render directly.
func (s *AuthorizeService) Validate(ctx context.Context, req AuthorizationRequest) (ValidatedRequest, error) {
	client, err := s.store.Clients().GetClientByID(ctx, req.ClientID)
	if errors.Is(err, store.ErrNotFound) {
		return ValidatedRequest{}, fmt.Errorf("%w: unknown client %q", ErrInvalidClient, req.ClientID)
	}
	if err != nil {
		return ValidatedRequest{}, fmt.Errorf("load client: %w", err)
	}

	if req.RedirectURI == "" || !client.ValidRedirectURI(req.RedirectURI) {
		return ValidatedRequest{}, fmt.Errorf("%w: redirect_uri is not registered for this client", ErrInvalidRedirect)
	}

	if req.ResponseType != "code" {
		return ValidatedRequest{}, fmt.Errorf("%w: response_type %q", ErrUnsupportedResponseType, req.ResponseType)
	}
	if req.CodeChallenge == "" {
		return ValidatedRequest{}, fmt.Errorf("%w: code_challenge is required", ErrInvalidRequest)
	}
	if req.CodeChallengeMethod != "S256" {
		return ValidatedRequest{}, fmt.Errorf("%w: code_challenge_method must be S256", ErrInvalidRequest)
	}

	resource := req.Resource
	if resource != "" {
		resource, err = NormalizeResourceURI(resource)
		if err != nil {
			return ValidatedRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	return ValidatedRequest{
		Client:      client,
		RedirectURI: req.RedirectURI,
		Scope:       s.registry.ValidateString(req.Scope),
		State:       req.State,
		Challenge:   req.CodeChallenge,
		Resource:    resource,
	}, nil
}

// Approve records the user's consent and mints the one-time code the
// client redeems at the token endpoint. Only the code's SHA-256
// fingerprint is persisted.
func (s *AuthorizeService) Approve(ctx context.Context, req ValidatedRequest, userID, orgID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: no authenticated user", ErrAccessDenied)
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate authorization code: %w", err)
	}

	now := s.now()
	if err := s.store.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
		ID:                  idx.New().String(),
		CodeHash:            cryptox.FingerprintToken(code),
		ClientID:            req.Client.ClientID,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.Challenge,
		CodeChallengeMethod: "S256",
		Resource:            req.Resource,
		Scope:               req.Scope,
		UserID:              userID,
		OrgID:               orgID,
		ExpiresAt:           now.Add(s.codeTTL),
		CreatedAt:           now,
	}); err != nil {
		return "", fmt.Errorf("store authorization code: %w", err)
	}

	return code, nil
}
