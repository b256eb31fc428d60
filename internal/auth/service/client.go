package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/relayforge/mcp-auth/internal/auth/domain"
	"github.com/relayforge/mcp-auth/internal/auth/scope"
	"github.com/relayforge/mcp-auth/internal/auth/store"
	"github.com/relayforge/mcp-auth/pkg/cryptox"
	"github.com/relayforge/mcp-auth/pkg/idx"
)

var ErrInvalidClientMetadata = errors.New("service: invalid client metadata")

var supportedGrantTypes = []string{"authorization_code", "refresh_token"}

// ClientService handles dynamic client registration and client lifecycle.
type ClientService struct {
	store    store.Store
	registry *scope.Registry

	now func() time.Time
}

func NewClientService(st store.Store, registry *scope.Registry) *ClientService {
	return &ClientService{store: st, registry: registry, now: time.Now}
}

// RegisterClientRequest is the RFC 7591 registration payload subset the
// server accepts.
type RegisterClientRequest struct {
	RedirectURIs            []string
	GrantTypes              []string
	ResponseTypes           []string
	Scope                   string
	Name                    string
	URI                     string
	TokenEndpointAuthMethod string
}

// Register validates the metadata and creates the client. The returned
// secret is the only time the plaintext is available; only its argon2id
// hash is stored. Public clients (token_endpoint_auth_method "none") get
// no secret.
func (s *ClientService) Register(ctx context.Context, req RegisterClientRequest) (domain.Client, string, error) {
	if len(req.RedirectURIs) == 0 {
		return domain.Client{}, "", fmt.Errorf("%w: at least one redirect_uri is required", ErrInvalidClientMetadata)
	}
	for _, uri := range req.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return domain.Client{}, "", fmt.Errorf("%w: %v", ErrInvalidClientMetadata, err)
		}
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = domain.DefaultGrantTypes
	}
	for _, gt := range grantTypes {
		if !slices.Contains(supportedGrantTypes, gt) {
			return domain.Client{}, "", fmt.Errorf("%w: unsupported grant type %q", ErrInvalidClientMetadata, gt)
		}
	}

	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = domain.DefaultResponseTypes
	}
	for _, rt := range responseTypes {
		if rt != "code" {
			return domain.Client{}, "", fmt.Errorf("%w: unsupported response type %q", ErrInvalidClientMetadata, rt)
		}
	}

	clientScope := s.registry.ValidateString(req.Scope)
	if req.Scope == "" {
		clientScope = s.registry.DefaultScopeString()
	}

	var secret, secretHash string
	if req.TokenEndpointAuthMethod != "none" {
		var err error
		secret, err = cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return domain.Client{}, "", fmt.Errorf("generate client secret: %w", err)
		}
		secretHash, err = cryptox.HashSecret(secret)
		if err != nil {
			return domain.Client{}, "", fmt.Errorf("hash client secret: %w", err)
		}
	}

	now := s.now()
	client := domain.Client{
		ClientID:      idx.New().String(),
		SecretHash:    secretHash,
		RedirectURIs:  req.RedirectURIs,
		GrantTypes:    grantTypes,
		ResponseTypes: responseTypes,
		Scope:         clientScope,
		Name:          req.Name,
		URI:           req.URI,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Clients().CreateClient(ctx, client); err != nil {
		return domain.Client{}, "", fmt.Errorf("create client: %w", err)
	}

	return client, secret, nil
}

func (s *ClientService) Get(ctx context.Context, clientID string) (domain.Client, error) {
	client, err := s.store.Clients().GetClientByID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, fmt.Errorf("%w: unknown client %q", ErrInvalidClient, clientID)
	}
	return client, err
}

func (s *ClientService) List(ctx context.Context) ([]domain.Client, error) {
	return s.store.Clients().ListClients(ctx)
}

// Delete removes the client; its codes and tokens cascade at the storage
// layer. Deleting an unknown client is a no-op.
func (s *ClientService) Delete(ctx context.Context, clientID string) (bool, error) {
	return s.store.Clients().DeleteClient(ctx, clientID)
}

func validateRedirectURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("redirect uri %q: %w", uri, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("redirect uri %q must be absolute", uri)
	}
	if u.Fragment != "" {
		return fmt.Errorf("redirect uri %q must not contain a fragment", uri)
	}
	return nil
}
