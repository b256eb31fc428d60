package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relayforge/mcp-auth/internal/auth/domain"
	"github.com/relayforge/mcp-auth/internal/auth/store"
	"github.com/relayforge/mcp-auth/pkg/cryptox"
	"github.com/relayforge/mcp-auth/pkg/idx"
	"github.com/relayforge/mcp-auth/pkg/jwtx"
	"github.com/relayforge/mcp-auth/pkg/slogx"
)

var (
	ErrInvalidRequest = errors.New("service: invalid request")
	ErrInvalidClient  = errors.New("service: invalid client")
	ErrInvalidGrant   = errors.New("service: invalid grant")
	ErrInvalidScope   = errors.New("service: invalid scope")
	ErrInvalidToken   = errors.New("service: invalid token")
)

// Token lifetimes and the default audience path, used when configuration
// does not override them.
const (
	DefaultAccessTokenTTL       = time.Hour
	DefaultRefreshTokenTTL      = 30 * 24 * time.Hour
	DefaultResourcePath         = "/mcp/api"
	DefaultAuthorizationCodeTTL = 30 * time.Minute
)

// TokenService issues, rotates, validates and revokes tokens. Access tokens
// are HS256 JWTs bound to a single normalized audience; refresh tokens are
// opaque and rotate on every use.
type TokenService struct {
	store    store.Store
	signer   *jwtx.HS256
	userData UserDataProvider

	issuer          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	resourcePath    string

	now func() time.Time
}

// TokenServiceConfig carries the knobs for NewTokenService; zero values
// fall back to the package defaults.
type TokenServiceConfig struct {
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResourcePath    string
	UserData        UserDataProvider
}

func NewTokenService(st store.Store, signer *jwtx.HS256, cfg TokenServiceConfig) *TokenService {
	s := &TokenService{
		store:           st,
		signer:          signer,
		userData:        cfg.UserData,
		issuer:          strings.TrimSuffix(cfg.Issuer, "/"),
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
		resourcePath:    cfg.ResourcePath,
		now:             time.Now,
	}
	if s.accessTokenTTL <= 0 {
		s.accessTokenTTL = DefaultAccessTokenTTL
	}
	if s.refreshTokenTTL <= 0 {
		s.refreshTokenTTL = DefaultRefreshTokenTTL
	}
	if s.resourcePath == "" {
		s.resourcePath = DefaultResourcePath
	}
	return s
}

// AccessTokenTTL reports the configured access-token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration { return s.accessTokenTTL }

// Issuer reports the configured issuer identifier.
func (s *TokenService) Issuer() string { return s.issuer }

// AuthorizationCodeExchange is the authorization_code grant input.
type AuthorizationCodeExchange struct {
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
	Resource     string
}

// ExchangeAuthorizationCode redeems a one-time code for a token pair. The
// code is consumed atomically up front, so any later validation failure
// leaves it permanently burned; a retry with corrected parameters needs a
// fresh authorization.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, req AuthorizationCodeExchange) (domain.TokenPair, error) {
	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !client.SupportsGrantType("authorization_code") {
		return domain.TokenPair{}, fmt.Errorf("%w: client not registered for authorization_code", ErrInvalidGrant)
	}
	if req.Code == "" || req.CodeVerifier == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: code and code_verifier are required", ErrInvalidRequest)
	}

	now := s.now()
	code, err := s.store.AuthorizationCodes().ConsumeAuthorizationCode(ctx, cryptox.FingerprintToken(req.Code), now)
	if errors.Is(err, store.ErrNotFound) {
		return domain.TokenPair{}, fmt.Errorf("%w: authorization code is invalid or expired", ErrInvalidGrant)
	}
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("consume authorization code: %w", err)
	}

	// The code is gone at this point no matter what happens below.
	if code.ClientID != client.ClientID {
		return domain.TokenPair{}, fmt.Errorf("%w: authorization code was issued to another client", ErrInvalidGrant)
	}
	if code.RedirectURI != req.RedirectURI {
		return domain.TokenPair{}, fmt.Errorf("%w: redirect_uri does not match the authorization request", ErrInvalidGrant)
	}
	if !cryptox.VerifyS256Challenge(code.CodeChallenge, req.CodeVerifier) {
		return domain.TokenPair{}, fmt.Errorf("%w: PKCE verification failed", ErrInvalidGrant)
	}

	// The resource captured at authorization time wins over the token
	// request's, so a code cannot be redeemed for a different audience
	// than the user approved.
	resource := code.Resource
	if resource == "" {
		resource = req.Resource
	}
	audience, err := s.resolveAudience(resource)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return s.issuePair(ctx, issueParams{
		clientID: client.ClientID,
		userID:   code.UserID,
		orgID:    code.OrgID,
		scope:    code.Scope,
		audience: audience,
		now:      now,
	})
}

// RefreshTokenExchange is the refresh_token grant input.
type RefreshTokenExchange struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scope        string
	Resource     string
}

// ExchangeRefreshToken rotates a refresh token: the presented token is
// consumed and a fresh pair issued in one transaction, so a concurrent
// second use of the same token fails cleanly and issuance failures restore
// the original token.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, req RefreshTokenExchange) (domain.TokenPair, error) {
	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !client.SupportsGrantType("refresh_token") {
		return domain.TokenPair{}, fmt.Errorf("%w: client not registered for refresh_token", ErrInvalidGrant)
	}
	if req.RefreshToken == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}

	audience, err := s.resolveAudience(req.Resource)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := s.now()
	var pair domain.TokenPair
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.RefreshTokens().ConsumeRefreshToken(ctx, cryptox.FingerprintToken(req.RefreshToken), now)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: refresh token is invalid or expired", ErrInvalidGrant)
		}
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}
		if current.ClientID != client.ClientID {
			return fmt.Errorf("%w: refresh token was issued to another client", ErrInvalidGrant)
		}

		scope, err := narrowScope(current.Scope, req.Scope)
		if err != nil {
			return err
		}

		pair, err = s.issuePairTx(ctx, tx, issueParams{
			clientID: client.ClientID,
			userID:   current.UserID,
			orgID:    current.OrgID,
			scope:    scope,
			audience: audience,
			now:      now,
		})
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

// ValidateAccessToken verifies a presented access token offline. Checks
// run signature first, then expiry, then audience; every failure maps to
// ErrInvalidToken outward. An empty resource skips the audience check, for
// callers that have no resource indicator to match against.
func (s *TokenService) ValidateAccessToken(ctx context.Context, token, resource string) (jwtx.Claims, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		slogx.FromContext(ctx).Debug("access token rejected", "reason", err.Error())
		return jwtx.Claims{}, ErrInvalidToken
	}
	if err := claims.ValidateExpiry(s.now()); err != nil {
		slogx.FromContext(ctx).Debug("access token rejected", "reason", "expired")
		return jwtx.Claims{}, ErrInvalidToken
	}
	if resource == "" {
		return claims, nil
	}

	normalized, err := NormalizeResourceURI(resource)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !AudienceMatches(claims.TokenAudience(), normalized) {
		slogx.FromContext(ctx).Debug("access token rejected",
			"reason", "audience mismatch",
			"audience", claims.TokenAudience(),
			"resource", normalized,
		)
		return jwtx.Claims{}, ErrInvalidToken
	}

	return claims, nil
}

// Introspection is the server-side view of a presented token, for the
// introspection endpoint.
type Introspection struct {
	Active    bool
	Claims    jwtx.Claims
	TokenType string // "access_token" or "refresh_token"
	Scope     string
	ClientID  string
	UserID    string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Introspect resolves a presented token to its server-side state. It tries
// the token as a signed access token first, then as an opaque refresh
// token. Unknown, expired and revoked tokens all come back inactive.
func (s *TokenService) Introspect(ctx context.Context, token string) Introspection {
	now := s.now()

	if claims, err := s.signer.Verify(token); err == nil {
		if claims.ValidateExpiry(now) != nil {
			return Introspection{}
		}
		// Signature and expiry hold; the record check makes revocation
		// visible before the token's natural expiry.
		record, err := s.store.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(token))
		if err != nil {
			return Introspection{}
		}
		return Introspection{
			Active:    true,
			Claims:    claims,
			TokenType: "access_token",
			Scope:     record.Scope,
			ClientID:  record.ClientID,
			UserID:    record.UserID,
			ExpiresAt: record.ExpiresAt,
			IssuedAt:  record.CreatedAt,
		}
	}

	record, err := s.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil || !record.ExpiresAt.After(now) {
		return Introspection{}
	}
	return Introspection{
		Active:    true,
		TokenType: "refresh_token",
		Scope:     record.Scope,
		ClientID:  record.ClientID,
		UserID:    record.UserID,
		ExpiresAt: record.ExpiresAt,
		IssuedAt:  record.CreatedAt,
	}
}

// Revoke destroys the presented token's server-side record, trying refresh
// tokens first, then access tokens. Unknown tokens report false without
// error so the revocation endpoint stays idempotent.
func (s *TokenService) Revoke(ctx context.Context, token string) (bool, error) {
	hash := cryptox.FingerprintToken(token)

	revoked, err := s.store.RefreshTokens().DeleteRefreshToken(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	if revoked {
		return true, nil
	}

	revoked, err = s.store.AccessTokens().DeleteAccessToken(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("revoke access token: %w", err)
	}
	return revoked, nil
}

type issueParams struct {
	clientID string
	userID   string
	orgID    string
	scope    string
	audience string
	now      time.Time
}

func (s *TokenService) issuePair(ctx context.Context, p issueParams) (domain.TokenPair, error) {
	var pair domain.TokenPair
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		pair, err = s.issuePairTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

func (s *TokenService) issuePairTx(ctx context.Context, tx store.Tx, p issueParams) (domain.TokenPair, error) {
	user := s.fetchUserData(ctx, p.userID, p.orgID)
	accessExpiry := p.now.Add(s.accessTokenTTL)

	claims := jwtx.NewAccessClaims(
		s.issuer, p.audience, p.userID, p.orgID, p.clientID,
		user.Email, p.scope, user.APIKeyID, user.APIKeySecret,
		p.now, accessExpiry,
	)
	accessToken, err := s.signer.Sign(claims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	if err := tx.AccessTokens().CreateAccessToken(ctx, domain.AccessToken{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(accessToken),
		ClientID:  p.clientID,
		Resource:  p.audience,
		Scope:     p.scope,
		UserID:    p.userID,
		OrgID:     p.orgID,
		ExpiresAt: accessExpiry,
		CreatedAt: p.now,
	}); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store access token: %w", err)
	}

	refreshToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(refreshToken),
		ClientID:  p.clientID,
		Scope:     p.scope,
		UserID:    p.userID,
		OrgID:     p.orgID,
		ExpiresAt: p.now.Add(s.refreshTokenTTL),
		CreatedAt: p.now,
	}); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTokenTTL,
		Scope:        p.scope,
		RefreshToken: refreshToken,
	}, nil
}

func (s *TokenService) authenticateClient(ctx context.Context, clientID, clientSecret string) (domain.Client, error) {
	if clientID == "" {
		return domain.Client{}, fmt.Errorf("%w: client_id is required", ErrInvalidClient)
	}

	client, err := s.store.Clients().GetClientByID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, fmt.Errorf("%w: unknown client %q", ErrInvalidClient, clientID)
	}
	if err != nil {
		return domain.Client{}, fmt.Errorf("load client: %w", err)
	}

	if client.Confidential() {
		if err := cryptox.VerifySecret(clientSecret, client.SecretHash); err != nil {
			return domain.Client{}, fmt.Errorf("%w: client authentication failed", ErrInvalidClient)
		}
	}
	return client, nil
}

// resolveAudience normalizes the requested resource, falling back to the
// issuer plus the default resource path when none was requested.
func (s *TokenService) resolveAudience(resource string) (string, error) {
	if resource == "" {
		resource = s.issuer + s.resourcePath
	}
	return NormalizeResourceURI(resource)
}

func (s *TokenService) fetchUserData(ctx context.Context, userID, orgID string) UserData {
	if s.userData == nil {
		return FallbackUserData()
	}
	user, err := s.userData.UserData(ctx, userID, orgID)
	if err != nil {
		slogx.FromContext(ctx).Warn("user data lookup failed, using fallback",
			"user_id", userID,
			"org_id", orgID,
			"error", err.Error(),
		)
		return FallbackUserData()
	}
	if user.Email == "" {
		user.Email = FallbackEmail
	}
	return user
}

// narrowScope validates a rotation's requested scope against the original
// grant. Empty keeps the original; anything outside it is rejected.
func narrowScope(original, requested string) (string, error) {
	if requested == "" {
		return original, nil
	}

	granted := make(map[string]struct{})
	for _, sc := range strings.Fields(original) {
		granted[sc] = struct{}{}
	}
	for _, sc := range strings.Fields(requested) {
		if _, ok := granted[sc]; !ok {
			return "", fmt.Errorf("%w: scope %q exceeds the original grant", ErrInvalidScope, sc)
		}
	}
	return requested, nil
}
