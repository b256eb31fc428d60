package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/mcp-auth/internal/auth/scope"
)

func newTestRegistry() *scope.Registry {
	r := scope.NewRegistry()
	r.Register("mcp:read", "Read access", "Read resources.", true)
	r.Register("mcp:write", "Write access", "Modify resources.", false)
	return r
}

func TestAuthorizeValidate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewAuthorizeService(st, newTestRegistry(), 0)
	client := seedClient(t, st, "")

	valid := AuthorizationRequest{
		ClientID:            client.ClientID,
		RedirectURI:         "https://app.example/callback",
		ResponseType:        "code",
		Scope:               "mcp:read mcp:write",
		State:               "xyz",
		CodeChallenge:       s256Challenge("some-verifier"),
		CodeChallengeMethod: "S256",
	}

	t.Run("accepts a well-formed request", func(t *testing.T) {
		validated, err := svc.Validate(ctx, valid)
		require.NoError(t, err)
		require.Equal(t, client.ClientID, validated.Client.ClientID)
		require.Equal(t, "mcp:read mcp:write", validated.Scope)
		require.Equal(t, "xyz", validated.State)
	})

	t.Run("unknown client", func(t *testing.T) {
		req := valid
		req.ClientID = "nope"
		_, err := svc.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("unregistered redirect uri", func(t *testing.T) {
		req := valid
		req.RedirectURI = "https://evil.example/callback"
		_, err := svc.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRedirect)
	})

	t.Run("missing redirect uri", func(t *testing.T) {
		req := valid
		req.RedirectURI = ""
		_, err := svc.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRedirect)
	})

	t.Run("unsupported response type", func(t *testing.T) {
		req := valid
		req.ResponseType = "token"
		_, err := svc.Validate(ctx, req)
		require.ErrorIs(t, err, ErrUnsupportedResponseType)
	})

	t.Run("missing code challenge", func(t *testing.T) {
		req := valid
		req.CodeChallenge = ""
		_, err := svc.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("plain challenge method rejected", func(t *testing.T) {
		req := valid
		req.CodeChallengeMethod = "plain"
		_, err := svc.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown scopes reduce to the grantable set", func(t *testing.T) {
		req := valid
		req.Scope = "mcp:write bogus"
		validated, err := svc.Validate(ctx, req)
		require.NoError(t, err)
		require.Equal(t, "mcp:write mcp:read", validated.Scope)
	})

	t.Run("resource is normalized", func(t *testing.T) {
		req := valid
		req.Resource = "HTTPS://API.Example.COM:443/mcp/"
		validated, err := svc.Validate(ctx, req)
		require.NoError(t, err)
		require.Equal(t, "https://api.example.com/mcp", validated.Resource)
	})

	t.Run("malformed resource rejected", func(t *testing.T) {
		req := valid
		req.Resource = "not-a-uri"
		_, err := svc.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestAuthorizeApprove(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	authorize := NewAuthorizeService(st, newTestRegistry(), 0)
	tokens := newTestTokenService(t, st)
	client := seedClient(t, st, "")

	verifier := "approve-flow-verifier-with-plenty-of-entropy"
	validated, err := authorize.Validate(ctx, AuthorizationRequest{
		ClientID:            client.ClientID,
		RedirectURI:         "https://app.example/callback",
		ResponseType:        "code",
		Scope:               "mcp:read",
		CodeChallenge:       s256Challenge(verifier),
		CodeChallengeMethod: "S256",
	})
	require.NoError(t, err)

	t.Run("approval mints a redeemable code", func(t *testing.T) {
		code, err := authorize.Approve(ctx, validated, "user-1", "org-1")
		require.NoError(t, err)
		require.NotEmpty(t, code)

		pair, err := tokens.ExchangeAuthorizationCode(ctx, AuthorizationCodeExchange{
			ClientID:     client.ClientID,
			Code:         code,
			RedirectURI:  "https://app.example/callback",
			CodeVerifier: verifier,
		})
		require.NoError(t, err)
		require.Equal(t, "mcp:read", pair.Scope)
	})

	t.Run("approval without a user is denied", func(t *testing.T) {
		_, err := authorize.Approve(ctx, validated, "", "")
		require.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("expired codes cannot be redeemed", func(t *testing.T) {
		short := NewAuthorizeService(st, newTestRegistry(), time.Minute)
		short.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

		code, err := short.Approve(ctx, validated, "user-1", "")
		require.NoError(t, err)

		_, err = tokens.ExchangeAuthorizationCode(ctx, AuthorizationCodeExchange{
			ClientID:     client.ClientID,
			Code:         code,
			RedirectURI:  "https://app.example/callback",
			CodeVerifier: verifier,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}
