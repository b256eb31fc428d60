// Package store defines the persistence contracts for the authorization
// server. Services speak to these interfaces only; the concrete driver
// lives under store/drivers.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/relayforge/mcp-auth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the top-level persistence handle. WithTx runs fn inside a single
// database transaction; any error from fn rolls the whole transaction back.
type Store interface {
	Clients() ClientRepository
	AuthorizationCodes() AuthorizationCodeRepository
	AccessTokens() AccessTokenRepository
	RefreshTokens() RefreshTokenRepository

	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx exposes the same repositories bound to an open transaction.
type Tx interface {
	Clients() ClientRepository
	AuthorizationCodes() AuthorizationCodeRepository
	AccessTokens() AccessTokenRepository
	RefreshTokens() RefreshTokenRepository
}

type ClientRepository interface {
	CreateClient(ctx context.Context, client domain.Client) error
	GetClientByID(ctx context.Context, clientID string) (domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	// DeleteClient removes the client; codes and tokens cascade. Reports
	// whether a row was deleted.
	DeleteClient(ctx context.Context, clientID string) (bool, error)
}

type AuthorizationCodeRepository interface {
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error
	// ConsumeAuthorizationCode atomically deletes and returns the unexpired
	// code with the given fingerprint. ErrNotFound means the code never
	// existed, already expired, or was already redeemed; the three cases are
	// indistinguishable on purpose.
	ConsumeAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (domain.AuthorizationCode, error)
	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error)
}

type AccessTokenRepository interface {
	CreateAccessToken(ctx context.Context, token domain.AccessToken) error
	GetAccessTokenByHash(ctx context.Context, tokenHash string) (domain.AccessToken, error)
	// DeleteAccessToken reports whether a row was deleted so revocation can
	// stay idempotent without a prior lookup.
	DeleteAccessToken(ctx context.Context, tokenHash string) (bool, error)
	DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokenRepository interface {
	CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (domain.RefreshToken, error)
	// ConsumeRefreshToken atomically deletes and returns the unexpired
	// refresh token, the rotation primitive. Second caller gets ErrNotFound.
	ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) (bool, error)
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
