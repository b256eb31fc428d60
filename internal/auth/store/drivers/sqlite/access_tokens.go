package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/relayforge/mcp-auth/internal/auth/domain"
	"github.com/relayforge/mcp-auth/internal/auth/store"
)

type accessTokenRepo struct {
	db dbtx
}

func (r *accessTokenRepo) CreateAccessToken(ctx context.Context, token domain.AccessToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens (
			id, token_hash, client_id, resource, scope, user_id, org_id,
			expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.TokenHash,
		token.ClientID,
		token.Resource,
		token.Scope,
		token.UserID,
		token.OrgID,
		token.ExpiresAt.UTC().Unix(),
		token.CreatedAt.UTC().Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *accessTokenRepo) GetAccessTokenByHash(ctx context.Context, tokenHash string) (domain.AccessToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, token_hash, client_id, resource, scope, user_id, org_id,
		       expires_at, created_at
		FROM access_tokens
		WHERE token_hash = ?`, tokenHash)

	var (
		token                domain.AccessToken
		expiresAt, createdAt int64
	)
	err := row.Scan(
		&token.ID, &token.TokenHash, &token.ClientID, &token.Resource,
		&token.Scope, &token.UserID, &token.OrgID, &expiresAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AccessToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.AccessToken{}, err
	}

	token.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	token.CreatedAt = time.Unix(createdAt, 0).UTC()
	return token, nil
}

func (r *accessTokenRepo) DeleteAccessToken(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *accessTokenRepo) DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE expires_at <= ?`, now.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
