package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/relayforge/mcp-auth/internal/auth/domain"
	"github.com/relayforge/mcp-auth/internal/auth/store"
)

type refreshTokenRepo struct {
	db dbtx
}

func (r *refreshTokenRepo) CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (
			id, token_hash, client_id, scope, user_id, org_id,
			expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.TokenHash,
		token.ClientID,
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

func (r *refreshTokenRepo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, token_hash, client_id, scope, user_id, org_id,
		       expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = ?`, tokenHash)
	return scanRefreshToken(row)
}

// ConsumeRefreshToken deletes and returns the matching unexpired token in a
// single statement, the first write of a rotation transaction.
func (r *refreshTokenRepo) ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE token_hash = ? AND expires_at > ?
		RETURNING id, token_hash, client_id, scope, user_id, org_id,
		          expires_at, created_at`,
		tokenHash, now.UTC().Unix())
	return scanRefreshToken(row)
}

func (r *refreshTokenRepo) DeleteRefreshToken(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *refreshTokenRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, now.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRefreshToken(row *sql.Row) (domain.RefreshToken, error) {
	var (
		token                domain.RefreshToken
		expiresAt, createdAt int64
	)
	err := row.Scan(
		&token.ID, &token.TokenHash, &token.ClientID, &token.Scope,
		&token.UserID, &token.OrgID, &expiresAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshToken{}, err
	}

	token.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	token.CreatedAt = time.Unix(createdAt, 0).UTC()
	return token, nil
}
