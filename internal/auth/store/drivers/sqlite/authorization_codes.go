package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/relayforge/mcp-auth/internal/auth/domain"
	"github.com/relayforge/mcp-auth/internal/auth/store"
)

type authorizationCodeRepo struct {
	db dbtx
}

func (r *authorizationCodeRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_codes (
			id, code_hash, client_id, redirect_uri, code_challenge,
			code_challenge_method, resource, scope, user_id, org_id,
			expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.CodeHash,
		code.ClientID,
		code.RedirectURI,
		code.CodeChallenge,
		code.CodeChallengeMethod,
		code.Resource,
		code.Scope,
		code.UserID,
		code.OrgID,
		code.ExpiresAt.UTC().Unix(),
		code.CreatedAt.UTC().Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// ConsumeAuthorizationCode deletes and returns the matching unexpired code
// in one statement. SQLite serializes writers, so of N concurrent callers
// exactly one gets the row back and the rest see ErrNotFound.
func (r *authorizationCodeRepo) ConsumeAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (domain.AuthorizationCode, error) {
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM authorization_codes
		WHERE code_hash = ? AND expires_at > ?
		RETURNING id, code_hash, client_id, redirect_uri, code_challenge,
		          code_challenge_method, resource, scope, user_id, org_id,
		          expires_at, created_at`,
		codeHash, now.UTC().Unix())

	var (
		code                 domain.AuthorizationCode
		expiresAt, createdAt int64
	)
	err := row.Scan(
		&code.ID, &code.CodeHash, &code.ClientID, &code.RedirectURI,
		&code.CodeChallenge, &code.CodeChallengeMethod, &code.Resource,
		&code.Scope, &code.UserID, &code.OrgID, &expiresAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AuthorizationCode{}, store.ErrNotFound
	}
	if err != nil {
		return domain.AuthorizationCode{}, err
	}

	code.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	code.CreatedAt = time.Unix(createdAt, 0).UTC()
	return code, nil
}

func (r *authorizationCodeRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at <= ?`, now.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
