package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitelib "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/relayforge/mcp-auth/internal/auth/domain"
	"github.com/relayforge/mcp-auth/internal/auth/store"
)

type clientRepo struct {
	db dbtx
}

// Redirect URIs are stored as a JSON array; grant and response types as
// space-delimited strings, matching their OAuth wire form.

func (r *clientRepo) CreateClient(ctx context.Context, client domain.Client) error {
	uris, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("sqlite: marshal redirect uris: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO clients (
			client_id, secret_hash, redirect_uris, grant_types, response_types,
			scope, name, uri, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ClientID,
		client.SecretHash,
		string(uris),
		strings.Join(client.GrantTypes, " "),
		strings.Join(client.ResponseTypes, " "),
		client.Scope,
		client.Name,
		client.URI,
		client.CreatedAt.UTC().Unix(),
		client.UpdatedAt.UTC().Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *clientRepo) GetClientByID(ctx context.Context, clientID string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT client_id, secret_hash, redirect_uris, grant_types, response_types,
		       scope, name, uri, created_at, updated_at
		FROM clients
		WHERE client_id = ?`, clientID)

	return scanClient(row)
}

func (r *clientRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT client_id, secret_hash, redirect_uris, grant_types, response_types,
		       scope, name, uri, created_at, updated_at
		FROM clients
		ORDER BY created_at, client_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *clientRepo) DeleteClient(ctx context.Context, clientID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE client_id = ?`, clientID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		client               domain.Client
		uris                 string
		grants, responses    string
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&client.ClientID, &client.SecretHash, &uris, &grants, &responses,
		&client.Scope, &client.Name, &client.URI, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Client{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Client{}, err
	}

	if err := json.Unmarshal([]byte(uris), &client.RedirectURIs); err != nil {
		return domain.Client{}, fmt.Errorf("sqlite: unmarshal redirect uris: %w", err)
	}
	client.GrantTypes = strings.Fields(grants)
	client.ResponseTypes = strings.Fields(responses)
	client.CreatedAt = time.Unix(createdAt, 0).UTC()
	client.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return client, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlitelib.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
