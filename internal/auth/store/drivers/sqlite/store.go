// Package sqlite implements store.Store on SQLite via the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/relayforge/mcp-auth/internal/auth/store"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// same repository code serves both.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB

	clients *clientRepo
	codes   *authorizationCodeRepo
	access  *accessTokenRepo
	refresh *refreshTokenRepo
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the SQLite database at dsn and runs any
// pending migrations. Foreign keys are enabled per connection; WAL keeps
// readers from blocking the single writer.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", applyPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", dsn, err)
	}

	// An in-memory database exists per connection; restrict the pool to a
	// single connection so every caller sees the same database.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &Store{
		db:      db,
		clients: &clientRepo{db: db},
		codes:   &authorizationCodeRepo{db: db},
		access:  &accessTokenRepo{db: db},
		refresh: &refreshTokenRepo{db: db},
	}, nil
}

func applyPragmas(dsn string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + pragmas
	}
	return dsn + "?" + pragmas
}

func (s *Store) Clients() store.ClientRepository { return s.clients }

func (s *Store) AuthorizationCodes() store.AuthorizationCodeRepository { return s.codes }

func (s *Store) AccessTokens() store.AccessTokenRepository { return s.access }

func (s *Store) RefreshTokens() store.RefreshTokenRepository { return s.refresh }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

// WithTx runs fn in a single transaction. fn returning an error rolls
// everything back; a panic is re-raised after rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			sqlTx.Rollback()
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit tx: %w", err)
	}
	committed = true
	return nil
}
