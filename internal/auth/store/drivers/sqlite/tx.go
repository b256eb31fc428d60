package sqlite

import (
	"database/sql"

	"github.com/relayforge/mcp-auth/internal/auth/store"
)

// Tx binds the repositories to an open transaction.
type Tx struct {
	tx *sql.Tx
}

var _ store.Tx = (*Tx)(nil)

func (t *Tx) Clients() store.ClientRepository { return &clientRepo{db: t.tx} }

func (t *Tx) AuthorizationCodes() store.AuthorizationCodeRepository {
	return &authorizationCodeRepo{db: t.tx}
}

func (t *Tx) AccessTokens() store.AccessTokenRepository { return &accessTokenRepo{db: t.tx} }

func (t *Tx) RefreshTokens() store.RefreshTokenRepository { return &refreshTokenRepo{db: t.tx} }
