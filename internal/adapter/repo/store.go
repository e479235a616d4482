// Package repo provides the persistence adapters behind domain.Store: a
// PostgreSQL implementation for deployments and an in-memory one for tests
// and single-node development.
package repo

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"drafted/internal/domain"
)

// PGStore implements domain.Store backed by PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store on the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// mapPGError translates driver errors into domain sentinels. Unique
// violations become ErrConflict so callers can resolve insert races.
func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return domain.ErrConflict
		case pgerrcode.ForeignKeyViolation:
			return domain.ErrNotFound
		}
	}
	return err
}
