package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"drafted/internal/domain"
)

const userColumns = `id, email, password_hash, plan_tier, credits, created_at`

// CreateUser inserts an account. Emails are unique case-insensitively; a
// duplicate surfaces as domain.ErrDuplicateAccount.
func (s *PGStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
INSERT INTO users (id, email, password_hash, plan_tier, credits, created_at)
VALUES ($1, lower($2), $3, $4, $5, $6);
`
	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.PlanTier,
		user.Credits,
		user.CreatedAt,
	)
	if err != nil {
		if errors.Is(mapPGError(err), domain.ErrConflict) {
			return domain.ErrDuplicateAccount
		}
		return err
	}
	return nil
}

func (s *PGStore) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *PGStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PlanTier, &u.Credits, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
