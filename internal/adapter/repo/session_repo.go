package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"drafted/internal/domain"
)

const sessionColumns = `id, user_id, title, status, created_at`

func (s *PGStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
INSERT INTO sessions (id, user_id, title, status, created_at)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := s.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Title,
		session.Status,
		session.CreatedAt,
	)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}

func (s *PGStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
	return scanSession(row)
}

func (s *PGStore) ListSessionsForUser(ctx context.Context, userID string) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var sess domain.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.Status, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}
