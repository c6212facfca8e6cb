package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
)

type enrollmentsRepo struct {
	db *sql.DB
}

const (
	getEnrollment = `SELECT user_id, secret, created_at FROM twofactor_enrollments WHERE user_id = ?`

	putEnrollment = `INSERT INTO twofactor_enrollments (user_id, secret, created_at) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET secret = excluded.secret, created_at = excluded.created_at`

	deleteEnrollment = `DELETE FROM twofactor_enrollments WHERE user_id = ?`
)

func (r *enrollmentsRepo) GetEnrollment(ctx context.Context, userID string) (domain.Enrollment, error) {
	var (
		e         domain.Enrollment
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, getEnrollment, userID).Scan(&e.UserID, &e.Secret, &createdAt)
	if err != nil {
		return domain.Enrollment{}, mapNotFound(err)
	}
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	return e, nil
}

func (r *enrollmentsRepo) PutEnrollment(ctx context.Context, e domain.Enrollment) error {
	_, err := r.db.ExecContext(ctx, putEnrollment, e.UserID, e.Secret, e.CreatedAt.UnixMilli())
	return err
}

func (r *enrollmentsRepo) DeleteEnrollment(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, deleteEnrollment, userID)
	return err
}
