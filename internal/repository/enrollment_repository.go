package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eduflow/billing-engine/internal/domain"
)

type enrollmentRepository struct {
	db *sqlx.DB
}

func NewEnrollmentRepository(db *sqlx.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

const enrollmentColumns = `id, user_id, course_id, status, payment_status, next_payment_due, created_at, updated_at`

func (r *enrollmentRepository) Create(ctx context.Context, enrollment *domain.Enrollment) error {
	query := `
		INSERT INTO enrollments (id, user_id, course_id, status, payment_status, next_payment_due, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.UserID,
		enrollment.CourseID,
		enrollment.Status,
		enrollment.PaymentStatus,
		enrollment.NextPaymentDue,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	)

	return err
}

func (r *enrollmentRepository) GetByUserCourse(ctx context.Context, userID, courseID uuid.UUID) (*domain.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id = $1 AND course_id = $2`

	var enrollment domain.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID); err != nil {
		return nil, err
	}

	return &enrollment, nil
}

func (r *enrollmentRepository) ListSuspended(ctx context.Context) ([]*domain.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE status = $1 ORDER BY updated_at`

	enrollments := []*domain.Enrollment{}
	if err := r.db.SelectContext(ctx, &enrollments, query, domain.EnrollmentStatusSuspended); err != nil {
		return nil, err
	}

	return enrollments, nil
}

// MarkPaid flips the billing side to PAID and lifts a suspension in the same
// statement, so no intermediate PAID/SUSPENDED state is ever visible.
func (r *enrollmentRepository) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE enrollments
		SET payment_status = $2,
			status = CASE WHEN status = $3 THEN $4 ELSE status END,
			updated_at = $5
		WHERE id = $1 AND (payment_status <> $2 OR status = $3)
	`

	res, err := r.db.ExecContext(ctx, query,
		id,
		domain.PaymentStatusPaid,
		domain.EnrollmentStatusSuspended,
		domain.EnrollmentStatusActive,
		time.Now(),
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *enrollmentRepository) Suspend(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE enrollments
		SET status = $2, payment_status = $3, updated_at = $4
		WHERE id = $1 AND status = $5
	`

	res, err := r.db.ExecContext(ctx, query,
		id,
		domain.EnrollmentStatusSuspended,
		domain.PaymentStatusOverdue,
		time.Now(),
		domain.EnrollmentStatusActive,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *enrollmentRepository) Restore(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE enrollments
		SET status = $2, payment_status = $3, updated_at = $4
		WHERE id = $1 AND status = $5
	`

	res, err := r.db.ExecContext(ctx, query,
		id,
		domain.EnrollmentStatusActive,
		domain.PaymentStatusPaid,
		time.Now(),
		domain.EnrollmentStatusSuspended,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *enrollmentRepository) SetNextPaymentDue(ctx context.Context, id uuid.UUID, due *time.Time) error {
	query := `UPDATE enrollments SET next_payment_due = $2, updated_at = $3 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, due, time.Now())
	return err
}
