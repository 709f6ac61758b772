package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/eduflow/billing-engine/internal/domain"
	"github.com/eduflow/billing-engine/pkg/utils"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (the month-slot index relies on this).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const paymentColumns = `id, user_id, course_id, amount, currency, status, payment_type,
		month_number, due_date, paid_at, payment_method, transaction_id, notes, created_at, updated_at`

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, course_id, amount, currency, status, payment_type,
			month_number, due_date, paid_at, payment_method, transaction_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.UserID,
		payment.CourseID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.PaymentType,
		payment.MonthNumber,
		payment.DueDate,
		payment.PaidAt,
		payment.PaymentMethod,
		payment.TransactionID,
		payment.Notes,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return err
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) GetByMonth(ctx context.Context, userID, courseID uuid.UUID, monthNumber int) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1 AND course_id = $2 AND month_number = $3 AND status <> $4
		ORDER BY created_at DESC
		LIMIT 1
	`

	var payment domain.Payment
	err := r.db.GetContext(ctx, &payment, query, userID, courseID, monthNumber, domain.PaymentStatusCancelled)
	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET amount = $2, due_date = $3, paid_at = $4, payment_method = $5,
			transaction_id = $6, notes = $7, updated_at = $8
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.Amount,
		payment.DueDate,
		payment.PaidAt,
		payment.PaymentMethod,
		payment.TransactionID,
		payment.Notes,
		time.Now(),
	)

	return err
}

func (r *paymentRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, paymentMethod, transactionID *string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2, paid_at = $3,
			payment_method = COALESCE($4, payment_method),
			transaction_id = COALESCE($5, transaction_id),
			updated_at = $6
		WHERE id = $1 AND status IN ($7, $8)
	`

	res, err := r.db.ExecContext(ctx, query,
		id,
		domain.PaymentStatusPaid,
		paidAt,
		paymentMethod,
		transactionID,
		time.Now(),
		domain.PaymentStatusPending,
		domain.PaymentStatusOverdue,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *paymentRepository) Transition(ctx context.Context, id uuid.UUID, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error) {
	placeholders := make([]string, 0, len(from))
	args := []interface{}{id, to, time.Now()}
	for i, status := range from {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+4))
		args = append(args, status)
	}

	query := fmt.Sprintf(`
		UPDATE payments
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status IN (%s)
	`, strings.Join(placeholders, ", "))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *paymentRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	// PAID rows are immutable; the guard is enforced here as well as in the
	// service so a racing mark-paid cannot slip a delete through.
	query := `DELETE FROM payments WHERE id = $1 AND status <> $2`

	res, err := r.db.ExecContext(ctx, query, id, domain.PaymentStatusPaid)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	return affected > 0, err
}

func buildFilter(filter domain.PaymentFilter, withStatus bool) (string, []interface{}) {
	clauses := []string{"1=1"}
	args := []interface{}{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if withStatus && filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.PaymentType != nil {
		add("payment_type = $%d", *filter.PaymentType)
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.CourseID != nil {
		add("course_id = $%d", *filter.CourseID)
	}

	return strings.Join(clauses, " AND "), args
}

func (r *paymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, int, error) {
	where, args := buildFilter(filter, true)

	var total int
	countQuery := `SELECT COUNT(*) FROM payments WHERE ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	page, limit := utils.NormalizePagination(filter.Page, filter.Limit)
	query := fmt.Sprintf(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, len(args)+1, len(args)+2)
	args = append(args, limit, utils.Offset(page, limit))

	payments := []*domain.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

func (r *paymentRepository) CountByStatus(ctx context.Context, filter domain.PaymentFilter) (map[string]int, error) {
	where, args := buildFilter(filter, false)

	query := `
		SELECT status, COUNT(*) AS count
		FROM payments
		WHERE ` + where + `
		GROUP BY status
	`

	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func (r *paymentRepository) Stats(ctx context.Context) (*domain.PaymentStats, error) {
	counts, err := r.CountByStatus(ctx, domain.PaymentFilter{})
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = $1), 0) AS collected,
			COALESCE(SUM(amount) FILTER (WHERE status IN ($2, $3)), 0) AS outstanding
		FROM payments
	`

	var row struct {
		Collected   decimal.Decimal `db:"collected"`
		Outstanding decimal.Decimal `db:"outstanding"`
	}
	err = r.db.GetContext(ctx, &row, query,
		domain.PaymentStatusPaid,
		domain.PaymentStatusPending,
		domain.PaymentStatusOverdue,
	)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	return &domain.PaymentStats{
		TotalPayments:    total,
		StatusCounts:     counts,
		TotalCollected:   row.Collected,
		TotalOutstanding: row.Outstanding,
	}, nil
}

func (r *paymentRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN ($1, $2) AND due_date IS NOT NULL AND due_date < $3
		ORDER BY due_date
	`

	payments := []*domain.Payment{}
	err := r.db.SelectContext(ctx, &payments, query,
		domain.PaymentStatusPending,
		domain.PaymentStatusOverdue,
		now,
	)
	if err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) ListPendingDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1 AND due_date IS NOT NULL AND due_date >= $2 AND due_date <= $3
		ORDER BY due_date
	`

	payments := []*domain.Payment{}
	err := r.db.SelectContext(ctx, &payments, query, domain.PaymentStatusPending, from, to)
	if err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) LatestPaid(ctx context.Context, userID, courseID uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1 AND course_id = $2 AND status = $3
		ORDER BY paid_at DESC NULLS LAST
		LIMIT 1
	`

	var payment domain.Payment
	err := r.db.GetContext(ctx, &payment, query, userID, courseID, domain.PaymentStatusPaid)
	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) HasBlockingObligation(ctx context.Context, userID, courseID uuid.UUID, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE user_id = $1 AND course_id = $2
			  AND (status = $3 OR (status = $4 AND due_date IS NOT NULL AND due_date < $5))
		)
	`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query,
		userID,
		courseID,
		domain.PaymentStatusOverdue,
		domain.PaymentStatusPending,
		now,
	)
	if err != nil {
		return false, err
	}

	return exists, nil
}
