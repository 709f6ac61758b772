package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eduflow/billing-engine/internal/domain"
)

// PaymentRepository defines the interface for payment ledger data operations.
// Status-changing methods are compare-and-set: they report whether the row
// actually moved, so callers can distinguish "done" from "already done".
type PaymentRepository interface {
	// Create inserts a new payment
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	// GetByMonth retrieves the non-CANCELLED payment occupying a
	// (user, course, month) slot, if any
	GetByMonth(ctx context.Context, userID, courseID uuid.UUID, monthNumber int) (*domain.Payment, error)

	// Update persists mutable payment fields (amount, due date, notes, ...)
	Update(ctx context.Context, payment *domain.Payment) error

	// MarkPaid transitions PENDING/OVERDUE -> PAID, stamping paid_at and the
	// transaction details; returns false when the payment was not in a
	// payable state
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, paymentMethod, transactionID *string) (bool, error)

	// Transition moves a payment from any of the given statuses to the
	// target status; returns false when the current status did not match
	Transition(ctx context.Context, id uuid.UUID, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error)

	// Delete removes a payment unless it is PAID; returns false when no row
	// was deleted
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// List returns a filtered page of payments and the total match count
	List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, int, error)

	// CountByStatus returns per-status counts for the filter (ignoring its
	// Status field)
	CountByStatus(ctx context.Context, filter domain.PaymentFilter) (map[string]int, error)

	// Stats aggregates ledger-wide counts and amounts
	Stats(ctx context.Context) (*domain.PaymentStats, error)

	// ListOverdueCandidates returns PENDING/OVERDUE payments whose due date
	// has passed
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Payment, error)

	// ListPendingDueBetween returns PENDING payments due inside the window
	ListPendingDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Payment, error)

	// LatestPaid returns the most recently paid payment for the pair
	LatestPaid(ctx context.Context, userID, courseID uuid.UUID) (*domain.Payment, error)

	// HasBlockingObligation reports whether the pair still has an OVERDUE
	// payment, or a PENDING one already past due
	HasBlockingObligation(ctx context.Context, userID, courseID uuid.UUID, now time.Time) (bool, error)
}

// EnrollmentRepository defines the interface for enrollment data operations.
type EnrollmentRepository interface {
	// Create inserts a new enrollment
	Create(ctx context.Context, enrollment *domain.Enrollment) error

	// GetByUserCourse retrieves the enrollment for a (user, course) pair
	GetByUserCourse(ctx context.Context, userID, courseID uuid.UUID) (*domain.Enrollment, error)

	// ListSuspended returns all SUSPENDED enrollments
	ListSuspended(ctx context.Context) ([]*domain.Enrollment, error)

	// MarkPaid sets payment_status=PAID and reactivates a SUSPENDED
	// enrollment; returns false when the enrollment was already PAID
	MarkPaid(ctx context.Context, id uuid.UUID) (bool, error)

	// Suspend moves ACTIVE -> SUSPENDED/OVERDUE; returns false unless the
	// enrollment was ACTIVE
	Suspend(ctx context.Context, id uuid.UUID) (bool, error)

	// Restore moves SUSPENDED -> ACTIVE/PAID; returns false unless the
	// enrollment was SUSPENDED
	Restore(ctx context.Context, id uuid.UUID) (bool, error)

	// SetNextPaymentDue updates the upcoming due date marker
	SetNextPaymentDue(ctx context.Context, id uuid.UUID, due *time.Time) error
}

// CourseRepository reads course pricing data owned by the content domain.
type CourseRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error)
}

// UserRepository reads user data owned by the identity domain.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// NotificationRepository persists dispatched notifications and answers the
// deduplication lookback query.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error

	// ExistsSince reports whether an equivalent notification was created
	// after the given instant
	ExistsSince(ctx context.Context, userID uuid.UUID, ntype domain.NotificationType, relatedEntityID uuid.UUID, since time.Time) (bool, error)
}
