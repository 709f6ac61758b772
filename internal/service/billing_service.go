package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/eduflow/billing-engine/internal/config"
	"github.com/eduflow/billing-engine/internal/domain"
	"github.com/eduflow/billing-engine/internal/repository"
	customError "github.com/eduflow/billing-engine/pkg/errors"
	"github.com/eduflow/billing-engine/pkg/utils"
)

// Notifier is the dispatch contract consumed by the engine. The boolean
// reports whether a notification was actually created (duplicates inside the
// dedup window are suppressed and return false).
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, ntype domain.NotificationType, relatedEntityID uuid.UUID, message string) (bool, error)
}

// BillingService owns the payment ledger, the recurring billing generator and
// the enrollment access controller. It is stateless: every decision is made
// against a fresh read of the store, which is what makes the batch operations
// safe to re-run on any schedule.
type BillingService struct {
	payments    repository.PaymentRepository
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
	users       repository.UserRepository
	notifier    Notifier
	config      *config.Config
}

func NewBillingService(
	payments repository.PaymentRepository,
	enrollments repository.EnrollmentRepository,
	courses repository.CourseRepository,
	users repository.UserRepository,
	notifier Notifier,
	cfg *config.Config,
) *BillingService {
	return &BillingService{
		payments:    payments,
		enrollments: enrollments,
		courses:     courses,
		users:       users,
		notifier:    notifier,
		config:      cfg,
	}
}

// Enroll creates the enrollment for a (user, course) pair together with its
// initial payment obligation: month 1 for MONTHLY courses, the full price
// otherwise. The enrollment starts ACTIVE with payment PENDING; the overdue
// sweep suspends it if the first payment lapses.
func (s *BillingService) Enroll(ctx context.Context, userID, courseID uuid.UUID, notes string) (*domain.Enrollment, *domain.Payment, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, customError.WrapUserNotFound(userID.String())
		}
		return nil, nil, customError.WrapDatabaseError(err)
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, customError.WrapCourseNotFound(courseID.String())
		}
		return nil, nil, customError.WrapDatabaseError(err)
	}

	if _, err := s.enrollments.GetByUserCourse(ctx, userID, courseID); err == nil {
		return nil, nil, customError.WrapDuplicateEnrollment(userID.String(), courseID.String())
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	now := time.Now()
	due := utils.NextDueDate(now)

	enrollment := &domain.Enrollment{
		ID:             uuid.New(),
		UserID:         userID,
		CourseID:       courseID,
		Status:         domain.EnrollmentStatusActive,
		PaymentStatus:  domain.PaymentStatusPending,
		NextPaymentDue: &due,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	payment := &domain.Payment{
		ID:          uuid.New(),
		UserID:      userID,
		CourseID:    courseID,
		Amount:      course.Price(),
		Currency:    course.Currency,
		Status:      domain.PaymentStatusPending,
		PaymentType: course.PaymentType,
		DueDate:     &due,
		Notes:       notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if course.PaymentType == domain.PaymentTypeMonthly {
		firstMonth := 1
		payment.MonthNumber = &firstMonth
	}

	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, nil, customError.WrapDuplicateEnrollment(userID.String(), courseID.String())
		}
		return nil, nil, customError.WrapDatabaseError(err)
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	message := fmt.Sprintf("Hi %s, your payment of %s %s for %q is due on %s.",
		user.Name, payment.Amount.StringFixed(2), payment.Currency, course.Title, due.Format("2006-01-02"))
	if _, err := s.notifier.Notify(ctx, userID, domain.NotificationPaymentDue, payment.ID, message); err != nil {
		s.logf("enroll: payment_due notification for payment %s: %v", payment.ID, err)
	}

	return enrollment, payment, nil
}

// CreatePayment records a new obligation in PENDING state. For MONTHLY
// payments the (user, course, month) slot must be free of non-CANCELLED
// payments.
func (s *BillingService) CreatePayment(ctx context.Context, req *domain.CreatePaymentRequest) (*domain.Payment, error) {
	if !req.PaymentType.Valid() {
		return nil, customError.WrapInvalidArgument(fmt.Sprintf("unknown payment type %q", req.PaymentType))
	}
	if !req.Amount.IsPositive() {
		return nil, customError.WrapInvalidArgument("amount must be greater than zero")
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, customError.WrapInvalidArgument("user_id is not a valid UUID")
	}
	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		return nil, customError.WrapInvalidArgument("course_id is not a valid UUID")
	}

	if req.PaymentType == domain.PaymentTypeMonthly {
		if req.MonthNumber == nil || *req.MonthNumber < 1 {
			return nil, customError.WrapInvalidArgument("month_number is required for MONTHLY payments and must be >= 1")
		}
	} else if req.MonthNumber != nil {
		return nil, customError.WrapInvalidArgument("month_number is only valid for MONTHLY payments")
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapUserNotFound(req.UserID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapCourseNotFound(req.CourseID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if req.MonthNumber != nil {
		if _, err := s.payments.GetByMonth(ctx, userID, courseID, *req.MonthNumber); err == nil {
			return nil, customError.WrapDuplicateMonthPayment(*req.MonthNumber)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapDatabaseError(err)
		}
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:          uuid.New(),
		UserID:      userID,
		CourseID:    courseID,
		Amount:      req.Amount,
		Currency:    course.Currency,
		Status:      domain.PaymentStatusPending,
		PaymentType: req.PaymentType,
		MonthNumber: req.MonthNumber,
		DueDate:     req.DueDate,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		if repository.IsUniqueViolation(err) && req.MonthNumber != nil {
			return nil, customError.WrapDuplicateMonthPayment(*req.MonthNumber)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	return payment, nil
}

func (s *BillingService) logf(format string, args ...interface{}) {
	log.Printf(format, args...)
}
