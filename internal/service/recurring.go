package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eduflow/billing-engine/internal/domain"
	"github.com/eduflow/billing-engine/internal/repository"
	customError "github.com/eduflow/billing-engine/pkg/errors"
	"github.com/eduflow/billing-engine/pkg/utils"
)

// CreateNextMonthlyPayment derives the obligation for month currentMonth+1 of
// a subscription course. Past the course duration it reports CourseCompleted
// instead of creating anything; that is the normal end of a subscription, not
// an error. The operation is idempotent: an existing non-CANCELLED payment
// for the next month (found by lookup or surfaced by the unique month-slot
// index under a concurrent call) short-circuits with AlreadyExisted.
func (s *BillingService) CreateNextMonthlyPayment(ctx context.Context, userID, courseID uuid.UUID, currentMonth int) (*domain.NextPaymentResult, error) {
	if currentMonth < 1 {
		return nil, customError.WrapInvalidArgument("current month number must be >= 1")
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapCourseNotFound(courseID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if course.PaymentType != domain.PaymentTypeMonthly {
		return nil, customError.WrapInvalidArgument(
			fmt.Sprintf("course %s is not billed monthly", courseID))
	}

	nextMonth := currentMonth + 1
	if nextMonth > course.DurationMonths {
		return &domain.NextPaymentResult{MonthNumber: nextMonth, CourseCompleted: true}, nil
	}

	if existing, err := s.payments.GetByMonth(ctx, userID, courseID, nextMonth); err == nil {
		return &domain.NextPaymentResult{Payment: existing, MonthNumber: nextMonth, AlreadyExisted: true}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapDatabaseError(err)
	}

	now := time.Now()
	due := utils.NextDueDate(now)

	payment := &domain.Payment{
		ID:          uuid.New(),
		UserID:      userID,
		CourseID:    courseID,
		Amount:      course.MonthlyPrice,
		Currency:    course.Currency,
		Status:      domain.PaymentStatusPending,
		PaymentType: domain.PaymentTypeMonthly,
		MonthNumber: &nextMonth,
		DueDate:     &due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		if repository.IsUniqueViolation(err) {
			// A concurrent generator won the slot; adopt its payment.
			existing, err := s.payments.GetByMonth(ctx, userID, courseID, nextMonth)
			if err != nil {
				return nil, customError.WrapDatabaseError(err)
			}
			return &domain.NextPaymentResult{Payment: existing, MonthNumber: nextMonth, AlreadyExisted: true}, nil
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if enrollment, err := s.enrollments.GetByUserCourse(ctx, userID, courseID); err == nil {
		if err := s.enrollments.SetNextPaymentDue(ctx, enrollment.ID, &due); err != nil {
			s.logf("recurring: setting next_payment_due for enrollment %s: %v", enrollment.ID, err)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logf("recurring: loading enrollment for (%s, %s): %v", userID, courseID, err)
	}

	message := fmt.Sprintf("Your next payment of %s %s for month %d of %q is due on %s.",
		payment.Amount.StringFixed(2), payment.Currency, nextMonth, course.Title, due.Format("2006-01-02"))
	if _, err := s.notifier.Notify(ctx, userID, domain.NotificationNextPaymentCreated, payment.ID, message); err != nil {
		s.logf("recurring: next_payment_created notification for payment %s: %v", payment.ID, err)
	}

	return &domain.NextPaymentResult{Payment: payment, MonthNumber: nextMonth}, nil
}
