package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eduflow/billing-engine/internal/domain"
	customError "github.com/eduflow/billing-engine/pkg/errors"
)

// RunAccessControl dispatches one of the idempotent batch sweeps. The sweeps
// re-derive everything from current store state, so running them twice, on
// any schedule, or concurrently never duplicates a suspension, restoration or
// notification.
func (s *BillingService) RunAccessControl(ctx context.Context, action domain.AccessControlAction) (*domain.SweepSummary, error) {
	switch action {
	case domain.ActionCheckOverduePayments:
		return s.CheckOverduePayments(ctx)
	case domain.ActionRestoreAccessAfterPayment:
		return s.RestoreAccessAfterPayment(ctx)
	case domain.ActionSendPaymentReminders:
		return s.SendPaymentReminders(ctx)
	default:
		return nil, customError.WrapInvalidArgument(fmt.Sprintf("unknown access control action %q", action))
	}
}

// CheckOverduePayments sweeps payments past their due date: PENDING ones are
// flagged OVERDUE, and the matching ACTIVE enrollment is suspended. Both
// steps are conditional updates, so already-handled rows count as zero new
// work and a concurrent sweep cannot double-suspend. The overdue notification
// only goes out when this run performed the suspension, with the dedup window
// as a second guard.
func (s *BillingService) CheckOverduePayments(ctx context.Context) (*domain.SweepSummary, error) {
	summary := &domain.SweepSummary{Action: domain.ActionCheckOverduePayments}
	now := time.Now()

	candidates, err := s.payments.ListOverdueCandidates(ctx, now)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	for _, payment := range candidates {
		summary.Processed++

		if payment.Status == domain.PaymentStatusPending {
			if _, err := s.payments.Transition(ctx, payment.ID,
				[]domain.PaymentStatus{domain.PaymentStatusPending}, domain.PaymentStatusOverdue); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("payment %s: %v", payment.ID, err))
				continue
			}
		}

		suspended, err := s.suspendForOverdue(ctx, payment)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("payment %s: %v", payment.ID, err))
			continue
		}
		if !suspended {
			continue
		}

		summary.Changed++
		summary.Affected = append(summary.Affected, domain.AffectedPair{
			UserID:   payment.UserID,
			CourseID: payment.CourseID,
		})
	}

	return summary, nil
}

// suspendForOverdue suspends the enrollment behind an overdue payment and
// sends the overdue notification when the suspension happened on this call.
// A missing enrollment or an already-suspended one is not an error.
func (s *BillingService) suspendForOverdue(ctx context.Context, payment *domain.Payment) (bool, error) {
	enrollment, err := s.enrollments.GetByUserCourse(ctx, payment.UserID, payment.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logf("overdue: no enrollment for payment %s (user %s, course %s), skipping",
				payment.ID, payment.UserID, payment.CourseID)
			return false, nil
		}
		return false, err
	}

	suspended, err := s.enrollments.Suspend(ctx, enrollment.ID)
	if err != nil {
		return false, err
	}
	if !suspended {
		return false, nil
	}

	message := fmt.Sprintf("Your payment of %s %s was due on %s. Course access is suspended until it is settled.",
		payment.Amount.StringFixed(2), payment.Currency, dueDateLabel(payment))
	if _, err := s.notifier.Notify(ctx, payment.UserID, domain.NotificationPaymentOverdue, payment.ID, message); err != nil {
		s.logf("overdue: notification for payment %s: %v", payment.ID, err)
	}

	return true, nil
}

// RestoreAccessAfterPayment sweeps SUSPENDED enrollments and reactivates
// those whose debt has cleared: a PAID payment exists for the pair and no
// OVERDUE (or past-due PENDING) obligation remains. Any qualifying PAID
// payment counts, however old — a delayed sweep must still restore access.
// MarkPaid reconciles synchronously, so this normally only repairs drift.
func (s *BillingService) RestoreAccessAfterPayment(ctx context.Context) (*domain.SweepSummary, error) {
	summary := &domain.SweepSummary{Action: domain.ActionRestoreAccessAfterPayment}
	now := time.Now()

	suspended, err := s.enrollments.ListSuspended(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	for _, enrollment := range suspended {
		summary.Processed++

		blocked, err := s.payments.HasBlockingObligation(ctx, enrollment.UserID, enrollment.CourseID, now)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("enrollment %s: %v", enrollment.ID, err))
			continue
		}
		if blocked {
			continue
		}

		latest, err := s.payments.LatestPaid(ctx, enrollment.UserID, enrollment.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			summary.Errors = append(summary.Errors, fmt.Sprintf("enrollment %s: %v", enrollment.ID, err))
			continue
		}

		restored, err := s.enrollments.Restore(ctx, enrollment.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("enrollment %s: %v", enrollment.ID, err))
			continue
		}
		if !restored {
			continue
		}

		summary.Changed++
		summary.Affected = append(summary.Affected, domain.AffectedPair{
			UserID:   enrollment.UserID,
			CourseID: enrollment.CourseID,
		})

		message := "Your payment has been received and course access is restored."
		if _, err := s.notifier.Notify(ctx, enrollment.UserID, domain.NotificationPaymentSuccessful, latest.ID, message); err != nil {
			s.logf("restore sweep: notification for enrollment %s: %v", enrollment.ID, err)
		}
	}

	return summary, nil
}

// SendPaymentReminders notifies students about PENDING payments falling due
// inside the reminder window. The dedup window keeps back-to-back runs from
// re-sending; Changed counts reminders actually dispatched.
func (s *BillingService) SendPaymentReminders(ctx context.Context) (*domain.SweepSummary, error) {
	summary := &domain.SweepSummary{Action: domain.ActionSendPaymentReminders}
	now := time.Now()

	upcoming, err := s.payments.ListPendingDueBetween(ctx, now, now.Add(s.config.ReminderWindow()))
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	for _, payment := range upcoming {
		summary.Processed++

		message := fmt.Sprintf("Reminder: your payment of %s %s is due on %s.",
			payment.Amount.StringFixed(2), payment.Currency, dueDateLabel(payment))
		sent, err := s.notifier.Notify(ctx, payment.UserID, domain.NotificationPaymentDue, payment.ID, message)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("payment %s: %v", payment.ID, err))
			continue
		}
		if !sent {
			continue
		}

		summary.Changed++
		summary.Affected = append(summary.Affected, domain.AffectedPair{
			UserID:   payment.UserID,
			CourseID: payment.CourseID,
		})
	}

	return summary, nil
}

// reconcilePaid updates the enrollment after a payment settled and, for
// subscriptions, asks the generator for the next month. Failures here are
// logged, not returned: the payment is committed and the sweeps repair any
// drift on their next run.
func (s *BillingService) reconcilePaid(ctx context.Context, payment *domain.Payment) {
	enrollment, err := s.enrollments.GetByUserCourse(ctx, payment.UserID, payment.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logf("reconcile: no enrollment for payment %s (user %s, course %s)",
				payment.ID, payment.UserID, payment.CourseID)
			return
		}
		s.logf("reconcile: loading enrollment for payment %s: %v", payment.ID, err)
		return
	}

	if _, err := s.enrollments.MarkPaid(ctx, enrollment.ID); err != nil {
		s.logf("reconcile: marking enrollment %s paid: %v", enrollment.ID, err)
		return
	}

	message := fmt.Sprintf("Payment of %s %s received, thank you.",
		payment.Amount.StringFixed(2), payment.Currency)
	if _, err := s.notifier.Notify(ctx, payment.UserID, domain.NotificationPaymentSuccessful, payment.ID, message); err != nil {
		s.logf("reconcile: payment_successful notification for payment %s: %v", payment.ID, err)
	}

	if payment.PaymentType == domain.PaymentTypeMonthly && payment.MonthNumber != nil {
		result, err := s.CreateNextMonthlyPayment(ctx, payment.UserID, payment.CourseID, *payment.MonthNumber)
		if err != nil {
			s.logf("reconcile: generating month %d payment for (%s, %s): %v",
				*payment.MonthNumber+1, payment.UserID, payment.CourseID, err)
			return
		}
		if result.CourseCompleted {
			if err := s.enrollments.SetNextPaymentDue(ctx, enrollment.ID, nil); err != nil {
				s.logf("reconcile: clearing next_payment_due for enrollment %s: %v", enrollment.ID, err)
			}
		}
	}
}

func dueDateLabel(payment *domain.Payment) string {
	if payment.DueDate == nil {
		return "the agreed date"
	}
	return payment.DueDate.Format("2006-01-02")
}
