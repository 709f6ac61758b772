package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eduflow/billing-engine/internal/domain"
	customError "github.com/eduflow/billing-engine/pkg/errors"
	"github.com/eduflow/billing-engine/pkg/utils"
)

// MarkPaid settles a payment and reconciles the enrollment. Re-marking an
// already-PAID payment is a no-op when the transaction id matches (or none is
// given); a contradictory transaction id is rejected. Two concurrent calls
// converge because the status flip is a conditional update: the loser
// re-reads and lands on the no-op path.
func (s *BillingService) MarkPaid(ctx context.Context, paymentID uuid.UUID, paymentMethod, transactionID string) (*domain.Payment, error) {
	return s.markPaidAt(ctx, paymentID, time.Now(), strPtr(paymentMethod), strPtr(transactionID))
}

func (s *BillingService) markPaidAt(ctx context.Context, paymentID uuid.UUID, paidAt time.Time, paymentMethod, transactionID *string) (*domain.Payment, error) {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status == domain.PaymentStatusPaid {
		return s.alreadyPaid(payment, transactionID)
	}
	if payment.Status == domain.PaymentStatusCancelled {
		return nil, customError.WrapInvalidTransition(string(payment.Status), string(domain.PaymentStatusPaid))
	}

	ok, err := s.payments.MarkPaid(ctx, paymentID, paidAt, paymentMethod, transactionID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	payment, err = s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if !ok {
		// Lost a race: someone else moved the status first.
		if payment.Status == domain.PaymentStatusPaid {
			return s.alreadyPaid(payment, transactionID)
		}
		return nil, customError.WrapInvalidTransition(string(payment.Status), string(domain.PaymentStatusPaid))
	}

	s.reconcilePaid(ctx, payment)

	return payment, nil
}

func (s *BillingService) alreadyPaid(payment *domain.Payment, transactionID *string) (*domain.Payment, error) {
	if transactionID == nil || (payment.TransactionID != nil && *payment.TransactionID == *transactionID) {
		return payment, nil
	}
	return nil, customError.NewBusinessError(
		customError.ErrCodeInvalidTransition,
		fmt.Sprintf("Payment %s is already PAID under a different transaction", payment.ID),
		customError.ErrInvalidState,
	)
}

// MarkOverdue flags a PENDING payment as OVERDUE and suspends the matching
// active enrollment. Idempotent: an already-OVERDUE payment is returned as is.
func (s *BillingService) MarkOverdue(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status == domain.PaymentStatusOverdue {
		return payment, nil
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, customError.WrapInvalidTransition(string(payment.Status), string(domain.PaymentStatusOverdue))
	}

	ok, err := s.payments.Transition(ctx, paymentID,
		[]domain.PaymentStatus{domain.PaymentStatusPending}, domain.PaymentStatusOverdue)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	payment, err = s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if !ok && payment.Status != domain.PaymentStatusOverdue {
		return nil, customError.WrapInvalidTransition(string(payment.Status), string(domain.PaymentStatusOverdue))
	}

	if _, err := s.suspendForOverdue(ctx, payment); err != nil {
		s.logf("overdue: suspending enrollment for payment %s: %v", payment.ID, err)
	}

	return payment, nil
}

// CancelPayment voids a PENDING or OVERDUE payment. PAID payments are
// immutable; cancelling an already-CANCELLED payment is a no-op.
func (s *BillingService) CancelPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentStatusCancelled:
		return payment, nil
	case domain.PaymentStatusPaid:
		return nil, customError.WrapPaymentImmutable(paymentID.String())
	}

	ok, err := s.payments.Transition(ctx, paymentID,
		[]domain.PaymentStatus{domain.PaymentStatusPending, domain.PaymentStatusOverdue},
		domain.PaymentStatusCancelled)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	payment, err = s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if !ok && payment.Status != domain.PaymentStatusCancelled {
		return nil, customError.WrapInvalidTransition(string(payment.Status), string(domain.PaymentStatusCancelled))
	}

	return payment, nil
}

// UpdatePayment applies PATCH semantics. Plain field edits go first; a status
// change is then routed through the matching transition so its side effects
// (reconciliation, recurring billing) run exactly as for the dedicated
// operations. Status PAID with no paid_at in the request stamps now.
func (s *BillingService) UpdatePayment(ctx context.Context, paymentID uuid.UUID, req *domain.UpdatePaymentRequest) (*domain.Payment, error) {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if req.Status != nil && !req.Status.Valid() {
		return nil, customError.WrapInvalidArgument(fmt.Sprintf("unknown payment status %q", *req.Status))
	}

	if payment.Status == domain.PaymentStatusPaid {
		// Immutable apart from bookkeeping notes.
		if req.Status != nil && *req.Status != domain.PaymentStatusPaid {
			return nil, customError.WrapPaymentImmutable(paymentID.String())
		}
		if req.Amount != nil || req.DueDate != nil || req.PaidAt != nil {
			return nil, customError.WrapPaymentImmutable(paymentID.String())
		}
		if req.Notes != nil {
			payment.Notes = *req.Notes
			if err := s.payments.Update(ctx, payment); err != nil {
				return nil, customError.WrapDatabaseError(err)
			}
		}
		return payment, nil
	}

	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, customError.WrapInvalidArgument("amount must be greater than zero")
		}
		payment.Amount = *req.Amount
	}
	if req.DueDate != nil {
		payment.DueDate = req.DueDate
	}
	if req.PaymentMethod != nil {
		payment.PaymentMethod = req.PaymentMethod
	}
	if req.TransactionID != nil {
		payment.TransactionID = req.TransactionID
	}
	if req.Notes != nil {
		payment.Notes = *req.Notes
	}

	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if req.Status != nil && *req.Status != payment.Status {
		switch *req.Status {
		case domain.PaymentStatusPaid:
			paidAt := time.Now()
			if req.PaidAt != nil {
				paidAt = *req.PaidAt
			}
			return s.markPaidAt(ctx, paymentID, paidAt, req.PaymentMethod, req.TransactionID)
		case domain.PaymentStatusOverdue:
			return s.MarkOverdue(ctx, paymentID)
		case domain.PaymentStatusCancelled:
			return s.CancelPayment(ctx, paymentID)
		default:
			return nil, customError.WrapInvalidTransition(string(payment.Status), string(*req.Status))
		}
	}

	return s.getPayment(ctx, paymentID)
}

// DeletePayment removes a payment that never settled. PAID payments cannot be
// deleted, ever.
func (s *BillingService) DeletePayment(ctx context.Context, paymentID uuid.UUID) error {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	if payment.Status == domain.PaymentStatusPaid {
		return customError.WrapPaymentImmutable(paymentID.String())
	}

	deleted, err := s.payments.Delete(ctx, paymentID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if !deleted {
		// The conditional delete refused; the row either vanished or was
		// paid in the meantime.
		if p, err := s.getPayment(ctx, paymentID); err == nil && p.Status == domain.PaymentStatusPaid {
			return customError.WrapPaymentImmutable(paymentID.String())
		}
		return customError.WrapPaymentNotFound(paymentID.String())
	}

	return nil
}

// BulkPaymentAction applies one transition to a set of payments with
// best-effort semantics: each id is processed independently, failures are
// collected, nothing is rolled back across items.
func (s *BillingService) BulkPaymentAction(ctx context.Context, action domain.BulkPaymentAction, ids []uuid.UUID) (*domain.BulkPaymentResult, error) {
	if !action.Valid() {
		return nil, customError.WrapInvalidArgument(fmt.Sprintf("unknown bulk action %q", action))
	}

	result := &domain.BulkPaymentResult{Requested: len(ids)}

	for _, id := range ids {
		var err error
		switch action {
		case domain.BulkActionMarkAsPaid:
			_, err = s.MarkPaid(ctx, id, "", "")
		case domain.BulkActionMarkAsOverdue:
			_, err = s.MarkOverdue(ctx, id)
		case domain.BulkActionCancel:
			_, err = s.CancelPayment(ctx, id)
		}

		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		result.UpdatedCount++
	}

	return result, nil
}

// ListPayments returns a filtered page plus per-status counts for the same
// filter (ignoring the status criterion itself, so the counts describe the
// whole matching population).
func (s *BillingService) ListPayments(ctx context.Context, filter domain.PaymentFilter) (*domain.PaymentList, error) {
	page, limit := utils.NormalizePagination(filter.Page, filter.Limit)
	filter.Page, filter.Limit = page, limit

	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	counts, err := s.payments.CountByStatus(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.PaymentList{
		Payments: payments,
		Pagination: domain.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: utils.TotalPages(total, limit),
		},
		StatusCounts: counts,
	}, nil
}

// PaymentStats aggregates ledger-wide counts and amounts.
func (s *BillingService) PaymentStats(ctx context.Context) (*domain.PaymentStats, error) {
	stats, err := s.payments.Stats(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return stats, nil
}

func (s *BillingService) getPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPaymentNotFound(paymentID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return payment, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
