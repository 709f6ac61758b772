package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the billing event a notification is about.
type NotificationType string

const (
	NotificationPaymentDue         NotificationType = "payment_due"
	NotificationPaymentSuccessful  NotificationType = "payment_successful"
	NotificationPaymentOverdue     NotificationType = "payment_overdue"
	NotificationNextPaymentCreated NotificationType = "next_payment_created"
)

// Notification is the persisted record of a dispatched message. The engine
// keeps it around to deduplicate: an equivalent notification created within
// the lookback window suppresses a re-send.
type Notification struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	UserID          uuid.UUID        `json:"user_id" db:"user_id"`
	Type            NotificationType `json:"type" db:"type"`
	RelatedEntityID uuid.UUID        `json:"related_entity_id" db:"related_entity_id"`
	Message         string           `json:"message" db:"message"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// AccessControlAction selects one of the idempotent batch sweeps.
type AccessControlAction string

const (
	ActionCheckOverduePayments      AccessControlAction = "check_overdue_payments"
	ActionRestoreAccessAfterPayment AccessControlAction = "restore_access_after_payment"
	ActionSendPaymentReminders      AccessControlAction = "send_payment_reminders"
)

func (a AccessControlAction) Valid() bool {
	switch a {
	case ActionCheckOverduePayments, ActionRestoreAccessAfterPayment, ActionSendPaymentReminders:
		return true
	}
	return false
}

type AccessControlRequest struct {
	Action AccessControlAction `json:"action" validate:"required"`
}

// AffectedPair identifies an enrollment touched by a sweep.
type AffectedPair struct {
	UserID   uuid.UUID `json:"user_id"`
	CourseID uuid.UUID `json:"course_id"`
}

// SweepSummary reports what a batch sweep did. Item-level failures land in
// Errors; they never abort the sweep.
type SweepSummary struct {
	Action    AccessControlAction `json:"action"`
	Processed int                 `json:"processed"`
	Changed   int                 `json:"changed"`
	Affected  []AffectedPair      `json:"affected,omitempty"`
	Errors    []string            `json:"errors,omitempty"`
}
