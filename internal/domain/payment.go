package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is shared by payments and the billing side of enrollments.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusOverdue   PaymentStatus = "OVERDUE"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusOverdue, PaymentStatusCancelled:
		return true
	}
	return false
}

// Payment is a single billing obligation: the one-time price of a course or
// one month of a subscription. A PAID payment is immutable and undeletable.
// For MONTHLY payments MonthNumber is 1-based; at most one non-CANCELLED
// payment may exist per (user, course, month) slot.
type Payment struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	CourseID      uuid.UUID       `json:"course_id" db:"course_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	Status        PaymentStatus   `json:"status" db:"status"`
	PaymentType   PaymentType     `json:"payment_type" db:"payment_type"`
	MonthNumber   *int            `json:"month_number,omitempty" db:"month_number"`
	DueDate       *time.Time      `json:"due_date,omitempty" db:"due_date"`
	PaidAt        *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	PaymentMethod *string         `json:"payment_method,omitempty" db:"payment_method"`
	TransactionID *string         `json:"transaction_id,omitempty" db:"transaction_id"`
	Notes         string          `json:"notes" db:"notes"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// BulkPaymentAction is the operation applied by the bulk endpoint.
type BulkPaymentAction string

const (
	BulkActionMarkAsPaid    BulkPaymentAction = "markAsPaid"
	BulkActionMarkAsOverdue BulkPaymentAction = "markAsOverdue"
	BulkActionCancel        BulkPaymentAction = "cancel"
)

func (a BulkPaymentAction) Valid() bool {
	switch a {
	case BulkActionMarkAsPaid, BulkActionMarkAsOverdue, BulkActionCancel:
		return true
	}
	return false
}

// DTOs for requests and responses

type CreatePaymentRequest struct {
	UserID      string          `json:"user_id" validate:"required,uuid"`
	CourseID    string          `json:"course_id" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	PaymentType PaymentType     `json:"payment_type" validate:"required"`
	MonthNumber *int            `json:"month_number,omitempty"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Notes       string          `json:"notes"`
}

// UpdatePaymentRequest carries PATCH semantics: nil fields are left alone.
// A status change to PAID stamps paid_at when the caller did not provide one.
type UpdatePaymentRequest struct {
	Status        *PaymentStatus   `json:"status,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	PaidAt        *time.Time       `json:"paid_at,omitempty"`
	PaymentMethod *string          `json:"payment_method,omitempty"`
	TransactionID *string          `json:"transaction_id,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

type BulkPaymentRequest struct {
	Action BulkPaymentAction `json:"action" validate:"required"`
	IDs    []string          `json:"ids" validate:"required,min=1,dive,uuid"`
}

type BulkPaymentResult struct {
	Requested    int      `json:"requested"`
	UpdatedCount int      `json:"updated_count"`
	Errors       []string `json:"errors,omitempty"`
}

// PaymentFilter narrows list queries; nil fields match everything.
type PaymentFilter struct {
	Status      *PaymentStatus
	PaymentType *PaymentType
	UserID      *uuid.UUID
	CourseID    *uuid.UUID
	Page        int
	Limit       int
}

type PaymentList struct {
	Payments     []*Payment     `json:"payments"`
	Pagination   Pagination     `json:"pagination"`
	StatusCounts map[string]int `json:"status_counts"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type PaymentStats struct {
	TotalPayments    int             `json:"total_payments"`
	StatusCounts     map[string]int  `json:"status_counts"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

// NextPaymentResult is returned by the recurring billing generator.
// CourseCompleted means the subscription ran its full duration; that is a
// terminal outcome, not an error, and Payment is nil in that case.
type NextPaymentResult struct {
	Payment         *Payment `json:"payment,omitempty"`
	MonthNumber     int      `json:"month_number"`
	CourseCompleted bool     `json:"course_completed"`
	AlreadyExisted  bool     `json:"already_existed"`
}
