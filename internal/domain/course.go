package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentType describes how a course is billed.
type PaymentType string

const (
	PaymentTypeOneTime PaymentType = "ONE_TIME"
	PaymentTypeMonthly PaymentType = "MONTHLY"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeOneTime, PaymentTypeMonthly:
		return true
	}
	return false
}

// Course is owned by the content domain; this engine only reads it to price
// obligations and bound recurring billing.
type Course struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Title          string          `json:"title" db:"title"`
	PaymentType    PaymentType     `json:"payment_type" db:"payment_type"`
	MonthlyPrice   decimal.Decimal `json:"monthly_price" db:"monthly_price"`
	TotalPrice     decimal.Decimal `json:"total_price" db:"total_price"`
	DurationMonths int             `json:"duration_months" db:"duration_months"`
	Currency       string          `json:"currency" db:"currency"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Price returns the amount of a single obligation for the course.
func (c *Course) Price() decimal.Decimal {
	if c.PaymentType == PaymentTypeMonthly {
		return c.MonthlyPrice
	}
	return c.TotalPrice
}

// User is owned by the identity domain; read-only here.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
