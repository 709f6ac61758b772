package domain

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus is the access side of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment ties a student to a course and carries both the access status
// and the billing status for the pair. Status fields are written only by the
// access controller; every write is conditional on the current value so
// concurrent sweeps converge instead of double-applying transitions.
type Enrollment struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	UserID         uuid.UUID        `json:"user_id" db:"user_id"`
	CourseID       uuid.UUID        `json:"course_id" db:"course_id"`
	Status         EnrollmentStatus `json:"status" db:"status"`
	PaymentStatus  PaymentStatus    `json:"payment_status" db:"payment_status"`
	NextPaymentDue *time.Time       `json:"next_payment_due,omitempty" db:"next_payment_due"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// DTOs for requests and responses

type EnrollRequest struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	CourseID string `json:"course_id" validate:"required,uuid"`
	Notes    string `json:"notes"`
}

type EnrollResponse struct {
	Enrollment *Enrollment `json:"enrollment"`
	Payment    *Payment    `json:"payment"`
}
