package errors

import (
	"errors"
	"fmt"
)

// Base errors; callers classify with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state transition")
)

// BusinessError carries a stable code and a human message around a base error.
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeCourseNotFound      = "COURSE_NOT_FOUND"
	ErrCodePaymentNotFound     = "PAYMENT_NOT_FOUND"
	ErrCodeEnrollmentNotFound  = "ENROLLMENT_NOT_FOUND"
	ErrCodeInvalidArgument     = "INVALID_ARGUMENT"
	ErrCodeDuplicateEnrollment = "DUPLICATE_ENROLLMENT"
	ErrCodeDuplicatePayment    = "DUPLICATE_PAYMENT"
	ErrCodePaymentImmutable    = "PAYMENT_IMMUTABLE"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
)

// Classification helpers used at the handler boundary.

func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }
func IsConflict(err error) bool        { return errors.Is(err, ErrConflict) }
func IsInvalidState(err error) bool    { return errors.Is(err, ErrInvalidState) }

// Wrap common errors with business context

func WrapUserNotFound(userID string) *BusinessError {
	return NewBusinessError(
		ErrCodeUserNotFound,
		fmt.Sprintf("User %s not found", userID),
		ErrNotFound,
	)
}

func WrapCourseNotFound(courseID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCourseNotFound,
		fmt.Sprintf("Course %s not found", courseID),
		ErrNotFound,
	)
}

func WrapPaymentNotFound(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment %s not found", paymentID),
		ErrNotFound,
	)
}

func WrapEnrollmentNotFound(userID, courseID string) *BusinessError {
	return NewBusinessError(
		ErrCodeEnrollmentNotFound,
		fmt.Sprintf("No enrollment for user %s on course %s", userID, courseID),
		ErrNotFound,
	)
}

func WrapInvalidArgument(message string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidArgument, message, ErrInvalidArgument)
}

func WrapDuplicateEnrollment(userID, courseID string) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateEnrollment,
		fmt.Sprintf("User %s is already enrolled in course %s", userID, courseID),
		ErrConflict,
	)
}

func WrapDuplicateMonthPayment(monthNumber int) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicatePayment,
		fmt.Sprintf("A payment for month %d already exists", monthNumber),
		ErrConflict,
	)
}

func WrapPaymentImmutable(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentImmutable,
		fmt.Sprintf("Payment %s is PAID and cannot be modified or deleted", paymentID),
		ErrConflict,
	)
}

func WrapInvalidTransition(from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot transition payment from %s to %s", from, to),
		ErrInvalidState,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}
