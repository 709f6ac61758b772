package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/eduflow/billing-engine/internal/domain"
	customError "github.com/eduflow/billing-engine/pkg/errors"
)

func TestCreateNextMonthlyPayment_CreatesNextMonth(t *testing.T) {
	svc, m := newTestService()

	course := monthlyCourse(6)
	userID := uuid.New()
	enrollment := &domain.Enrollment{ID: uuid.New(), UserID: userID, CourseID: course.ID}

	m.courses.On("GetByID", mock.Anything, course.ID).Return(course, nil)
	m.payments.On("GetByMonth", mock.Anything, userID, course.ID, 2).Return(nil, sql.ErrNoRows)
	m.payments.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		if p.MonthNumber == nil || *p.MonthNumber != 2 {
			return false
		}
		if p.DueDate == nil {
			return false
		}
		// Due one calendar month out, give or take test runtime.
		expected := time.Now().AddDate(0, 1, 0)
		return p.DueDate.Sub(expected).Abs() < time.Minute &&
			p.Amount.Equal(course.MonthlyPrice) &&
			p.Status == domain.PaymentStatusPending
	})).Return(nil)
	m.enrollments.On("GetByUserCourse", mock.Anything, userID, course.ID).Return(enrollment, nil)
	m.enrollments.On("SetNextPaymentDue", mock.Anything, enrollment.ID, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, userID, domain.NotificationNextPaymentCreated, mock.Anything, mock.Anything).
		Return(true, nil)

	result, err := svc.CreateNextMonthlyPayment(context.Background(), userID, course.ID, 1)

	assert.NoError(t, err)
	assert.False(t, result.CourseCompleted)
	assert.False(t, result.AlreadyExisted)
	assert.Equal(t, 2, result.MonthNumber)
	assert.NotNil(t, result.Payment)
	m.payments.AssertExpectations(t)
	m.enrollments.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestCreateNextMonthlyPayment_TerminatesAtDuration(t *testing.T) {
	svc, m := newTestService()

	course := monthlyCourse(3)
	userID := uuid.New()

	m.courses.On("GetByID", mock.Anything, course.ID).Return(course, nil)

	result, err := svc.CreateNextMonthlyPayment(context.Background(), userID, course.ID, 3)

	assert.NoError(t, err)
	assert.True(t, result.CourseCompleted)
	assert.Nil(t, result.Payment)
	assert.Equal(t, 4, result.MonthNumber)
	m.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateNextMonthlyPayment_IdempotentOnExistingSlot(t *testing.T) {
	svc, m := newTestService()

	course := monthlyCourse(6)
	userID := uuid.New()
	existing := monthlyPayment(userID, course.ID, 2, domain.PaymentStatusPending)

	m.courses.On("GetByID", mock.Anything, course.ID).Return(course, nil)
	m.payments.On("GetByMonth", mock.Anything, userID, course.ID, 2).Return(existing, nil)

	result, err := svc.CreateNextMonthlyPayment(context.Background(), userID, course.ID, 1)

	assert.NoError(t, err)
	assert.True(t, result.AlreadyExisted)
	assert.Equal(t, existing.ID, result.Payment.ID)
	m.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateNextMonthlyPayment_RejectsOneTimeCourse(t *testing.T) {
	svc, m := newTestService()

	course := monthlyCourse(6)
	course.PaymentType = domain.PaymentTypeOneTime

	m.courses.On("GetByID", mock.Anything, course.ID).Return(course, nil)

	_, err := svc.CreateNextMonthlyPayment(context.Background(), uuid.New(), course.ID, 1)

	assert.Error(t, err)
	assert.True(t, customError.IsInvalidArgument(err))
}

func TestCreateNextMonthlyPayment_RejectsBadMonth(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateNextMonthlyPayment(context.Background(), uuid.New(), uuid.New(), 0)

	assert.Error(t, err)
	assert.True(t, customError.IsInvalidArgument(err))
}

func TestCreateNextMonthlyPayment_MissingCourse(t *testing.T) {
	svc, m := newTestService()

	courseID := uuid.New()
	m.courses.On("GetByID", mock.Anything, courseID).Return(nil, sql.ErrNoRows)

	_, err := svc.CreateNextMonthlyPayment(context.Background(), uuid.New(), courseID, 1)

	assert.Error(t, err)
	assert.True(t, customError.IsNotFound(err))
}
