package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/eduflow/billing-engine/internal/config"
	"github.com/eduflow/billing-engine/internal/domain"
	customError "github.com/eduflow/billing-engine/pkg/errors"
	"github.com/eduflow/billing-engine/tests/mocks"
)

type serviceMocks struct {
	payments    *mocks.MockPaymentRepository
	enrollments *mocks.MockEnrollmentRepository
	courses     *mocks.MockCourseRepository
	users       *mocks.MockUserRepository
	notifier    *mocks.MockNotifier
}

func newTestService() (*BillingService, *serviceMocks) {
	m := &serviceMocks{
		payments:    &mocks.MockPaymentRepository{},
		enrollments: &mocks.MockEnrollmentRepository{},
		courses:     &mocks.MockCourseRepository{},
		users:       &mocks.MockUserRepository{},
		notifier:    &mocks.MockNotifier{},
	}

	cfg := &config.Config{
		Billing: config.BillingConfig{
			ReminderLeadDays: 3,
			DedupWindow:      24 * time.Hour,
			DefaultCurrency:  "USD",
		},
	}

	return NewBillingService(m.payments, m.enrollments, m.courses, m.users, m.notifier, cfg), m
}

func monthlyCourse(duration int) *domain.Course {
	return &domain.Course{
		ID:             uuid.New(),
		Title:          "Go from Zero",
		PaymentType:    domain.PaymentTypeMonthly,
		MonthlyPrice:   decimal.NewFromInt(100),
		TotalPrice:     decimal.NewFromInt(100 * int64(duration)),
		DurationMonths: duration,
		Currency:       "USD",
	}
}

func monthlyPayment(userID, courseID uuid.UUID, month int, status domain.PaymentStatus) *domain.Payment {
	due := time.Now().AddDate(0, 1, 0)
	return &domain.Payment{
		ID:          uuid.New(),
		UserID:      userID,
		CourseID:    courseID,
		Amount:      decimal.NewFromInt(100),
		Currency:    "USD",
		Status:      status,
		PaymentType: domain.PaymentTypeMonthly,
		MonthNumber: &month,
		DueDate:     &due,
	}
}

func TestEnroll_MonthlyCourse(t *testing.T) {
	svc, m := newTestService()

	userID := uuid.New()
	course := monthlyCourse(3)

	m.users.On("GetByID", mock.Anything, userID).
		Return(&domain.User{ID: userID, Name: "Ada", Email: "ada@example.com"}, nil)
	m.courses.On("GetByID", mock.Anything, course.ID).Return(course, nil)
	m.enrollments.On("GetByUserCourse", mock.Anything, userID, course.ID).Return(nil, sql.ErrNoRows)
	m.enrollments.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.Enrollment) bool {
		return e.UserID == userID &&
			e.Status == domain.EnrollmentStatusActive &&
			e.PaymentStatus == domain.PaymentStatusPending &&
			e.NextPaymentDue != nil
	})).Return(nil)
	m.payments.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.UserID == userID &&
			p.Status == domain.PaymentStatusPending &&
			p.PaymentType == domain.PaymentTypeMonthly &&
			p.MonthNumber != nil && *p.MonthNumber == 1 &&
			p.Amount.Equal(decimal.NewFromInt(100))
	})).Return(nil)
	m.notifier.On("Notify", mock.Anything, userID, domain.NotificationPaymentDue, mock.Anything, mock.Anything).
		Return(true, nil)

	enrollment, payment, err := svc.Enroll(context.Background(), userID, course.ID, "")

	assert.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, domain.PaymentStatusPending, enrollment.PaymentStatus)
	assert.Equal(t, 1, *payment.MonthNumber)
	m.enrollments.AssertExpectations(t)
	m.payments.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestEnroll_DuplicatePair(t *testing.T) {
	svc, m := newTestService()

	userID := uuid.New()
	course := monthlyCourse(3)

	m.users.On("GetByID", mock.Anything, userID).
		Return(&domain.User{ID: userID}, nil)
	m.courses.On("GetByID", mock.Anything, course.ID).Return(course, nil)
	m.enrollments.On("GetByUserCourse", mock.Anything, userID, course.ID).
		Return(&domain.Enrollment{ID: uuid.New()}, nil)

	_, _, err := svc.Enroll(context.Background(), userID, course.ID, "")

	assert.Error(t, err)
	assert.True(t, customError.IsConflict(err))
	m.enrollments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEnroll_UserMissing(t *testing.T) {
	svc, m := newTestService()

	userID := uuid.New()
	courseID := uuid.New()

	m.users.On("GetByID", mock.Anything, userID).Return(nil, sql.ErrNoRows)

	_, _, err := svc.Enroll(context.Background(), userID, courseID, "")

	assert.Error(t, err)
	assert.True(t, customError.IsNotFound(err))
	m.courses.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestMarkPaid_SettlesAndGeneratesNextMonth(t *testing.T) {
	// Scenario: month 1 of a 3-month subscription is paid; the enrollment
	// reconciles to PAID and month 2 is generated with a due date one
	// calendar month out.
	svc, m := newTestService()

	course := monthlyCourse(3)
	userID := uuid.New()
	pending := monthlyPayment(userID, course.ID, 1, domain.PaymentStatusPending)

	paidAt := time.Now()
	txid := "TX-1001"
	paid := *pending
	paid.Status = domain.PaymentStatusPaid
	paid.PaidAt = &paidAt
	paid.TransactionID = &txid

	enrollment := &domain.Enrollment{
		ID:            uuid.New(),
		UserID:        userID,
		CourseID:      course.ID,
		Status:        domain.EnrollmentStatusActive,
		PaymentStatus: domain.PaymentStatusPending,
	}

	m.payments.On("GetByID", mock.Anything, pending.ID).Return(pending, nil).Once()
	m.payments.On("MarkPaid", mock.Anything, pending.ID, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	m.payments.On("GetByID", mock.Anything, pending.ID).Return(&paid, nil)
	m.enrollments.On("GetByUserCourse", mock.Anything, userID, course.ID).Return(enrollment, nil)
	m.enrollments.On("MarkPaid", mock.Anything, enrollment.ID).Return(true, nil)
	m.notifier.On("Notify", mock.Anything, userID, domain.NotificationPaymentSuccessful, paid.ID, mock.Anything).
		Return(true, nil)

	// Recurring generator path for month 2
	m.courses.On("GetByID", mock.Anything, course.ID).Return(course, nil)
	m.payments.On("GetByMonth", mock.Anything, userID, course.ID, 2).Return(nil, sql.ErrNoRows)
	m.payments.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.MonthNumber != nil && *p.MonthNumber == 2 &&
			p.Status == domain.PaymentStatusPending &&
			p.Amount.Equal(course.MonthlyPrice)
	})).Return(nil)
	m.enrollments.On("SetNextPaymentDue", mock.Anything, enrollment.ID, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, userID, domain.NotificationNextPaymentCreated, mock.Anything, mock.Anything).
		Return(true, nil)

	result, err := svc.MarkPaid(context.Background(), pending.ID, "card", txid)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, result.Status)
	m.payments.AssertExpectations(t)
	m.enrollments.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestMarkPaid_FinalMonthCompletesCourse(t *testing.T) {
	svc, m := newTestService()

	course := monthlyCourse(3)
	userID := uuid.New()
	pending := monthlyPayment(userID, course.ID, 3, domain.PaymentStatusPending)

	paid := *pending
	paid.Status = domain.PaymentStatusPaid

	enrollment := &domain.Enrollment{
		ID:       uuid.New(),
		UserID:   userID,
		CourseID: course.ID,
		Status:   domain.EnrollmentStatusActive,
	}

	m.payments.On("GetByID", mock.Anything, pending.ID).Return(pending, nil).Once()
	m.payments.On("MarkPaid", mock.Anything, pending.ID, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	m.payments.On("GetByID", mock.Anything, pending.ID).Return(&paid, nil)
	m.enrollments.On("GetByUserCourse", mock.Anything, userID, course.ID).Return(enrollment, nil)
	m.enrollments.On("MarkPaid", mock.Anything, enrollment.ID).Return(true, nil)
	m.notifier.On("Notify", mock.Anything, userID, domain.NotificationPaymentSuccessful, mock.Anything, mock.Anything).
		Return(true, nil)
	m.courses.On("GetByID", mock.Anything, course.ID).Return(course, nil)
	// Month 4 would exceed the 3-month duration: nothing is created and the
	// due-date marker is cleared.
	m.enrollments.On("SetNextPaymentDue", mock.Anything, enrollment.ID, (*time.Time)(nil)).Return(nil)

	_, err := svc.MarkPaid(context.Background(), pending.ID, "card", "")

	assert.NoError(t, err)
	m.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.enrollments.AssertExpectations(t)
}

func TestMarkPaid_IdempotentOnSameTransaction(t *testing.T) {
	svc, m := newTestService()

	userID := uuid.New()
	courseID := uuid.New()
	txid := "TX-1001"
	paid := monthlyPayment(userID, courseID, 1, domain.PaymentStatusPaid)
	paid.TransactionID = &txid

	m.payments.On("GetByID", mock.Anything, paid.ID).Return(paid, nil)

	result, err := svc.MarkPaid(context.Background(), paid.ID, "card", txid)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, result.Status)
	m.payments.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkPaid_ConflictingTransactionRejected(t *testing.T) {
	svc, m := newTestService()

	userID := uuid.New()
	courseID := uuid.New()
	txid := "TX-1001"
	paid := monthlyPayment(userID, courseID, 1, domain.PaymentStatusPaid)
	paid.TransactionID = &txid

	m.payments.On("GetByID", mock.Anything, paid.ID).Return(paid, nil)

	_, err := svc.MarkPaid(context.Background(), paid.ID, "card", "TX-OTHER")

	assert.Error(t, err)
	assert.True(t, customError.IsInvalidState(err))
}

func TestMarkPaid_CancelledRejected(t *testing.T) {
	svc, m := newTestService()

	cancelled := monthlyPayment(uuid.New(), uuid.New(), 1, domain.PaymentStatusCancelled)

	m.payments.On("GetByID", mock.Anything, cancelled.ID).Return(cancelled, nil)

	_, err := svc.MarkPaid(context.Background(), cancelled.ID, "", "")

	assert.Error(t, err)
	assert.True(t, customError.IsInvalidState(err))
}

func TestDeletePayment_PaidIsImmutable(t *testing.T) {
	svc, m := newTestService()

	paid := monthlyPayment(uuid.New(), uuid.New(), 1, domain.PaymentStatusPaid)

	m.payments.On("GetByID", mock.Anything, paid.ID).Return(paid, nil)

	err := svc.DeletePayment(context.Background(), paid.ID)

	assert.Error(t, err)
	assert.True(t, customError.IsConflict(err))
	m.payments.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeletePayment_PendingSucceeds(t *testing.T) {
	svc, m := newTestService()

	pending := monthlyPayment(uuid.New(), uuid.New(), 1, domain.PaymentStatusPending)

	m.payments.On("GetByID", mock.Anything, pending.ID).Return(pending, nil)
	m.payments.On("Delete", mock.Anything, pending.ID).Return(true, nil)

	err := svc.DeletePayment(context.Background(), pending.ID)

	assert.NoError(t, err)
	m.payments.AssertExpectations(t)
}

func TestCreatePayment_DuplicateMonthSlot(t *testing.T) {
	svc, m := newTestService()

	userID := uuid.New()
	course := monthlyCourse(6)
	month := 2

	m.users.On("GetByID", mock.Anything, userID).Return(&domain.User{ID: userID}, nil)
	m.courses.On("GetByID", mock.Anything, course.ID).Return(course, nil)
	m.payments.On("GetByMonth", mock.Anything, userID, course.ID, month).
		Return(monthlyPayment(userID, course.ID, month, domain.PaymentStatusPending), nil)

	_, err := svc.CreatePayment(context.Background(), &domain.CreatePaymentRequest{
		UserID:      userID.String(),
		CourseID:    course.ID.String(),
		Amount:      decimal.NewFromInt(100),
		PaymentType: domain.PaymentTypeMonthly,
		MonthNumber: &month,
	})

	assert.Error(t, err)
	assert.True(t, customError.IsConflict(err))
	m.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreatePayment_RejectsBadArguments(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name string
		req  *domain.CreatePaymentRequest
	}{
		{
			name: "unknown payment type",
			req: &domain.CreatePaymentRequest{
				UserID:      uuid.New().String(),
				CourseID:    uuid.New().String(),
				Amount:      decimal.NewFromInt(100),
				PaymentType: "WEEKLY",
			},
		},
		{
			name: "non-positive amount",
			req: &domain.CreatePaymentRequest{
				UserID:      uuid.New().String(),
				CourseID:    uuid.New().String(),
				Amount:      decimal.Zero,
				PaymentType: domain.PaymentTypeOneTime,
			},
		},
		{
			name: "monthly without month number",
			req: &domain.CreatePaymentRequest{
				UserID:      uuid.New().String(),
				CourseID:    uuid.New().String(),
				Amount:      decimal.NewFromInt(100),
				PaymentType: domain.PaymentTypeMonthly,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePayment(context.Background(), tt.req)
			assert.Error(t, err)
			assert.True(t, customError.IsInvalidArgument(err))
		})
	}
}

func TestBulkPaymentAction_BestEffort(t *testing.T) {
	svc, m := newTestService()

	okPayment := monthlyPayment(uuid.New(), uuid.New(), 1, domain.PaymentStatusPending)
	missingID := uuid.New()

	m.payments.On("GetByID", mock.Anything, okPayment.ID).Return(okPayment, nil).Once()
	m.payments.On("Transition", mock.Anything, okPayment.ID, mock.Anything, domain.PaymentStatusCancelled).
		Return(true, nil)
	cancelled := *okPayment
	cancelled.Status = domain.PaymentStatusCancelled
	m.payments.On("GetByID", mock.Anything, okPayment.ID).Return(&cancelled, nil)
	m.payments.On("GetByID", mock.Anything, missingID).Return(nil, sql.ErrNoRows)

	result, err := svc.BulkPaymentAction(context.Background(), domain.BulkActionCancel,
		[]uuid.UUID{okPayment.ID, missingID})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Requested)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Len(t, result.Errors, 1)
}

func TestBulkPaymentAction_UnknownAction(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.BulkPaymentAction(context.Background(), "archive", []uuid.UUID{uuid.New()})

	assert.Error(t, err)
	assert.True(t, customError.IsInvalidArgument(err))
}

func TestUpdatePayment_PaidFieldsAreImmutable(t *testing.T) {
	svc, m := newTestService()

	paid := monthlyPayment(uuid.New(), uuid.New(), 1, domain.PaymentStatusPaid)
	amount := decimal.NewFromInt(500)

	m.payments.On("GetByID", mock.Anything, paid.ID).Return(paid, nil)

	_, err := svc.UpdatePayment(context.Background(), paid.ID, &domain.UpdatePaymentRequest{Amount: &amount})

	assert.Error(t, err)
	assert.True(t, customError.IsConflict(err))
	m.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdatePayment_StatusPaidRunsSideEffects(t *testing.T) {
	svc, m := newTestService()

	userID := uuid.New()
	courseID := uuid.New()
	pending := &domain.Payment{
		ID:          uuid.New(),
		UserID:      userID,
		CourseID:    courseID,
		Amount:      decimal.NewFromInt(250),
		Currency:    "USD",
		Status:      domain.PaymentStatusPending,
		PaymentType: domain.PaymentTypeOneTime,
	}
	paid := *pending
	paid.Status = domain.PaymentStatusPaid

	enrollment := &domain.Enrollment{ID: uuid.New(), UserID: userID, CourseID: courseID}
	status := domain.PaymentStatusPaid

	m.payments.On("GetByID", mock.Anything, pending.ID).Return(pending, nil).Times(2)
	m.payments.On("Update", mock.Anything, mock.Anything).Return(nil)
	m.payments.On("MarkPaid", mock.Anything, pending.ID, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	m.payments.On("GetByID", mock.Anything, pending.ID).Return(&paid, nil)
	m.enrollments.On("GetByUserCourse", mock.Anything, userID, courseID).Return(enrollment, nil)
	m.enrollments.On("MarkPaid", mock.Anything, enrollment.ID).Return(true, nil)
	m.notifier.On("Notify", mock.Anything, userID, domain.NotificationPaymentSuccessful, mock.Anything, mock.Anything).
		Return(true, nil)

	result, err := svc.UpdatePayment(context.Background(), pending.ID, &domain.UpdatePaymentRequest{Status: &status})

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, result.Status)
	m.enrollments.AssertExpectations(t)
}
