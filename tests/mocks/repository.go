package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/eduflow/billing-engine/internal/domain"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByMonth(ctx context.Context, userID, courseID uuid.UUID, monthNumber int) (*domain.Payment, error) {
	args := m.Called(ctx, userID, courseID, monthNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, paymentMethod, transactionID *string) (bool, error) {
	args := m.Called(ctx, id, paidAt, paymentMethod, transactionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) Transition(ctx context.Context, id uuid.UUID, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Payment), args.Int(1), args.Error(2)
}

func (m *MockPaymentRepository) CountByStatus(ctx context.Context, filter domain.PaymentFilter) (map[string]int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockPaymentRepository) Stats(ctx context.Context) (*domain.PaymentStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentStats), args.Error(1)
}

func (m *MockPaymentRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Payment, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListPendingDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Payment, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) LatestPaid(ctx context.Context, userID, courseID uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, userID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) HasBlockingObligation(ctx context.Context, userID, courseID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, userID, courseID, now)
	return args.Bool(0), args.Error(1)
}

type MockEnrollmentRepository struct {
	mock.Mock
}

func (m *MockEnrollmentRepository) Create(ctx context.Context, enrollment *domain.Enrollment) error {
	args := m.Called(ctx, enrollment)
	return args.Error(0)
}

func (m *MockEnrollmentRepository) GetByUserCourse(ctx context.Context, userID, courseID uuid.UUID) (*domain.Enrollment, error) {
	args := m.Called(ctx, userID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Enrollment), args.Error(1)
}

func (m *MockEnrollmentRepository) ListSuspended(ctx context.Context) ([]*domain.Enrollment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Enrollment), args.Error(1)
}

func (m *MockEnrollmentRepository) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockEnrollmentRepository) Suspend(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockEnrollmentRepository) Restore(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockEnrollmentRepository) SetNextPaymentDue(ctx context.Context, id uuid.UUID, due *time.Time) error {
	args := m.Called(ctx, id, due)
	return args.Error(0)
}

type MockCourseRepository struct {
	mock.Mock
}

func (m *MockCourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Course), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *MockNotificationRepository) ExistsSince(ctx context.Context, userID uuid.UUID, ntype domain.NotificationType, relatedEntityID uuid.UUID, since time.Time) (bool, error) {
	args := m.Called(ctx, userID, ntype, relatedEntityID, since)
	return args.Bool(0), args.Error(1)
}

// MockNotifier satisfies service.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID uuid.UUID, ntype domain.NotificationType, relatedEntityID uuid.UUID, message string) (bool, error) {
	args := m.Called(ctx, userID, ntype, relatedEntityID, message)
	return args.Bool(0), args.Error(1)
}

// MockTransport satisfies notifier.Transport.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, user *domain.User, notification *domain.Notification) error {
	args := m.Called(ctx, user, notification)
	return args.Error(0)
}
