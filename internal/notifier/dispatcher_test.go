package notifier_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/eduflow/billing-engine/internal/domain"
	"github.com/eduflow/billing-engine/internal/notifier"
	"github.com/eduflow/billing-engine/tests/mocks"
)

type dispatcherMocks struct {
	notifications *mocks.MockNotificationRepository
	users         *mocks.MockUserRepository
	transport     *mocks.MockTransport
}

func newTestDispatcher() (*notifier.Dispatcher, *dispatcherMocks) {
	m := &dispatcherMocks{
		notifications: new(mocks.MockNotificationRepository),
		users:         new(mocks.MockUserRepository),
		transport:     new(mocks.MockTransport),
	}
	// nil redis: the table alone decides dedup, as in tests and local dev.
	d := notifier.NewDispatcher(m.notifications, m.users, nil, m.transport, 24*time.Hour)
	return d, m
}

func TestNotify_CreatesAndDelivers(t *testing.T) {
	d, m := newTestDispatcher()

	userID := uuid.New()
	paymentID := uuid.New()
	user := &domain.User{ID: userID, Name: "Test Student", Email: "student@example.com"}

	m.notifications.On("ExistsSince", mock.Anything, userID, domain.NotificationPaymentDue, paymentID, mock.Anything).
		Return(false, nil)
	m.notifications.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == userID &&
			n.Type == domain.NotificationPaymentDue &&
			n.RelatedEntityID == paymentID &&
			n.Message == "Payment due soon"
	})).Return(nil)
	m.users.On("GetByID", mock.Anything, userID).Return(user, nil)
	m.transport.On("Send", mock.Anything, user, mock.Anything).Return(nil)

	sent, err := d.Notify(context.Background(), userID, domain.NotificationPaymentDue, paymentID, "Payment due soon")

	assert.NoError(t, err)
	assert.True(t, sent)
	m.notifications.AssertExpectations(t)
	m.transport.AssertExpectations(t)
}

func TestNotify_SuppressesDuplicateInWindow(t *testing.T) {
	d, m := newTestDispatcher()

	userID := uuid.New()
	paymentID := uuid.New()

	m.notifications.On("ExistsSince", mock.Anything, userID, domain.NotificationPaymentDue, paymentID, mock.Anything).
		Return(true, nil)

	sent, err := d.Notify(context.Background(), userID, domain.NotificationPaymentDue, paymentID, "Payment due soon")

	assert.NoError(t, err)
	assert.False(t, sent)
	m.notifications.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotify_DedupWindowIsLookback(t *testing.T) {
	d, m := newTestDispatcher()

	userID := uuid.New()
	paymentID := uuid.New()

	m.notifications.On("ExistsSince", mock.Anything, userID, domain.NotificationPaymentOverdue, paymentID,
		mock.MatchedBy(func(since time.Time) bool {
			expected := time.Now().Add(-24 * time.Hour)
			return since.Sub(expected).Abs() < time.Minute
		})).Return(true, nil)

	sent, err := d.Notify(context.Background(), userID, domain.NotificationPaymentOverdue, paymentID, "Payment overdue")

	assert.NoError(t, err)
	assert.False(t, sent)
	m.notifications.AssertExpectations(t)
}

func TestNotify_TransportFailureIsSwallowed(t *testing.T) {
	// The notification is committed before delivery; a flaky provider must not
	// surface as a billing error.
	d, m := newTestDispatcher()

	userID := uuid.New()
	paymentID := uuid.New()
	user := &domain.User{ID: userID, Email: "student@example.com"}

	m.notifications.On("ExistsSince", mock.Anything, userID, domain.NotificationPaymentSuccessful, paymentID, mock.Anything).
		Return(false, nil)
	m.notifications.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.users.On("GetByID", mock.Anything, userID).Return(user, nil)
	m.transport.On("Send", mock.Anything, user, mock.Anything).Return(assert.AnError)

	sent, err := d.Notify(context.Background(), userID, domain.NotificationPaymentSuccessful, paymentID, "Payment received")

	assert.NoError(t, err)
	assert.True(t, sent)
}

func TestNotify_StoreErrorPropagates(t *testing.T) {
	d, m := newTestDispatcher()

	userID := uuid.New()
	paymentID := uuid.New()

	m.notifications.On("ExistsSince", mock.Anything, userID, domain.NotificationPaymentDue, paymentID, mock.Anything).
		Return(false, assert.AnError)

	sent, err := d.Notify(context.Background(), userID, domain.NotificationPaymentDue, paymentID, "Payment due soon")

	assert.Error(t, err)
	assert.False(t, sent)
	m.notifications.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
