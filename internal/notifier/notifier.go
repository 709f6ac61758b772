// Package notifier implements the notification dispatch contract: persist a
// billing notification for a user, suppress duplicates inside the lookback
// window, and hand the message to a transport. Transport failures are logged
// and never propagated, so a committed billing transition cannot be rolled
// back by a flaky mail provider.
package notifier

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/eduflow/billing-engine/internal/domain"
	"github.com/eduflow/billing-engine/internal/repository"
)

// Transport delivers a notification to the user. Implementations must treat
// delivery as at-least-once; deduplication happens before they are called.
type Transport interface {
	Send(ctx context.Context, user *domain.User, notification *domain.Notification) error
}

type Dispatcher struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	redis         *redis.Client
	transport     Transport
	dedupWindow   time.Duration
}

// NewDispatcher builds a dispatcher. redis may be nil; the fast-path dedup is
// then skipped and the notifications table alone decides.
func NewDispatcher(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	redisClient *redis.Client,
	transport Transport,
	dedupWindow time.Duration,
) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		users:         users,
		redis:         redisClient,
		transport:     transport,
		dedupWindow:   dedupWindow,
	}
}

// Notify dispatches a notification unless an equivalent one (same user, type
// and related entity) was created within the dedup window. It returns whether
// a notification was actually created. Errors are returned only for dedup
// bookkeeping failures; transport errors are logged and swallowed.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, ntype domain.NotificationType, relatedEntityID uuid.UUID, message string) (bool, error) {
	since := time.Now().Add(-d.dedupWindow)

	// Fast path: a marker in Redis means we already sent this recently.
	// Redis being down just degrades to the table lookup.
	key := d.dedupKey(userID, ntype, relatedEntityID)
	if d.redis != nil {
		exists, err := d.redis.Exists(ctx, key).Result()
		if err != nil {
			log.Printf("notifier: redis dedup lookup failed, falling back to store: %v", err)
		} else if exists > 0 {
			return false, nil
		}
	}

	duplicate, err := d.notifications.ExistsSince(ctx, userID, ntype, relatedEntityID, since)
	if err != nil {
		return false, err
	}
	if duplicate {
		return false, nil
	}

	notification := &domain.Notification{
		ID:              uuid.New(),
		UserID:          userID,
		Type:            ntype,
		RelatedEntityID: relatedEntityID,
		Message:         message,
		CreatedAt:       time.Now(),
	}
	if err := d.notifications.Create(ctx, notification); err != nil {
		return false, err
	}

	if d.redis != nil {
		if err := d.redis.SetNX(ctx, key, 1, d.dedupWindow).Err(); err != nil {
			log.Printf("notifier: failed to set dedup marker: %v", err)
		}
	}

	d.deliver(ctx, notification)

	return true, nil
}

func (d *Dispatcher) deliver(ctx context.Context, notification *domain.Notification) {
	if d.transport == nil {
		return
	}

	user, err := d.users.GetByID(ctx, notification.UserID)
	if err != nil {
		log.Printf("notifier: cannot resolve user %s for delivery: %v", notification.UserID, err)
		return
	}

	if err := d.transport.Send(ctx, user, notification); err != nil {
		log.Printf("notifier: transport failed for user %s (%s): %v", notification.UserID, notification.Type, err)
	}
}

func (d *Dispatcher) dedupKey(userID uuid.UUID, ntype domain.NotificationType, relatedEntityID uuid.UUID) string {
	return fmt.Sprintf("notif:%s:%s:%s", userID, ntype, relatedEntityID)
}
