package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eduflow/billing-engine/internal/domain"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, related_entity_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		notification.ID,
		notification.UserID,
		notification.Type,
		notification.RelatedEntityID,
		notification.Message,
		notification.CreatedAt,
	)

	return err
}

func (r *notificationRepository) ExistsSince(ctx context.Context, userID uuid.UUID, ntype domain.NotificationType, relatedEntityID uuid.UUID, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND type = $2 AND related_entity_id = $3 AND created_at >= $4
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, ntype, relatedEntityID, since); err != nil {
		return false, err
	}

	return exists, nil
}
