package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/syncd-app/syncd-api/internal/models"
)

type ScheduleParams struct {
	UserID        int64
	Type          models.NotificationType
	ReferenceID   *int64
	ScheduledTime time.Time
}

type NotificationRepository interface {
	Schedule(ctx context.Context, params ScheduleParams) error
	ListDue(ctx context.Context, now time.Time) ([]models.Notification, error)
	MarkSent(ctx context.Context, notificationID int64) error
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Schedule inserts a pending notification. Duplicate (user, type, reference,
// time) tuples are silently dropped by the unique index, which makes repeat
// scheduling calls no-ops.
func (r *notificationRepository) Schedule(ctx context.Context, params ScheduleParams) error {
	const query = `
		INSERT INTO email_notifications (user_id, type, reference_id, scheduled_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, type, COALESCE(reference_id, 0), scheduled_time) DO NOTHING`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		params.UserID, params.Type, params.ReferenceID, params.ScheduledTime)
	if err != nil {
		return errors.Wrap(err, "schedule notification")
	}
	return nil
}

func (r *notificationRepository) ListDue(ctx context.Context, now time.Time) ([]models.Notification, error) {
	const query = `
		SELECT id, user_id, type, reference_id, scheduled_time, status, sent_at, created_at
		FROM email_notifications
		WHERE status = 'pending' AND scheduled_time <= $1
		ORDER BY scheduled_time ASC`

	var notifications []models.Notification
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, r.db), &notifications, query, now); err != nil {
		return nil, errors.Wrap(err, "select due notifications")
	}
	return notifications, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, notificationID int64) error {
	const query = `
		UPDATE email_notifications
		SET status = 'sent', sent_at = now()
		WHERE id = $1 AND status = 'pending'`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, notificationID)
	if err != nil {
		return errors.Wrap(err, "mark notification sent")
	}
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	const query = `
		SELECT id, user_id, type, reference_id, scheduled_time, status, sent_at, created_at
		FROM email_notifications
		WHERE user_id = $1
		ORDER BY scheduled_time DESC
		LIMIT $2`

	var notifications []models.Notification
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, r.db), &notifications, query, userID, limit); err != nil {
		return nil, errors.Wrap(err, "select user notifications")
	}
	return notifications, nil
}
