package models

import "time"

type NotificationType string

const (
	NotificationTaskDue       NotificationType = "task_due"
	NotificationEventReminder NotificationType = "event_reminder"
	NotificationDailyAgenda   NotificationType = "daily_agenda"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
)

// Notification is one scheduled email reminder. ReferenceID points at the
// task or event the reminder is about; it is nil for daily agendas. Rows
// move from pending to sent and are never deleted or reverted.
type Notification struct {
	ID            int64              `json:"id" db:"id"`
	UserID        int64              `json:"user_id" db:"user_id"`
	Type          NotificationType   `json:"type" db:"type"`
	ReferenceID   *int64             `json:"reference_id,omitempty" db:"reference_id"`
	ScheduledTime time.Time          `json:"scheduled_time" db:"scheduled_time"`
	Status        NotificationStatus `json:"status" db:"status"`
	SentAt        *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
}
