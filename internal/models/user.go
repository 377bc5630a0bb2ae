package models

import "time"

type User struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	AvatarURL    *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Preferences holds per-user notification and display settings. A user
// without a preferences row gets DefaultPreferences.
type Preferences struct {
	UserID             int64     `json:"-" db:"user_id"`
	Theme              string    `json:"theme" db:"theme"`
	EmailNotifications bool      `json:"email_notifications" db:"email_notifications"`
	EventReminders     bool      `json:"event_reminders" db:"event_reminders"`
	ReminderHours      int       `json:"reminder_hours" db:"reminder_hours"`
	DailyAgendaTime    string    `json:"daily_agenda_time" db:"daily_agenda_time"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

func DefaultPreferences(userID int64) Preferences {
	return Preferences{
		UserID:             userID,
		Theme:              "light",
		EmailNotifications: true,
		EventReminders:     true,
		ReminderHours:      24,
		DailyAgendaTime:    "08:00:00",
	}
}
