package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/syncd-app/syncd-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// DigestRecipient is one user who has email notifications enabled, paired
// with their configured agenda time of day.
type DigestRecipient struct {
	UserID          int64  `db:"user_id"`
	DailyAgendaTime string `db:"daily_agenda_time"`
}

type UserRepository interface {
	Create(ctx context.Context, name, email, password string) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	GetByID(ctx context.Context, userID int64) (models.User, error)
	GetPreferences(ctx context.Context, userID int64) (models.Preferences, error)
	UpdatePreferences(ctx context.Context, userID int64, prefs models.Preferences) (models.Preferences, error)
	ListDigestRecipients(ctx context.Context) ([]DigestRecipient, error)
}

type userRepository struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewUserRepository(db *sqlx.DB, tm *TransactionManager) UserRepository {
	return &userRepository{db: db, tm: tm}
}

func (r *userRepository) Create(ctx context.Context, name, email, password string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, errors.Wrap(err, "hash password")
	}

	const query = `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, password_hash, avatar_url, created_at, updated_at`

	var user models.User
	err = sqlx.GetContext(ctx, GetExecutor(ctx, r.db), &user, query, name, email, string(hash))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, errors.Wrap(err, "insert user")
	}

	return user, nil
}

func (r *userRepository) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	const query = `
		SELECT id, name, email, password_hash, avatar_url, created_at, updated_at
		FROM users
		WHERE email = $1`

	var user models.User
	err := sqlx.GetContext(ctx, GetExecutor(ctx, r.db), &user, query, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, errors.Wrap(err, "select user by email")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, userID int64) (models.User, error) {
	const query = `
		SELECT id, name, email, password_hash, avatar_url, created_at, updated_at
		FROM users
		WHERE id = $1`

	var user models.User
	err := sqlx.GetContext(ctx, GetExecutor(ctx, r.db), &user, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, errors.Wrap(err, "select user by id")
	}
	return user, nil
}

// GetPreferences falls back to the defaults when the user never saved a
// preferences row.
func (r *userRepository) GetPreferences(ctx context.Context, userID int64) (models.Preferences, error) {
	const query = `
		SELECT user_id, theme, email_notifications, event_reminders, reminder_hours,
		       to_char(daily_agenda_time, 'HH24:MI:SS') AS daily_agenda_time, updated_at
		FROM user_preferences
		WHERE user_id = $1`

	var prefs models.Preferences
	err := sqlx.GetContext(ctx, GetExecutor(ctx, r.db), &prefs, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPreferences(userID), nil
	}
	if err != nil {
		return models.Preferences{}, errors.Wrap(err, "select preferences")
	}
	return prefs, nil
}

// UpdatePreferences upserts the preferences row and touches the user record
// in one transaction.
func (r *userRepository) UpdatePreferences(ctx context.Context, userID int64, prefs models.Preferences) (models.Preferences, error) {
	err := r.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := GetExecutor(txCtx, r.db)

		const upsert = `
			INSERT INTO user_preferences (user_id, theme, email_notifications, event_reminders, reminder_hours, daily_agenda_time)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id) DO UPDATE SET
				theme = EXCLUDED.theme,
				email_notifications = EXCLUDED.email_notifications,
				event_reminders = EXCLUDED.event_reminders,
				reminder_hours = EXCLUDED.reminder_hours,
				daily_agenda_time = EXCLUDED.daily_agenda_time,
				updated_at = now()`
		if _, err := ex.ExecContext(txCtx, upsert,
			userID, prefs.Theme, prefs.EmailNotifications, prefs.EventReminders, prefs.ReminderHours, prefs.DailyAgendaTime,
		); err != nil {
			return errors.Wrap(err, "upsert preferences")
		}

		if _, err := ex.ExecContext(txCtx, `UPDATE users SET updated_at = now() WHERE id = $1`, userID); err != nil {
			return errors.Wrap(err, "touch user")
		}

		return nil
	})
	if err != nil {
		return models.Preferences{}, err
	}

	return r.GetPreferences(ctx, userID)
}

func (r *userRepository) ListDigestRecipients(ctx context.Context) ([]DigestRecipient, error) {
	const query = `
		SELECT u.id AS user_id, to_char(p.daily_agenda_time, 'HH24:MI:SS') AS daily_agenda_time
		FROM users u
		JOIN user_preferences p ON u.id = p.user_id
		WHERE p.email_notifications = TRUE`

	var recipients []DigestRecipient
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, r.db), &recipients, query); err != nil {
		return nil, errors.Wrap(err, "select digest recipients")
	}
	return recipients, nil
}
