package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/syncd-app/syncd-api/internal/models"
	"github.com/syncd-app/syncd-api/internal/repository"
)

// PreferenceStore supplies each user's reminder offset.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID int64) (models.Preferences, error)
	ListDigestRecipients(ctx context.Context) ([]repository.DigestRecipient, error)
}

// NotificationStore enqueues pending notification rows. Duplicate tuples
// must be no-ops (the storage layer's uniqueness constraint resolves races
// between concurrent schedule calls; there is no application-side locking).
type NotificationStore interface {
	Schedule(ctx context.Context, params repository.ScheduleParams) error
}

// Service computes reminder times and enqueues pending notifications for
// the sweep to dispatch.
type Service struct {
	prefs         PreferenceStore
	notifications NotificationStore
	logger        zerolog.Logger
}

func NewService(prefs PreferenceStore, notifications NotificationStore, logger zerolog.Logger) *Service {
	return &Service{
		prefs:         prefs,
		notifications: notifications,
		logger:        logger.With().Str("component", "scheduler").Logger(),
	}
}

// ScheduleTaskReminder enqueues a task-due reminder at the user's configured
// offset before the due date. Calling it twice for the same due date is a
// no-op.
func (s *Service) ScheduleTaskReminder(ctx context.Context, taskID, userID int64, dueDate time.Time) error {
	return s.scheduleReminder(ctx, models.NotificationTaskDue, taskID, userID, dueDate)
}

// ScheduleEventReminder is the event counterpart of ScheduleTaskReminder.
func (s *Service) ScheduleEventReminder(ctx context.Context, eventID, userID int64, eventDate time.Time) error {
	return s.scheduleReminder(ctx, models.NotificationEventReminder, eventID, userID, eventDate)
}

func (s *Service) scheduleReminder(ctx context.Context, kind models.NotificationType, referenceID, userID int64, at time.Time) error {
	prefs, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "load preferences")
	}

	reminderTime := at.Add(-time.Duration(prefs.ReminderHours) * time.Hour)

	err = s.notifications.Schedule(ctx, repository.ScheduleParams{
		UserID:        userID,
		Type:          kind,
		ReferenceID:   &referenceID,
		ScheduledTime: reminderTime,
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("type", string(kind)).
		Int64("reference_id", referenceID).
		Time("reminder_time", reminderTime).
		Msg("reminder scheduled")
	return nil
}

// ScheduleDailyDigests enqueues one daily agenda notification per user with
// email notifications enabled, at that user's configured time of day (today
// if still ahead, else tomorrow). Running it twice on the same day adds
// nothing. A failure for one user does not stop the rest.
func (s *Service) ScheduleDailyDigests(ctx context.Context) error {
	recipients, err := s.prefs.ListDigestRecipients(ctx)
	if err != nil {
		return errors.Wrap(err, "list digest recipients")
	}

	for _, recipient := range recipients {
		at, err := NextDigestTime(time.Now(), recipient.DailyAgendaTime)
		if err != nil {
			s.logger.Error().Err(err).Int64("user_id", recipient.UserID).Msg("invalid agenda time")
			continue
		}

		err = s.notifications.Schedule(ctx, repository.ScheduleParams{
			UserID:        recipient.UserID,
			Type:          models.NotificationDailyAgenda,
			ScheduledTime: at,
		})
		if err != nil {
			s.logger.Error().Err(err).Int64("user_id", recipient.UserID).Msg("failed to schedule daily agenda")
			continue
		}
	}
	return nil
}

// NextDigestTime resolves an "HH:MM" or "HH:MM:SS" time of day to its next
// occurrence: today if that moment is still ahead of now, else tomorrow.
func NextDigestTime(now time.Time, agendaTime string) (time.Time, error) {
	var hour, minute, second int
	if _, err := fmt.Sscanf(agendaTime, "%d:%d:%d", &hour, &minute, &second); err != nil {
		second = 0
		if _, err := fmt.Sscanf(agendaTime, "%d:%d", &hour, &minute); err != nil {
			return time.Time{}, errors.Errorf("malformed agenda time %q", agendaTime)
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, errors.Errorf("agenda time out of range %q", agendaTime)
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, second, 0, now.Location())
	if at.Before(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, nil
}
