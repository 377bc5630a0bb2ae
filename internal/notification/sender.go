package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/syncd-app/syncd-api/internal/models"
	"github.com/syncd-app/syncd-api/internal/repository"
)

const dateFormat = "January 2, 2006 3:04 PM"

// EmailSender turns due notification rows into emails. It implements the
// sweep's Dispatcher: one method per notification kind, selected by a
// switch on the row's type.
type EmailSender struct {
	mailer Mailer
	users  repository.UserRepository
	tasks  repository.TaskRepository
	events repository.EventRepository
	logger zerolog.Logger
}

func NewEmailSender(
	mailer Mailer,
	users repository.UserRepository,
	tasks repository.TaskRepository,
	events repository.EventRepository,
	logger zerolog.Logger,
) *EmailSender {
	return &EmailSender{
		mailer: mailer,
		users:  users,
		tasks:  tasks,
		events: events,
		logger: logger.With().Str("component", "email_sender").Logger(),
	}
}

// Dispatch sends the email for one due notification. A missing user or
// subject row (deleted since scheduling) drops the notification instead of
// retrying it forever.
func (s *EmailSender) Dispatch(ctx context.Context, notification models.Notification) error {
	user, err := s.users.GetByID(ctx, notification.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Warn().Int64("user_id", notification.UserID).Msg("recipient no longer exists, dropping notification")
			return nil
		}
		return errors.Wrap(err, "load recipient")
	}

	switch notification.Type {
	case models.NotificationTaskDue:
		return s.sendTaskDueReminder(ctx, user, notification)
	case models.NotificationEventReminder:
		return s.sendEventReminder(ctx, user, notification)
	case models.NotificationDailyAgenda:
		return s.sendDailyAgenda(ctx, user)
	default:
		return errors.Errorf("unknown notification type %q", notification.Type)
	}
}

func (s *EmailSender) sendTaskDueReminder(ctx context.Context, user models.User, notification models.Notification) error {
	if notification.ReferenceID == nil {
		return errors.New("task reminder missing reference id")
	}

	task, err := s.tasks.GetByID(ctx, *notification.ReferenceID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			s.logger.Warn().Int64("task_id", *notification.ReferenceID).Msg("task gone, dropping reminder")
			return nil
		}
		return errors.Wrap(err, "load task")
	}

	subject := fmt.Sprintf("Task Due Soon: %s", task.Title)

	body := strings.Builder{}
	fmt.Fprintf(&body, "Hi %s,\n\n", user.Name)
	if task.DueDate != nil {
		fmt.Fprintf(&body, "Your task %q is due on %s.\n\n", task.Title, task.DueDate.Format(dateFormat))
	} else {
		fmt.Fprintf(&body, "Your task %q is due soon.\n\n", task.Title)
	}
	body.WriteString("Log in to Syncd to view more details or update the task status.\n")

	return s.mailer.Send(user.Email, subject, body.String())
}

func (s *EmailSender) sendEventReminder(ctx context.Context, user models.User, notification models.Notification) error {
	if notification.ReferenceID == nil {
		return errors.New("event reminder missing reference id")
	}

	event, err := s.events.GetByID(ctx, *notification.ReferenceID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			s.logger.Warn().Int64("event_id", *notification.ReferenceID).Msg("event gone, dropping reminder")
			return nil
		}
		return errors.Wrap(err, "load event")
	}

	subject := fmt.Sprintf("Upcoming Event: %s", event.Title)

	body := strings.Builder{}
	fmt.Fprintf(&body, "Hi %s,\n\n", user.Name)
	body.WriteString("You have an upcoming event:\n\n")
	fmt.Fprintf(&body, "%s\n", event.Title)
	fmt.Fprintf(&body, "Date: %s\n", event.EventDate.Format(dateFormat))
	if event.Location != "" {
		fmt.Fprintf(&body, "Location: %s\n", event.Location)
	}
	body.WriteString("\nLog in to Syncd to view more details.\n")

	return s.mailer.Send(user.Email, subject, body.String())
}

// sendDailyAgenda lists the user's tasks due today and subscribed events
// happening today.
func (s *EmailSender) sendDailyAgenda(ctx context.Context, user models.User) error {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	tasks, err := s.tasks.ListDueBetween(ctx, user.ID, dayStart, dayEnd)
	if err != nil {
		return errors.Wrap(err, "load agenda tasks")
	}

	events, err := s.events.ListSubscribedBetween(ctx, user.ID, dayStart, dayEnd)
	if err != nil {
		return errors.Wrap(err, "load agenda events")
	}

	subject := fmt.Sprintf("Your Daily Agenda for %s", now.Format("January 2, 2006"))

	body := strings.Builder{}
	fmt.Fprintf(&body, "Hi %s,\n\n", user.Name)

	body.WriteString("Tasks Due Today\n")
	if len(tasks) == 0 {
		body.WriteString("  No tasks due today\n")
	}
	for _, task := range tasks {
		due := ""
		if task.DueDate != nil {
			due = task.DueDate.Format("3:04 PM") + " - "
		}
		fmt.Fprintf(&body, "  %s%s (%s priority, %s)\n", due, task.Title, task.Priority, task.Status)
	}

	body.WriteString("\nToday's Events\n")
	if len(events) == 0 {
		body.WriteString("  No events scheduled today\n")
	}
	for _, event := range events {
		fmt.Fprintf(&body, "  %s - %s", event.EventDate.Format("3:04 PM"), event.Title)
		if event.Location != "" {
			fmt.Fprintf(&body, " @ %s", event.Location)
		}
		body.WriteString("\n")
	}

	body.WriteString("\nLog in to Syncd to manage your schedule.\n")

	return s.mailer.Send(user.Email, subject, body.String())
}
