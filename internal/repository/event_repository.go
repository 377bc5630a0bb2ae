package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/syncd-app/syncd-api/internal/models"
)

var ErrEventNotFound = errors.New("event not found")

type EventRepository interface {
	StoreScraped(ctx context.Context, ev models.ScrapedEvent) error
	GetByID(ctx context.Context, eventID int64) (models.Event, error)
	ListUpcoming(ctx context.Context, userID int64) ([]models.Event, error)
	Subscribe(ctx context.Context, userID, eventID int64) error
	Unsubscribe(ctx context.Context, userID, eventID int64) error
	ListSubscribed(ctx context.Context, userID int64) ([]models.Event, error)
	ListSubscribedBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Event, error)
}

type eventRepository struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewEventRepository(db *sqlx.DB, tm *TransactionManager) EventRepository {
	return &eventRepository{db: db, tm: tm}
}

// StoreScraped upserts one scraped event keyed on (title, event_date) and
// inserts its tags, all in a single transaction. Re-running the scraper is
// idempotent: an existing row gets its mutable fields overwritten and
// duplicate tags are ignored.
func (r *eventRepository) StoreScraped(ctx context.Context, ev models.ScrapedEvent) error {
	return r.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := GetExecutor(txCtx, r.db)

		const upsert = `
			INSERT INTO campus_events (title, description, event_date, location, category, link)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (title, event_date) DO UPDATE SET
				description = EXCLUDED.description,
				location = EXCLUDED.location,
				category = EXCLUDED.category,
				link = EXCLUDED.link
			RETURNING id`

		var eventID int64
		if err := ex.QueryRowxContext(txCtx, upsert,
			ev.Title, ev.Description, ev.Date, ev.Location, ev.Category, ev.Link,
		).Scan(&eventID); err != nil {
			return errors.Wrap(err, "upsert event")
		}

		for _, tag := range ev.Tags {
			if _, err := ex.ExecContext(txCtx,
				`INSERT INTO event_tags (event_id, tag_name) VALUES ($1, $2) ON CONFLICT (event_id, tag_name) DO NOTHING`,
				eventID, tag,
			); err != nil {
				return errors.Wrap(err, "insert event tag")
			}
		}
		return nil
	})
}

func (r *eventRepository) GetByID(ctx context.Context, eventID int64) (models.Event, error) {
	const query = `
		SELECT id, title, description, event_date, location, category, link, created_at
		FROM campus_events
		WHERE id = $1`

	var event models.Event
	err := sqlx.GetContext(ctx, GetExecutor(ctx, r.db), &event, query, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrEventNotFound
	}
	if err != nil {
		return models.Event{}, errors.Wrap(err, "select event")
	}
	return event, nil
}

type eventRow struct {
	models.Event
	TagNames pq.StringArray `db:"tag_names"`
}

// ListUpcoming returns future events with their tags, attendee counts, and
// whether the given user is subscribed. userID 0 means anonymous.
func (r *eventRepository) ListUpcoming(ctx context.Context, userID int64) ([]models.Event, error) {
	const query = `
		SELECT e.id, e.title, e.description, e.event_date, e.location, e.category, e.link, e.created_at,
		       COUNT(DISTINCT s.user_id) AS attendees,
		       ARRAY_REMOVE(ARRAY_AGG(DISTINCT t.tag_name), NULL) AS tag_names,
		       EXISTS(
		           SELECT 1 FROM user_event_subscriptions
		           WHERE user_id = $1 AND event_id = e.id
		       ) AS is_subscribed
		FROM campus_events e
		LEFT JOIN user_event_subscriptions s ON e.id = s.event_id
		LEFT JOIN event_tags t ON e.id = t.event_id
		WHERE e.event_date >= CURRENT_DATE
		GROUP BY e.id
		ORDER BY e.event_date ASC`

	var rows []eventRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, r.db), &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "select upcoming events")
	}

	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		event := row.Event
		event.Tags = row.TagNames
		events = append(events, event)
	}
	return events, nil
}

func (r *eventRepository) Subscribe(ctx context.Context, userID, eventID int64) error {
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO user_event_subscriptions (user_id, event_id) VALUES ($1, $2) ON CONFLICT (user_id, event_id) DO NOTHING`,
		userID, eventID)
	if err != nil {
		return errors.Wrap(err, "insert subscription")
	}
	return nil
}

func (r *eventRepository) Unsubscribe(ctx context.Context, userID, eventID int64) error {
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM user_event_subscriptions WHERE user_id = $1 AND event_id = $2`,
		userID, eventID)
	if err != nil {
		return errors.Wrap(err, "delete subscription")
	}
	return nil
}

func (r *eventRepository) ListSubscribed(ctx context.Context, userID int64) ([]models.Event, error) {
	const query = `
		SELECT e.id, e.title, e.description, e.event_date, e.location, e.category, e.link, e.created_at
		FROM campus_events e
		JOIN user_event_subscriptions s ON e.id = s.event_id
		WHERE s.user_id = $1
		ORDER BY e.event_date ASC`

	var events []models.Event
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, r.db), &events, query, userID); err != nil {
		return nil, errors.Wrap(err, "select subscribed events")
	}
	return events, nil
}

// ListSubscribedBetween is the event half of the daily agenda email.
func (r *eventRepository) ListSubscribedBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Event, error) {
	const query = `
		SELECT e.id, e.title, e.description, e.event_date, e.location, e.category, e.link, e.created_at
		FROM campus_events e
		JOIN user_event_subscriptions s ON e.id = s.event_id
		WHERE s.user_id = $1 AND e.event_date BETWEEN $2 AND $3
		ORDER BY e.event_date ASC`

	var events []models.Event
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, r.db), &events, query, userID, from, to); err != nil {
		return nil, errors.Wrap(err, "select subscribed events in window")
	}
	return events, nil
}
