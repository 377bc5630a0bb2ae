package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/syncd-app/syncd-api/internal/models"
)

// SweepStore reads due pending notifications and records dispatch.
type SweepStore interface {
	ListDue(ctx context.Context, now time.Time) ([]models.Notification, error)
	MarkSent(ctx context.Context, notificationID int64) error
}

// Dispatcher delivers one due notification, keyed by its type.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification models.Notification) error
}

// Processor owns the two periodic jobs: the per-minute sweep over due
// pending notifications and the midnight pre-scheduling of daily digests.
type Processor struct {
	cron       *cron.Cron
	store      SweepStore
	dispatcher Dispatcher
	service    *Service
	logger     zerolog.Logger
}

func NewProcessor(store SweepStore, dispatcher Dispatcher, service *Service, logger zerolog.Logger) *Processor {
	return &Processor{
		cron:       cron.New(),
		store:      store,
		dispatcher: dispatcher,
		service:    service,
		logger:     logger.With().Str("component", "notification_processor").Logger(),
	}
}

// Start registers the cron entries and begins processing. sweepSpec and
// digestSpec are standard five-field cron expressions.
func (p *Processor) Start(sweepSpec, digestSpec string) error {
	if _, err := p.cron.AddFunc(sweepSpec, func() {
		if err := p.RunSweep(context.Background()); err != nil {
			p.logger.Error().Err(err).Msg("sweep failed")
		}
	}); err != nil {
		return errors.Wrap(err, "register sweep job")
	}

	if _, err := p.cron.AddFunc(digestSpec, func() {
		if err := p.service.ScheduleDailyDigests(context.Background()); err != nil {
			p.logger.Error().Err(err).Msg("daily digest scheduling failed")
		}
	}); err != nil {
		return errors.Wrap(err, "register digest job")
	}

	p.cron.Start()
	p.logger.Info().Str("sweep", sweepSpec).Str("digest", digestSpec).Msg("notification processor started")
	return nil
}

func (p *Processor) Stop() {
	p.cron.Stop()
	p.logger.Info().Msg("notification processor stopped")
}

// RunSweep dispatches every pending notification whose scheduled time has
// passed. Each record is handled independently: a dispatch failure is
// logged and the row stays pending, so the next sweep retries it. There is
// no backoff or attempt cap; a permanently failing record retries every
// sweep.
func (p *Processor) RunSweep(ctx context.Context) error {
	due, err := p.store.ListDue(ctx, time.Now())
	if err != nil {
		return errors.Wrap(err, "list due notifications")
	}

	for _, notification := range due {
		if err := p.dispatcher.Dispatch(ctx, notification); err != nil {
			p.logger.Error().Err(err).
				Int64("notification_id", notification.ID).
				Str("type", string(notification.Type)).
				Msg("dispatch failed, leaving pending")
			continue
		}

		if err := p.store.MarkSent(ctx, notification.ID); err != nil {
			p.logger.Error().Err(err).
				Int64("notification_id", notification.ID).
				Msg("failed to mark notification sent")
		}
	}
	return nil
}
