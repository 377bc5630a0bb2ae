package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/syncd-app/syncd-api/internal/config"
	"github.com/syncd-app/syncd-api/internal/models"
)

// EventStore persists one scraped event with its tags.
type EventStore interface {
	StoreScraped(ctx context.Context, ev models.ScrapedEvent) error
}

// Scraper walks the external calendar's listing pages and upserts the events
// it finds. Page fetches are sequential with a courtesy delay between them;
// a fetch failure aborts the current pass and the periodic runner retries on
// the next interval.
type Scraper struct {
	client *http.Client
	cfg    config.ScraperConfig
	store  EventStore
	logger zerolog.Logger
}

func New(cfg config.ScraperConfig, store EventStore, logger zerolog.Logger) *Scraper {
	return &Scraper{
		client: &http.Client{},
		cfg:    cfg,
		store:  store,
		logger: logger.With().Str("component", "scraper").Logger(),
	}
}

// Start runs one scrape pass immediately, then repeats on the configured
// interval until the context is cancelled. Pass failures are logged and the
// loop continues.
func (s *Scraper) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("scraper started")

	s.runPass(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scraper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Scraper) runPass(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scrape pass failed")
	}
}

// Run performs a single scrape pass: fetch every listing page, accumulate
// the cards whose dates parse, then upsert each event. A storage failure for
// one event does not stop the rest; a fetch failure aborts the pass.
// Returns the number of events stored.
func (s *Scraper) Run(ctx context.Context) (int, error) {
	var all []models.ScrapedEvent

	for page := 1; page <= s.cfg.Pages; page++ {
		events, err := s.fetchPage(ctx, page)
		if err != nil {
			return 0, errors.Wrapf(err, "fetch page %d", page)
		}

		s.logger.Info().Int("page", page).Int("events", len(events)).Msg("scraped listing page")
		all = append(all, events...)

		if page < s.cfg.Pages {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(s.cfg.PageDelay):
			}
		}
	}

	stored := 0
	for _, ev := range all {
		if err := s.store.StoreScraped(ctx, ev); err != nil {
			s.logger.Error().Err(err).Str("title", ev.Title).Str("date", ev.RawDate).Msg("failed to store event")
			continue
		}
		stored++
	}

	s.logger.Info().Int("found", len(all)).Int("stored", stored).Msg("scrape pass complete")
	return stored, nil
}

func (s *Scraper) pageURL(page int) string {
	if page == 1 {
		return s.cfg.BaseURL + "/calendar"
	}
	return fmt.Sprintf("%s/calendar/%d", s.cfg.BaseURL, page)
}

func (s *Scraper) fetchPage(ctx context.Context, page int) ([]models.ScrapedEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL(page), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	return s.parseListing(resp.Body), nil
}

// parseListing extracts event cards from one listing page. Cards whose date
// text does not parse are logged and skipped; one bad card never aborts the
// page.
func (s *Scraper) parseListing(r io.Reader) []models.ScrapedEvent {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to parse listing HTML")
		return nil
	}

	var events []models.ScrapedEvent
	doc.Find("#event_results .em-card").Each(func(_ int, card *goquery.Selection) {
		titleLink := card.Find(".em-card_text h3 a")
		title := strings.TrimSpace(titleLink.Text())
		dateText := strings.TrimSpace(card.Find(".em-card_event-text").First().Text())
		description := strings.TrimSpace(card.Find(".em-card_text p").Text())

		location := ""
		if locationLink := card.Find(`a[href*="/location/"]`); locationLink.Length() > 0 {
			location = strings.TrimSpace(locationLink.First().Text())
		}

		link, _ := titleLink.Attr("href")
		if link != "" && !strings.HasPrefix(link, "http") {
			link = s.cfg.BaseURL + link
		}

		classes, _ := card.Attr("class")
		category := Classify(classes, card.Text())
		tags := ExtractTags(category, title, location)

		date, err := ParseEventDate(dateText)
		if err != nil {
			s.logger.Warn().Str("title", title).Str("date", dateText).Msg("skipping event with unparsable date")
			return
		}

		events = append(events, models.ScrapedEvent{
			Title:       title,
			Description: description,
			RawDate:     dateText,
			Date:        date,
			Location:    location,
			Category:    category,
			Tags:        tags,
			Link:        link,
		})
	})

	return events
}
