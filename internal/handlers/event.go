package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/syncd-app/syncd-api/internal/authz"
	"github.com/syncd-app/syncd-api/internal/repository"
	"github.com/syncd-app/syncd-api/internal/scheduler"
	"github.com/syncd-app/syncd-api/internal/scraper"
)

type EventHandler struct {
	events    repository.EventRepository
	scheduler *scheduler.Service
	scraper   *scraper.Scraper
	logger    zerolog.Logger
}

func NewEventHandler(events repository.EventRepository, sched *scheduler.Service, sc *scraper.Scraper, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		events:    events,
		scheduler: sched,
		scraper:   sc,
		logger:    logger.With().Str("handler", "event").Logger(),
	}
}

// List serves upcoming events. Works without authentication; a logged-in
// user additionally gets their subscription flags.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := authz.UserIDFromRequest(r)

	events, err := h.events.ListUpcoming(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list events")
		http.Error(w, "Error fetching events", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// Subscribe adds the user to an event and schedules their reminder for it.
func (h *EventHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	eventID, err := strconv.ParseInt(mux.Vars(r)["eventID"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	event, err := h.events.GetByID(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to load event")
		http.Error(w, "Error subscribing to event", http.StatusInternalServerError)
		return
	}

	if err := h.events.Subscribe(r.Context(), userID, eventID); err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe")
		http.Error(w, "Error subscribing to event", http.StatusInternalServerError)
		return
	}

	if err := h.scheduler.ScheduleEventReminder(r.Context(), eventID, userID, event.EventDate); err != nil {
		h.logger.Error().Err(err).Int64("event_id", eventID).Msg("failed to schedule event reminder")
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully subscribed to event"})
}

func (h *EventHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	eventID, err := strconv.ParseInt(mux.Vars(r)["eventID"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	if err := h.events.Unsubscribe(r.Context(), userID, eventID); err != nil {
		h.logger.Error().Err(err).Msg("failed to unsubscribe")
		http.Error(w, "Error unsubscribing from event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully unsubscribed from event"})
}

func (h *EventHandler) Subscribed(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	events, err := h.events.ListSubscribed(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list subscribed events")
		http.Error(w, "Error fetching subscribed events", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// TriggerScrape runs one scrape pass on demand.
func (h *EventHandler) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	stored, err := h.scraper.Run(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("manual scrape failed")
		http.Error(w, "Error scraping events", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Successfully scraped events",
		"count":   stored,
	})
}
