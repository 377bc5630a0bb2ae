package models

import "time"

// EventCategory classifies a scraped campus event. Categories are assigned
// by keyword heuristics during scraping; GENERAL is the fallback.
type EventCategory string

const (
	CategoryGeneral  EventCategory = "GENERAL"
	CategorySports   EventCategory = "SPORTS"
	CategoryClubs    EventCategory = "CLUBS"
	CategoryAcademic EventCategory = "ACADEMIC"
	CategoryArts     EventCategory = "ARTS"
	CategoryCareer   EventCategory = "CAREER"
)

// Event is a campus calendar event as served by the API.
type Event struct {
	ID           int64         `json:"id" db:"id"`
	Title        string        `json:"title" db:"title"`
	Description  string        `json:"description" db:"description"`
	EventDate    time.Time     `json:"event_date" db:"event_date"`
	Location     string        `json:"location" db:"location"`
	Category     EventCategory `json:"category" db:"category"`
	Link         string        `json:"link" db:"link"`
	Tags         []string      `json:"tags" db:"-"`
	Attendees    int           `json:"attendees" db:"attendees"`
	IsSubscribed bool          `json:"is_subscribed" db:"is_subscribed"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// ScrapedEvent is one event card extracted from the external calendar,
// ready for upsert. Date holds the normalized timestamp; RawDate keeps the
// original free-text string for logging.
type ScrapedEvent struct {
	Title       string
	Description string
	RawDate     string
	Date        time.Time
	Location    string
	Category    EventCategory
	Tags        []string
	Link        string
}
