package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrUnparsableDate marks a date string that does not match the calendar's
// listing format. Callers drop the event instead of failing the batch.
var ErrUnparsableDate = errors.New("date string does not match expected format")

var (
	// "Monday, March 3, 2025 2:30pm" — weekday, month name, day, year, and
	// an optional 12-hour time.
	dateRe = regexp.MustCompile(`(?i)([A-Za-z]+), ([A-Za-z]+) (\d{1,2}), (\d{4})(?: (\d{1,2})(?::(\d{2}))?([ap]m)?)?`)

	// Ranged listings read "... to <end date>"; only the start matters.
	rangeSepRe = regexp.MustCompile(`\bto\b`)
)

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// ParseEventDate normalizes a free-text calendar date such as
// "Monday, March 3, 2025 2:30pm" or "Monday, March 3, 2025 to March 4, 2025"
// into a timestamp. For ranged listings only the start date is kept. A
// missing time component means midnight. The result is interpreted in the
// server's local zone; no timezone information is present in the source.
func ParseEventDate(raw string) (time.Time, error) {
	main := raw
	if loc := rangeSepRe.FindStringIndex(raw); loc != nil {
		main = raw[:loc[0]]
	}
	main = strings.TrimSpace(main)

	match := dateRe.FindStringSubmatch(main)
	if match == nil {
		return time.Time{}, errors.Wrapf(ErrUnparsableDate, "%q", raw)
	}

	month, ok := months[strings.ToLower(match[2])]
	if !ok {
		return time.Time{}, errors.Wrapf(ErrUnparsableDate, "unknown month in %q", raw)
	}

	day, _ := strconv.Atoi(match[3])
	year, _ := strconv.Atoi(match[4])
	if day < 1 || day > 31 {
		return time.Time{}, errors.Wrapf(ErrUnparsableDate, "day out of range in %q", raw)
	}

	hour, minute := 0, 0
	if match[5] != "" {
		hour, _ = strconv.Atoi(match[5])
		if match[6] != "" {
			minute, _ = strconv.Atoi(match[6])
		}
		switch strings.ToLower(match[7]) {
		case "pm":
			if hour != 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
		if hour > 23 || minute > 59 {
			return time.Time{}, errors.Wrapf(ErrUnparsableDate, "time out of range in %q", raw)
		}
	}

	return time.Date(year, month, day, hour, minute, 0, 0, time.Local), nil
}
