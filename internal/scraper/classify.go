package scraper

import (
	"strings"

	"github.com/syncd-app/syncd-api/internal/models"
)

// Classify picks an event category from the card's CSS classes and visible
// text. Rules are evaluated in fixed priority order; the first match wins.
func Classify(cardClasses, cardText string) models.EventCategory {
	classes := strings.ToLower(cardClasses)
	text := strings.ToLower(cardText)

	switch {
	case strings.Contains(classes, "athletics") || strings.Contains(text, "fitness"):
		return models.CategorySports
	case strings.Contains(classes, "student-life") || strings.Contains(text, "student life"):
		return models.CategoryClubs
	case strings.Contains(classes, "academic") || strings.Contains(text, "lab") || strings.Contains(text, "class"):
		return models.CategoryAcademic
	case strings.Contains(classes, "arts") || strings.Contains(text, "art") || strings.Contains(text, "entertainment"):
		return models.CategoryArts
	case strings.Contains(classes, "career") || strings.Contains(text, "career") || strings.Contains(text, "job"):
		return models.CategoryCareer
	}
	return models.CategoryGeneral
}

var keywordTags = []string{"lab", "class", "fitness", "recreation"}

// ExtractTags builds the tag set for an event: the lowercased category plus
// keyword tags found in the title, and "recreation" when the location names
// a recreation facility.
func ExtractTags(category models.EventCategory, title, location string) []string {
	tags := []string{strings.ToLower(string(category))}
	seen := map[string]bool{tags[0]: true}

	titleLower := strings.ToLower(title)
	for _, kw := range keywordTags {
		if strings.Contains(titleLower, kw) && !seen[kw] {
			tags = append(tags, kw)
			seen[kw] = true
		}
	}
	if strings.Contains(strings.ToLower(location), "recreation") && !seen["recreation"] {
		tags = append(tags, "recreation")
	}
	return tags
}
