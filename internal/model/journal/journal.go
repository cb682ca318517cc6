// Package journal defines the persisted journal records and the store
// contract the session layer consumes.
package journal

import (
	"time"

	"github.com/zhouzirui/daybook/internal/calendar"
)

// Subject is one journaling identity, keyed by the stable public-key
// fingerprint the transport derives. Provisioned implicitly on first contact.
type Subject struct {
	ID          string
	Fingerprint string
	CreatedAt   time.Time
}

// Entry holds the single journal body for one subject on one day.
type Entry struct {
	SubjectID string
	Day       calendar.Day
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Question is the prompt shown at the start of a subject's session for one day.
type Question struct {
	SubjectID string
	Day       calendar.Day
	Text      string
	CreatedAt time.Time
}

// EntryPreview is one :history row: a day plus a truncated body.
type EntryPreview struct {
	Day     calendar.Day
	Preview string
}

// Preview truncates body to width runes, appending an ellipsis marker only
// when something was cut. Matches the original history rendering.
func Preview(body string, width int) string {
	runes := []rune(body)
	if len(runes) <= width {
		return body
	}
	return string(runes[:width]) + "…"
}
