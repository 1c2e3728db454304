// Package srs implements the review scheduler: a small state machine over
// a card's srs_level and next_review, driven by a level-indexed table of
// intervals. The table is configuration, persisted in the store settings,
// not hard-coded policy.
package srs

import (
	"time"

	"github.com/conorfennell/ankix/internal/domain"
)

// Table is an ordered sequence of review intervals indexed by srs level.
// Index 0 is the immediate-relearn slot; the last entry is the mature
// interval. Levels past the end clamp to the last entry.
type Table []time.Duration

// DefaultTable spans ten minutes through sixteen weeks.
func DefaultTable() Table {
	return Table{
		10 * time.Minute,
		4 * time.Hour,
		8 * time.Hour,
		Day,
		3 * Day,
		Week,
		2 * Week,
		4 * Week,
		16 * Week,
	}
}

// Interval returns the duration for a level, clamped to the table bounds.
func (t Table) Interval(level int) time.Duration {
	if len(t) == 0 {
		return 0
	}
	if level < 0 {
		level = 0
	}
	if level >= len(t) {
		level = len(t) - 1
	}
	return t[level]
}

// Strings encodes the table for persistence in the settings row.
func (t Table) Strings() []string {
	out := make([]string, len(t))
	for i, d := range t {
		out[i] = FormatDuration(d)
	}
	return out
}

// ParseTable decodes a persisted table.
func ParseTable(entries []string) (Table, error) {
	t := make(Table, len(entries))
	for i, s := range entries {
		d, err := ParseDuration(s)
		if err != nil {
			return nil, err
		}
		t[i] = d
	}
	return t, nil
}

// DefaultRelearn is the bury applied after a wrong answer.
const DefaultRelearn = time.Minute

// DefaultBury is the suspend applied by an explicit bury.
const DefaultBury = 4 * time.Hour

// Right records a correct answer: the level increments (starting at 1 for
// a never-reviewed card) and the next review is now plus the table
// interval for the new level.
func Right(card *domain.Card, now time.Time, table Table) {
	level := 1
	if card.SRSLevel != nil {
		level = *card.SRSLevel + 1
	}
	card.SRSLevel = &level
	next := now.Add(table.Interval(level))
	card.NextReview = &next
}

// Wrong records an incorrect answer: the level drops by one but never
// below 1 once reviewed (and stays unset if never reviewed), then the
// card is buried for a short relearn delay.
func Wrong(card *domain.Card, now time.Time, relearn time.Duration) {
	if card.SRSLevel != nil && *card.SRSLevel > 1 {
		level := *card.SRSLevel - 1
		card.SRSLevel = &level
	}
	Bury(card, now, relearn)
}

// Bury suspends the card until now plus the given duration without
// touching its level.
func Bury(card *domain.Card, now time.Time, duration time.Duration) {
	next := now.Add(duration)
	card.NextReview = &next
}
