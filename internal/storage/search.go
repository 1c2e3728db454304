package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/ankix/internal/domain"
)

// Search returns the cards reachable from the given deck (zero Ref means
// any deck) carrying any of the given tags (empty means any), ordered by
// next_review descending. The candidate set is deterministic for a given
// store state; quiz-style shuffling happens above this layer.
func (db *DB) Search(deck domain.Ref, tags []string) ([]*domain.Card, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString(`SELECT DISTINCT c.` + strings.ReplaceAll(cardColumns, ", ", ", c.") + ` FROM card c`)

	if len(tags) > 0 {
		sb.WriteString(`
			JOIN note_tag nt ON nt.note_id = c.note_id
			JOIN tag t ON t.id = nt.tag_id`)
	}

	var where []string
	switch deck.Kind {
	case domain.RefByID:
		where = append(where, `c.deck_id = ?`)
		args = append(args, deck.ID)
	case domain.RefByName:
		where = append(where, `c.deck_id IN (SELECT id FROM deck WHERE name = ?)`)
		args = append(args, deck.Name)
	case domain.RefByValue:
		d, err := getDeck(db.conn, deck)
		if err != nil {
			return nil, err
		}
		where = append(where, `c.deck_id = ?`)
		args = append(args, d.ID)
	}
	if len(tags) > 0 {
		where = append(where, `t.name IN (?`+strings.Repeat(", ?", len(tags)-1)+`)`)
		for _, tag := range tags {
			args = append(args, tag)
		}
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(` ORDER BY c.next_review DESC`)

	rows, err := db.conn.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search cards: %w", err)
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		c, err := scanCard(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// UpdateCardReview persists a card's scheduling state after a review
// transition.
func (db *DB) UpdateCardReview(c *domain.Card) error {
	_, err := db.conn.Exec(`
		UPDATE card SET srs_level = ?, next_review = ? WHERE id = ?
	`, c.SRSLevel, c.NextReview, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update review state for card %d: %w", c.ID, err)
	}
	return nil
}

// DeckSummary is a deck with its card counts, for listings.
type DeckSummary struct {
	Deck  domain.Deck
	Cards int
	Due   int
}

// DeckSummaries lists all decks with total and due-now card counts. A
// card with no next_review counts as due.
func (db *DB) DeckSummaries(now time.Time) ([]DeckSummary, error) {
	rows, err := db.conn.Query(`
		SELECT d.id, d.name,
		       COUNT(c.id),
		       COALESCE(SUM(CASE WHEN c.next_review IS NULL OR c.next_review <= ? THEN 1 ELSE 0 END), 0)
		FROM deck d
		LEFT JOIN card c ON c.deck_id = d.id
		GROUP BY d.id, d.name
		ORDER BY d.name
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize decks: %w", err)
	}
	defer rows.Close()

	var summaries []DeckSummary
	for rows.Next() {
		var s DeckSummary
		if err := rows.Scan(&s.Deck.ID, &s.Deck.Name, &s.Cards, &s.Due); err != nil {
			return nil, fmt.Errorf("failed to scan deck summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
