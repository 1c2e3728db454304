// Package ankix is a personal flashcard collection: import packaged
// decks, store them normalized and deduplicated in a single SQLite
// file, render cards to self-contained HTML and schedule reviews with
// an interval-table scheduler.
package ankix

import (
	"math/rand/v2"
	"time"

	"github.com/conorfennell/ankix/internal/apkg"
	"github.com/conorfennell/ankix/internal/domain"
	"github.com/conorfennell/ankix/internal/render"
	"github.com/conorfennell/ankix/internal/srs"
	"github.com/conorfennell/ankix/internal/storage"
)

// Collection is an open flashcard store.
type Collection struct {
	db       *storage.DB
	settings storage.Settings
}

// Option adjusts the persisted collection settings at open time.
type Option func(*storage.Settings)

// WithMarkdown sets whether field values are formatted as markdown when
// rendering.
func WithMarkdown(on bool) Option {
	return func(s *storage.Settings) { s.Markdown = on }
}

// WithSRS replaces the review interval table.
func WithSRS(table srs.Table) Option {
	return func(s *storage.Settings) { s.SRS = table }
}

// Open opens (or creates) the collection stored at path. Options change
// the stored settings and persist across future opens.
func Open(path string, opts ...Option) (*Collection, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	settings, err := db.Settings()
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(opts) > 0 {
		for _, opt := range opts {
			opt(&settings)
		}
		if err := db.SaveSettings(settings); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Collection{db: db, settings: settings}, nil
}

// FromAPKG opens the collection at path and imports the package archive
// into it.
func FromAPKG(archive, path string, opts ...Option) (*Collection, error) {
	col, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := col.ImportAPKG(archive); err != nil {
		col.Close()
		return nil, err
	}
	return col, nil
}

// Close closes the underlying store.
func (c *Collection) Close() error {
	return c.db.Close()
}

// Settings returns the collection settings as of open time.
func (c *Collection) Settings() storage.Settings {
	return c.settings
}

// ImportAPKG imports a package archive, skipping media of the given
// types. The import is atomic.
func (c *Collection) ImportAPKG(path string, skip ...domain.MediaType) error {
	return apkg.Import(c.db, path, apkg.Options{SkipMedia: skip})
}

// DeckSummaries lists all decks with total and due card counts.
func (c *Collection) DeckSummaries(now time.Time) ([]storage.DeckSummary, error) {
	return c.db.DeckSummaries(now)
}

// Quiz returns the cards of the deck (zero Ref means all decks) carrying
// any of the tags (empty means any), in random order.
func (c *Collection) Quiz(deck domain.Ref, tags []string) ([]*domain.Card, error) {
	cards, err := c.db.Search(deck, tags)
	if err != nil {
		return nil, err
	}
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards, nil
}

// RenderCard assembles everything a card needs (note, template, model,
// note media and model fonts) and renders the full page.
func (c *Collection) RenderCard(id int64) (*render.Page, error) {
	card, err := c.db.Card(id)
	if err != nil {
		return nil, err
	}
	note, err := c.db.Note(card.NoteID)
	if err != nil {
		return nil, err
	}
	tpl, err := c.db.Template(card.TemplateID)
	if err != nil {
		return nil, err
	}
	model, err := c.db.Model(domain.ByID(note.ModelID))
	if err != nil {
		return nil, err
	}
	media, err := c.db.NoteMedia(note.ID)
	if err != nil {
		return nil, err
	}
	fonts, err := c.db.ModelFonts(model.ID)
	if err != nil {
		return nil, err
	}

	in := render.Input{
		Template: tpl,
		Model:    model,
		Note:     note,
		Media:    append(media, fonts...),
		Markdown: c.settings.Markdown,
	}
	if card.ClozeOrder != nil {
		in.ClozeOrder = *card.ClozeOrder
	}
	return render.Render(in), nil
}

// Right records a correct answer for the card and persists the new
// schedule.
func (c *Collection) Right(id int64) error {
	return c.review(id, func(card *domain.Card, now time.Time) {
		srs.Right(card, now, c.settings.SRS)
	})
}

// Wrong records an incorrect answer: the card drops a level and is
// buried for a short relearn delay.
func (c *Collection) Wrong(id int64) error {
	return c.review(id, func(card *domain.Card, now time.Time) {
		srs.Wrong(card, now, srs.DefaultRelearn)
	})
}

// Bury suspends the card for a few hours without changing its level.
func (c *Collection) Bury(id int64) error {
	return c.review(id, func(card *domain.Card, now time.Time) {
		srs.Bury(card, now, srs.DefaultBury)
	})
}

func (c *Collection) review(id int64, apply func(*domain.Card, time.Time)) error {
	card, err := c.db.Card(id)
	if err != nil {
		return err
	}
	apply(card, time.Now())
	return c.db.UpdateCardReview(card)
}

// Store exposes the underlying entity store for direct manipulation:
// creating models, templates, notes and cards by hand rather than
// through an archive import.
func (c *Collection) Store() *storage.DB {
	return c.db
}
