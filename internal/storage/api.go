package storage

import "github.com/conorfennell/ankix/internal/domain"

// The store exposes every operation both on the connection and on an
// open transaction; the single-step DB variants of multi-statement
// mutations wrap themselves in WithTx so no partial state ever escapes.

func (db *DB) CreateModel(m *domain.Model) error { return createModel(db.conn, m) }
func (t *Tx) CreateModel(m *domain.Model) error  { return createModel(t.tx, m) }

func (db *DB) CreateTemplate(tp *domain.Template) error { return createTemplate(db.conn, tp) }
func (t *Tx) CreateTemplate(tp *domain.Template) error  { return createTemplate(t.tx, tp) }

func (db *DB) CreateDeck(d *domain.Deck) error { return createDeck(db.conn, d) }
func (t *Tx) CreateDeck(d *domain.Deck) error  { return createDeck(t.tx, d) }

func (db *DB) GetOrCreateTag(name string) (*domain.Tag, error) { return getOrCreateTag(db.conn, name) }
func (t *Tx) GetOrCreateTag(name string) (*domain.Tag, error)  { return getOrCreateTag(t.tx, name) }

// CreateNote inserts the note and attaches its tags atomically.
func (db *DB) CreateNote(n *domain.Note, tags []string) error {
	return db.WithTx(func(tx *Tx) error { return tx.CreateNote(n, tags) })
}
func (t *Tx) CreateNote(n *domain.Note, tags []string) error { return createNote(t.tx, n, tags) }

func (db *DB) CreateCard(c *domain.Card) error { return createCard(db.conn, c) }
func (t *Tx) CreateCard(c *domain.Card) error  { return createCard(t.tx, c) }

func (db *DB) CreateMedia(m *domain.Media) error { return createMedia(db.conn, m) }
func (t *Tx) CreateMedia(m *domain.Media) error  { return createMedia(t.tx, m) }

func (db *DB) AttachTag(noteID int64, name string) error { return attachTag(db.conn, noteID, name) }
func (t *Tx) AttachTag(noteID int64, name string) error  { return attachTag(t.tx, noteID, name) }

func (db *DB) DetachTag(noteID int64, name string) error { return detachTag(db.conn, noteID, name) }
func (t *Tx) DetachTag(noteID int64, name string) error  { return detachTag(t.tx, noteID, name) }

func (db *DB) AttachMediaToNote(noteID, mediaID int64) error {
	return attachMediaToNote(db.conn, noteID, mediaID)
}
func (t *Tx) AttachMediaToNote(noteID, mediaID int64) error {
	return attachMediaToNote(t.tx, noteID, mediaID)
}

func (db *DB) DetachMediaFromNote(noteID, mediaID int64) error {
	return detachMediaFromNote(db.conn, noteID, mediaID)
}
func (t *Tx) DetachMediaFromNote(noteID, mediaID int64) error {
	return detachMediaFromNote(t.tx, noteID, mediaID)
}

func (db *DB) AttachMediaToModel(modelID, mediaID int64) error {
	return attachMediaToModel(db.conn, modelID, mediaID)
}
func (t *Tx) AttachMediaToModel(modelID, mediaID int64) error {
	return attachMediaToModel(t.tx, modelID, mediaID)
}

// Resolvers: one lookup per entity type, accepting id, unique name, or an
// already-loaded value.

func (db *DB) Model(ref domain.Ref) (*domain.Model, error) { return getModel(db.conn, ref) }
func (t *Tx) Model(ref domain.Ref) (*domain.Model, error)  { return getModel(t.tx, ref) }

func (db *DB) Deck(ref domain.Ref) (*domain.Deck, error) { return getDeck(db.conn, ref) }
func (t *Tx) Deck(ref domain.Ref) (*domain.Deck, error)  { return getDeck(t.tx, ref) }

func (db *DB) Media(ref domain.Ref) (*domain.Media, error) { return getMedia(db.conn, ref) }
func (t *Tx) Media(ref domain.Ref) (*domain.Media, error)  { return getMedia(t.tx, ref) }

func (db *DB) Template(id int64) (*domain.Template, error) { return getTemplate(db.conn, id) }
func (t *Tx) Template(id int64) (*domain.Template, error)  { return getTemplate(t.tx, id) }

func (db *DB) Templates(modelID int64) ([]*domain.Template, error) {
	return getTemplates(db.conn, modelID)
}
func (t *Tx) Templates(modelID int64) ([]*domain.Template, error) {
	return getTemplates(t.tx, modelID)
}

func (db *DB) Note(id int64) (*domain.Note, error) { return getNote(db.conn, id) }
func (t *Tx) Note(id int64) (*domain.Note, error)  { return getNote(t.tx, id) }

func (db *DB) Card(id int64) (*domain.Card, error) { return getCard(db.conn, id) }
func (t *Tx) Card(id int64) (*domain.Card, error)  { return getCard(t.tx, id) }

func (db *DB) NoteMedia(noteID int64) ([]*domain.Media, error) {
	return getNoteMedia(db.conn, noteID)
}
func (t *Tx) NoteMedia(noteID int64) ([]*domain.Media, error) {
	return getNoteMedia(t.tx, noteID)
}

func (db *DB) ModelFonts(modelID int64) ([]*domain.Media, error) {
	return getModelFonts(db.conn, modelID)
}

func (db *DB) NoteTags(noteID int64) ([]string, error) { return getNoteTags(db.conn, noteID) }

// Deletes. Multi-statement ones run inside a transaction.

func (db *DB) DeleteCard(id int64) error { return deleteCard(db.conn, id) }
func (t *Tx) DeleteCard(id int64) error  { return deleteCard(t.tx, id) }

func (db *DB) DeleteNote(id int64) error {
	return db.WithTx(func(tx *Tx) error { return deleteNote(tx.tx, id) })
}
func (t *Tx) DeleteNote(id int64) error { return deleteNote(t.tx, id) }

func (db *DB) DeleteDeck(id int64) error {
	return db.WithTx(func(tx *Tx) error { return deleteDeck(tx.tx, id) })
}
func (t *Tx) DeleteDeck(id int64) error { return deleteDeck(t.tx, id) }

func (db *DB) DeleteTemplate(id int64) error {
	return db.WithTx(func(tx *Tx) error { return deleteTemplate(tx.tx, id) })
}
func (t *Tx) DeleteTemplate(id int64) error { return deleteTemplate(t.tx, id) }

func (db *DB) DeleteModel(id int64) error {
	return db.WithTx(func(tx *Tx) error { return deleteModel(tx.tx, id) })
}
func (t *Tx) DeleteModel(id int64) error { return deleteModel(t.tx, id) }

func (db *DB) DeleteMedia(id int64) error {
	return db.WithTx(func(tx *Tx) error { return deleteMedia(tx.tx, id) })
}
func (t *Tx) DeleteMedia(id int64) error { return deleteMedia(t.tx, id) }

func (db *DB) PruneEmptyDecks() (int, error) { return pruneEmptyDecks(db.conn) }
func (t *Tx) PruneEmptyDecks() (int, error)  { return pruneEmptyDecks(t.tx) }

func (db *DB) CleanOrphanMedia() (int, error) { return cleanOrphanMedia(db.conn) }
func (t *Tx) CleanOrphanMedia() (int, error)  { return cleanOrphanMedia(t.tx) }
