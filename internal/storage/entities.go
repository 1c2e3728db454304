package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/conorfennell/ankix/internal/domain"
	"github.com/conorfennell/ankix/internal/fingerprint"
)

// guardDuplicate is the pre-insert dedup check: inserting content whose
// hash is already stored fails instead of silently overwriting.
func guardDuplicate(q querier, entity, table, hash string) error {
	var one int
	err := q.QueryRow(`SELECT 1 FROM `+table+` WHERE h = ?`, hash).Scan(&one)
	switch {
	case err == nil:
		return &domain.DuplicateContentError{Entity: entity, Hash: hash}
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return fmt.Errorf("failed to check %s hash: %w", entity, err)
	}
}

// nullableID maps 0 to NULL so SQLite assigns the rowid.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func createModel(q querier, m *domain.Model) error {
	fields, err := json.Marshal(m.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode model fields: %w", err)
	}
	res, err := q.Exec(`
		INSERT INTO model (id, name, css, js, fields) VALUES (?, ?, ?, ?, ?)
	`, nullableID(m.ID), m.Name, m.CSS, m.JS, string(fields))
	if err != nil {
		return fmt.Errorf("failed to insert model %s: %w", m.Name, err)
	}
	if m.ID == 0 {
		m.ID, _ = res.LastInsertId()
	}
	return nil
}

func createTemplate(q querier, t *domain.Template) error {
	t.Hash = fingerprint.Template(t.Question, t.Answer)
	if err := guardDuplicate(q, "template", "template", t.Hash); err != nil {
		return err
	}
	res, err := q.Exec(`
		INSERT INTO template (id, model_id, name, question, answer, h)
		VALUES (?, ?, ?, ?, ?, ?)
	`, nullableID(t.ID), t.ModelID, t.Name, t.Question, t.Answer, t.Hash)
	if err != nil {
		return fmt.Errorf("failed to insert template %s: %w", t.Name, err)
	}
	if t.ID == 0 {
		t.ID, _ = res.LastInsertId()
	}
	return nil
}

func createDeck(q querier, d *domain.Deck) error {
	res, err := q.Exec(`INSERT INTO deck (id, name) VALUES (?, ?)`,
		nullableID(d.ID), d.Name)
	if err != nil {
		return fmt.Errorf("failed to insert deck %s: %w", d.Name, err)
	}
	if d.ID == 0 {
		d.ID, _ = res.LastInsertId()
	}
	return nil
}

func getOrCreateTag(q querier, name string) (*domain.Tag, error) {
	tag := &domain.Tag{Name: name}
	err := q.QueryRow(`SELECT id, name FROM tag WHERE name = ?`, name).
		Scan(&tag.ID, &tag.Name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up tag %s: %w", name, err)
	}
	res, err := q.Exec(`INSERT INTO tag (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag %s: %w", name, err)
	}
	tag.ID, _ = res.LastInsertId()
	return tag, nil
}

func createNote(q querier, n *domain.Note, tags []string) error {
	n.Hash = fingerprint.Note(n.Data)
	if err := guardDuplicate(q, "note", "note", n.Hash); err != nil {
		return err
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode note data: %w", err)
	}
	res, err := q.Exec(`
		INSERT INTO note (id, model_id, data, h) VALUES (?, ?, ?, ?)
	`, nullableID(n.ID), n.ModelID, string(data), n.Hash)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	if n.ID == 0 {
		n.ID, _ = res.LastInsertId()
	}
	for _, name := range tags {
		if err := attachTag(q, n.ID, name); err != nil {
			return err
		}
	}
	return nil
}

func createCard(q querier, c *domain.Card) error {
	if c.Hash == "" {
		return fmt.Errorf("card is missing its rendered-question hash")
	}
	if err := guardDuplicate(q, "card", "card", c.Hash); err != nil {
		return err
	}
	res, err := q.Exec(`
		INSERT INTO card (note_id, deck_id, template_id, cloze_order, srs_level, next_review, h)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.NoteID, c.DeckID, c.TemplateID, c.ClozeOrder, c.SRSLevel, c.NextReview, c.Hash)
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

func createMedia(q querier, m *domain.Media) error {
	m.Hash = fingerprint.Media(m.Data)
	if err := guardDuplicate(q, "media", "media", m.Hash); err != nil {
		return err
	}
	res, err := q.Exec(`
		INSERT INTO media (name, type, data, h) VALUES (?, ?, ?, ?)
	`, m.Name, string(m.Type), m.Data, m.Hash)
	if err != nil {
		return fmt.Errorf("failed to insert media %s: %w", m.Name, err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

func attachTag(q querier, noteID int64, name string) error {
	tag, err := getOrCreateTag(q, name)
	if err != nil {
		return err
	}
	_, err = q.Exec(`
		INSERT OR IGNORE INTO note_tag (note_id, tag_id) VALUES (?, ?)
	`, noteID, tag.ID)
	if err != nil {
		return fmt.Errorf("failed to tag note %d with %s: %w", noteID, name, err)
	}
	return nil
}

func detachTag(q querier, noteID int64, name string) error {
	_, err := q.Exec(`
		DELETE FROM note_tag WHERE note_id = ?
		AND tag_id IN (SELECT id FROM tag WHERE name = ?)
	`, noteID, name)
	if err != nil {
		return fmt.Errorf("failed to untag note %d: %w", noteID, err)
	}
	return nil
}

func attachMediaToNote(q querier, noteID, mediaID int64) error {
	_, err := q.Exec(`
		INSERT OR IGNORE INTO note_media (note_id, media_id) VALUES (?, ?)
	`, noteID, mediaID)
	if err != nil {
		return fmt.Errorf("failed to attach media %d to note %d: %w", mediaID, noteID, err)
	}
	return nil
}

func detachMediaFromNote(q querier, noteID, mediaID int64) error {
	_, err := q.Exec(`
		DELETE FROM note_media WHERE note_id = ? AND media_id = ?
	`, noteID, mediaID)
	if err != nil {
		return fmt.Errorf("failed to detach media %d from note %d: %w", mediaID, noteID, err)
	}
	return nil
}

func attachMediaToModel(q querier, modelID, mediaID int64) error {
	_, err := q.Exec(`
		INSERT OR IGNORE INTO model_media (model_id, media_id) VALUES (?, ?)
	`, modelID, mediaID)
	if err != nil {
		return fmt.Errorf("failed to attach media %d to model %d: %w", mediaID, modelID, err)
	}
	return nil
}

func getModel(q querier, ref domain.Ref) (*domain.Model, error) {
	if ref.Kind == domain.RefByValue {
		if m, ok := ref.Value.(*domain.Model); ok {
			return m, nil
		}
		return nil, &domain.NotFoundError{Entity: "model", Key: ref.Key()}
	}

	var row *sql.Row
	switch ref.Kind {
	case domain.RefByID:
		row = q.QueryRow(`SELECT id, name, css, js, fields FROM model WHERE id = ?`, ref.ID)
	case domain.RefByName:
		row = q.QueryRow(`SELECT id, name, css, js, fields FROM model WHERE name = ?`, ref.Name)
	default:
		return nil, &domain.NotFoundError{Entity: "model", Key: ref.Key()}
	}

	m := &domain.Model{}
	var fields string
	err := row.Scan(&m.ID, &m.Name, &m.CSS, &m.JS, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "model", Key: ref.Key()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &m.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode model fields: %w", err)
	}
	return m, nil
}

func getDeck(q querier, ref domain.Ref) (*domain.Deck, error) {
	if ref.Kind == domain.RefByValue {
		if d, ok := ref.Value.(*domain.Deck); ok {
			return d, nil
		}
		return nil, &domain.NotFoundError{Entity: "deck", Key: ref.Key()}
	}

	var row *sql.Row
	switch ref.Kind {
	case domain.RefByID:
		row = q.QueryRow(`SELECT id, name FROM deck WHERE id = ?`, ref.ID)
	case domain.RefByName:
		row = q.QueryRow(`SELECT id, name FROM deck WHERE name = ?`, ref.Name)
	default:
		return nil, &domain.NotFoundError{Entity: "deck", Key: ref.Key()}
	}

	d := &domain.Deck{}
	err := row.Scan(&d.ID, &d.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "deck", Key: ref.Key()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deck: %w", err)
	}
	return d, nil
}

func getTemplate(q querier, id int64) (*domain.Template, error) {
	t := &domain.Template{}
	err := q.QueryRow(`
		SELECT id, model_id, name, question, answer, h FROM template WHERE id = ?
	`, id).Scan(&t.ID, &t.ModelID, &t.Name, &t.Question, &t.Answer, &t.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "template", Key: fmt.Sprintf("id=%d", id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template %d: %w", id, err)
	}
	return t, nil
}

// getTemplates returns a model's templates in creation order, which is
// the archive's ordinal order.
func getTemplates(q querier, modelID int64) ([]*domain.Template, error) {
	rows, err := q.Query(`
		SELECT id, model_id, name, question, answer, h
		FROM template WHERE model_id = ? ORDER BY id
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates for model %d: %w", modelID, err)
	}
	defer rows.Close()

	var templates []*domain.Template
	for rows.Next() {
		t := &domain.Template{}
		if err := rows.Scan(&t.ID, &t.ModelID, &t.Name, &t.Question, &t.Answer, &t.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func getNote(q querier, id int64) (*domain.Note, error) {
	n := &domain.Note{Data: domain.NewFieldData()}
	var data string
	err := q.QueryRow(`SELECT id, model_id, data, h FROM note WHERE id = ?`, id).
		Scan(&n.ID, &n.ModelID, &data, &n.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "note", Key: fmt.Sprintf("id=%d", id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load note %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(data), n.Data); err != nil {
		return nil, fmt.Errorf("failed to decode note %d data: %w", id, err)
	}
	return n, nil
}

const cardColumns = `id, note_id, deck_id, template_id, cloze_order, srs_level, next_review, h`

func scanCard(scan func(...any) error) (*domain.Card, error) {
	c := &domain.Card{}
	var clozeOrder, srsLevel sql.NullInt64
	var nextReview sql.NullTime
	err := scan(&c.ID, &c.NoteID, &c.DeckID, &c.TemplateID,
		&clozeOrder, &srsLevel, &nextReview, &c.Hash)
	if err != nil {
		return nil, err
	}
	if clozeOrder.Valid {
		v := int(clozeOrder.Int64)
		c.ClozeOrder = &v
	}
	if srsLevel.Valid {
		v := int(srsLevel.Int64)
		c.SRSLevel = &v
	}
	if nextReview.Valid {
		t := nextReview.Time
		c.NextReview = &t
	}
	return c, nil
}

func getCard(q querier, id int64) (*domain.Card, error) {
	row := q.QueryRow(`SELECT `+cardColumns+` FROM card WHERE id = ?`, id)
	c, err := scanCard(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "card", Key: fmt.Sprintf("id=%d", id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load card %d: %w", id, err)
	}
	return c, nil
}

func getMedia(q querier, ref domain.Ref) (*domain.Media, error) {
	if ref.Kind == domain.RefByValue {
		if m, ok := ref.Value.(*domain.Media); ok {
			return m, nil
		}
		return nil, &domain.NotFoundError{Entity: "media", Key: ref.Key()}
	}

	var row *sql.Row
	switch ref.Kind {
	case domain.RefByID:
		row = q.QueryRow(`SELECT id, name, type, data, h FROM media WHERE id = ?`, ref.ID)
	case domain.RefByName:
		row = q.QueryRow(`SELECT id, name, type, data, h FROM media WHERE name = ?`, ref.Name)
	default:
		return nil, &domain.NotFoundError{Entity: "media", Key: ref.Key()}
	}

	m := &domain.Media{}
	var typ string
	err := row.Scan(&m.ID, &m.Name, &typ, &m.Data, &m.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "media", Key: ref.Key()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load media: %w", err)
	}
	m.Type = domain.MediaType(typ)
	return m, nil
}

func listMedia(q querier, query string, arg int64) ([]*domain.Media, error) {
	rows, err := q.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	var media []*domain.Media
	for rows.Next() {
		m := &domain.Media{}
		var typ string
		if err := rows.Scan(&m.ID, &m.Name, &typ, &m.Data, &m.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		m.Type = domain.MediaType(typ)
		media = append(media, m)
	}
	return media, rows.Err()
}

func getNoteMedia(q querier, noteID int64) ([]*domain.Media, error) {
	return listMedia(q, `
		SELECT m.id, m.name, m.type, m.data, m.h FROM media m
		JOIN note_media nm ON nm.media_id = m.id
		WHERE nm.note_id = ? ORDER BY m.id
	`, noteID)
}

func getModelFonts(q querier, modelID int64) ([]*domain.Media, error) {
	return listMedia(q, `
		SELECT m.id, m.name, m.type, m.data, m.h FROM media m
		JOIN model_media mm ON mm.media_id = m.id
		WHERE mm.model_id = ? ORDER BY m.id
	`, modelID)
}

func getNoteTags(q querier, noteID int64) ([]string, error) {
	rows, err := q.Query(`
		SELECT t.name FROM tag t
		JOIN note_tag nt ON nt.tag_id = t.id
		WHERE nt.note_id = ? ORDER BY t.name
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags for note %d: %w", noteID, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

func deleteCard(q querier, id int64) error {
	if _, err := q.Exec(`DELETE FROM card WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return nil
}

// deleteNote removes the note, its cards, and its join rows. Media left
// orphaned by this is picked up by cleanOrphanMedia.
func deleteNote(q querier, id int64) error {
	steps := []string{
		`DELETE FROM card WHERE note_id = ?`,
		`DELETE FROM note_tag WHERE note_id = ?`,
		`DELETE FROM note_media WHERE note_id = ?`,
		`DELETE FROM note WHERE id = ?`,
	}
	for _, stmt := range steps {
		if _, err := q.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete note %d: %w", id, err)
		}
	}
	return nil
}

func deleteDeck(q querier, id int64) error {
	if _, err := q.Exec(`DELETE FROM card WHERE deck_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cards of deck %d: %w", id, err)
	}
	if _, err := q.Exec(`DELETE FROM deck WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete deck %d: %w", id, err)
	}
	return nil
}

func deleteTemplate(q querier, id int64) error {
	if _, err := q.Exec(`DELETE FROM card WHERE template_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cards of template %d: %w", id, err)
	}
	if _, err := q.Exec(`DELETE FROM template WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete template %d: %w", id, err)
	}
	return nil
}

// deleteModel refuses while the model still owns templates; callers must
// empty it first.
func deleteModel(q querier, id int64) error {
	var templates int
	err := q.QueryRow(`SELECT COUNT(*) FROM template WHERE model_id = ?`, id).Scan(&templates)
	if err != nil {
		return fmt.Errorf("failed to count templates of model %d: %w", id, err)
	}
	if templates > 0 {
		return fmt.Errorf("model %d still owns %d templates", id, templates)
	}
	if _, err := q.Exec(`DELETE FROM model_media WHERE model_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach media from model %d: %w", id, err)
	}
	if _, err := q.Exec(`DELETE FROM model WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete model %d: %w", id, err)
	}
	return nil
}

func deleteMedia(q querier, id int64) error {
	steps := []string{
		`DELETE FROM note_media WHERE media_id = ?`,
		`DELETE FROM model_media WHERE media_id = ?`,
		`DELETE FROM media WHERE id = ?`,
	}
	for _, stmt := range steps {
		if _, err := q.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete media %d: %w", id, err)
		}
	}
	return nil
}

// pruneEmptyDecks drops decks no card points at.
func pruneEmptyDecks(q querier) (int, error) {
	res, err := q.Exec(`
		DELETE FROM deck WHERE id NOT IN (SELECT DISTINCT deck_id FROM card)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune empty decks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// cleanOrphanMedia deletes media attached to neither a note nor a model.
// Orphans are a consistency wart, not an error: they are logged and
// removed.
func cleanOrphanMedia(q querier) (int, error) {
	rows, err := q.Query(`
		SELECT id, name FROM media
		WHERE id NOT IN (SELECT media_id FROM note_media)
		AND id NOT IN (SELECT media_id FROM model_media)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to find orphaned media: %w", err)
	}
	type orphan struct {
		id   int64
		name string
	}
	var orphans []orphan
	for rows.Next() {
		var o orphan
		if err := rows.Scan(&o.id, &o.name); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan orphaned media row: %w", err)
		}
		orphans = append(orphans, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate orphaned media: %w", err)
	}

	for _, o := range orphans {
		slog.Info("Deleting orphaned media", "id", o.id, "name", o.name)
		if _, err := q.Exec(`DELETE FROM media WHERE id = ?`, o.id); err != nil {
			return 0, fmt.Errorf("failed to delete orphaned media %d: %w", o.id, err)
		}
	}
	return len(orphans), nil
}
