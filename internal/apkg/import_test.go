package apkg

import (
	"archive/zip"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/conorfennell/ankix/internal/domain"
	"github.com/conorfennell/ankix/internal/render"
	"github.com/conorfennell/ankix/internal/storage"
)

type noteRow struct {
	id   int64
	mid  int64
	tags string
	flds []string
}

type cardRow struct {
	id, nid, did int64
	ord          int
}

// buildArchive assembles a package file the way the source application
// would have written it: the relational snapshot, the media sidecar and
// the numbered payload files, zipped together.
func buildArchive(t *testing.T, models map[string]colModel, decks map[string]colDeck,
	notes []noteRow, cards []cardRow, media map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()

	conn, err := sql.Open("sqlite", filepath.Join(dir, collectionFile))
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	stmts := []string{
		`CREATE TABLE col (models TEXT NOT NULL, decks TEXT NOT NULL)`,
		`CREATE TABLE notes (id INTEGER, mid INTEGER, tags TEXT, flds TEXT)`,
		`CREATE TABLE cards (id INTEGER, nid INTEGER, did INTEGER, ord INTEGER)`,
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("create snapshot schema: %v", err)
		}
	}
	modelsJSON, _ := json.Marshal(models)
	decksJSON, _ := json.Marshal(decks)
	if _, err := conn.Exec(`INSERT INTO col (models, decks) VALUES (?, ?)`,
		string(modelsJSON), string(decksJSON)); err != nil {
		t.Fatalf("insert col row: %v", err)
	}
	for _, n := range notes {
		flds := ""
		for i, f := range n.flds {
			if i > 0 {
				flds += fieldSeparator
			}
			flds += f
		}
		if _, err := conn.Exec(`INSERT INTO notes (id, mid, tags, flds) VALUES (?, ?, ?, ?)`,
			n.id, n.mid, n.tags, flds); err != nil {
			t.Fatalf("insert note row: %v", err)
		}
	}
	for _, c := range cards {
		if _, err := conn.Exec(`INSERT INTO cards (id, nid, did, ord) VALUES (?, ?, ?, ?)`,
			c.id, c.nid, c.did, c.ord); err != nil {
			t.Fatalf("insert card row: %v", err)
		}
	}
	conn.Close()

	if len(media) > 0 {
		sidecar := map[string]string{}
		i := 0
		for name, data := range media {
			id := strconv.Itoa(i)
			sidecar[id] = name
			if err := os.WriteFile(filepath.Join(dir, id), data, 0o644); err != nil {
				t.Fatalf("write media payload: %v", err)
			}
			i++
		}
		raw, _ := json.Marshal(sidecar)
		if err := os.WriteFile(filepath.Join(dir, "media"), raw, 0o644); err != nil {
			t.Fatalf("write media sidecar: %v", err)
		}
	}

	apkgPath := filepath.Join(t.TempDir(), "deck.apkg")
	zipDir(t, dir, apkgPath)
	return apkgPath
}

func zipDir(t *testing.T, dir, dest string) {
	t.Helper()
	out, err := os.Create(dest)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	defer zw.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		w, err := zw.Create(e.Name())
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		if _, err := io.Copy(w, f); err != nil {
			t.Fatalf("copy entry: %v", err)
		}
		f.Close()
	}
}

func basicModels() map[string]colModel {
	return map[string]colModel{
		"1001": {
			ID:   1001,
			Name: "Basic",
			CSS:  ".card { font-family: Serif; }",
			Flds: []colField{{Name: "Front"}, {Name: "Back"}},
			Tmpls: []colTemplate{
				{Name: "Card 1", Qfmt: "{{Front}}", Afmt: "{{FrontSide}}<hr>{{Back}}"},
				{Name: "Card 2", Qfmt: "{{Back}}", Afmt: "{{FrontSide}}<hr>{{Front}}"},
			},
		},
	}
}

func openStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "store.ankix"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestImport(t *testing.T) {
	archive := buildArchive(t,
		basicModels(),
		map[string]colDeck{
			"1": {ID: 1, Name: "French"},
			"2": {ID: 2, Name: "Unused"},
		},
		[]noteRow{
			{id: 501, mid: 1001, tags: " vocab  animals ", flds: []string{`cat <img src="cat.png">[sound:meow.mp3]`, "chat"}},
			{id: 502, mid: 1001, tags: "vocab", flds: []string{"dog", "chien"}},
		},
		[]cardRow{
			{id: 1, nid: 501, did: 1, ord: 0},
			{id: 2, nid: 501, did: 1, ord: 1},
			{id: 3, nid: 502, did: 1, ord: 0},
		},
		map[string][]byte{
			"cat.png":    {0x89, 0x50},
			"meow.mp3":   {0x49, 0x44},
			"unused.png": {0x01},
		},
	)

	db := openStore(t)
	if err := Import(db, archive, Options{}); err != nil {
		t.Fatalf("Import: %v", err)
	}

	model, err := db.Model(domain.ByName("Basic"))
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	if len(model.Fields) != 2 || model.Fields[0] != "Front" {
		t.Errorf("unexpected model fields: %v", model.Fields)
	}
	templates, err := db.Templates(model.ID)
	if err != nil {
		t.Fatalf("Templates: %v", err)
	}
	if len(templates) != 2 || templates[0].Name != "Card 1" {
		t.Fatalf("expected 2 templates in order, got %+v", templates)
	}

	t.Run("cards follow template ordinals", func(t *testing.T) {
		cards, err := db.Search(domain.ByName("French"), nil)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(cards) != 3 {
			t.Fatalf("expected 3 cards, got %d", len(cards))
		}
	})

	t.Run("tags are split and deduplicated", func(t *testing.T) {
		note, err := db.Note(501)
		if err != nil {
			t.Fatalf("Note: %v", err)
		}
		tags, err := db.NoteTags(note.ID)
		if err != nil {
			t.Fatalf("NoteTags: %v", err)
		}
		if len(tags) != 2 {
			t.Errorf("expected tags [animals vocab], got %v", tags)
		}
	})

	t.Run("empty deck is pruned", func(t *testing.T) {
		if _, err := db.Deck(domain.ByName("Unused")); err == nil {
			t.Error("expected the unused deck to be pruned")
		}
	})

	t.Run("media attaches to referencing notes", func(t *testing.T) {
		media, err := db.NoteMedia(501)
		if err != nil {
			t.Fatalf("NoteMedia: %v", err)
		}
		if len(media) != 2 {
			t.Fatalf("expected image+audio attached, got %d", len(media))
		}
	})

	t.Run("unreferenced media is dropped", func(t *testing.T) {
		if _, err := db.Media(domain.ByName("unused.png")); err == nil {
			t.Error("expected unreferenced media to be deleted")
		}
	})
}

func TestImportClozeFanOut(t *testing.T) {
	models := map[string]colModel{
		"2001": {
			ID:   2001,
			Name: "Cloze",
			Flds: []colField{{Name: "Text"}},
			Tmpls: []colTemplate{
				{Name: "Cloze 1", Qfmt: "{{cloze:Text}}", Afmt: "{{cloze:Text}}"},
				{Name: "Cloze 2", Qfmt: "hint: {{cloze:Text}}", Afmt: "{{cloze:Text}}"},
			},
		},
	}
	archive := buildArchive(t, models,
		map[string]colDeck{"1": {ID: 1, Name: "Default"}},
		[]noteRow{{id: 601, mid: 2001, tags: "", flds: []string{"{{c1::a}} and {{c2::b}}"}}},
		[]cardRow{{id: 1, nid: 601, did: 1, ord: 1}},
		nil,
	)

	db := openStore(t)
	if err := Import(db, archive, Options{}); err != nil {
		t.Fatalf("Import: %v", err)
	}

	cards, err := db.Search(domain.Ref{}, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected one card per template, got %d", len(cards))
	}
	for _, c := range cards {
		if c.ClozeOrder == nil || *c.ClozeOrder != 2 {
			t.Errorf("expected cloze order 2, got %v", c.ClozeOrder)
		}
	}
}

func TestImportReferenceErrors(t *testing.T) {
	archive := buildArchive(t, basicModels(),
		map[string]colDeck{"1": {ID: 1, Name: "Default"}},
		[]noteRow{{id: 501, mid: 1001, tags: "", flds: []string{"cat", "chat"}}},
		[]cardRow{{id: 1, nid: 999, did: 1, ord: 0}}, // unknown note
		nil,
	)

	db := openStore(t)
	err := Import(db, archive, Options{})
	var re *domain.ReferenceError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReferenceError, got %v", err)
	}
	if re.Entity != "note" || re.ID != 999 {
		t.Errorf("expected the error to name the missing note, got %+v", re)
	}

	t.Run("failed import leaves no partial state", func(t *testing.T) {
		if _, err := db.Model(domain.ByName("Basic")); err == nil {
			t.Error("expected the transaction to roll back the model")
		}
		if _, err := db.Deck(domain.ByName("Default")); err == nil {
			t.Error("expected the transaction to roll back the deck")
		}
	})
}

func TestImportSkipMedia(t *testing.T) {
	archive := buildArchive(t, basicModels(),
		map[string]colDeck{"1": {ID: 1, Name: "Default"}},
		[]noteRow{{id: 501, mid: 1001, tags: "", flds: []string{`<img src="cat.png">[sound:meow.mp3]`, "chat"}}},
		[]cardRow{{id: 1, nid: 501, did: 1, ord: 0}},
		map[string][]byte{"cat.png": {1}, "meow.mp3": {2}},
	)

	db := openStore(t)
	if err := Import(db, archive, Options{SkipMedia: []domain.MediaType{domain.MediaAudio}}); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if _, err := db.Media(domain.ByName("cat.png")); err != nil {
		t.Errorf("expected the image to be imported: %v", err)
	}
	if _, err := db.Media(domain.ByName("meow.mp3")); err == nil {
		t.Error("expected the audio to be skipped")
	}
}

// Importing the same archive into two fresh stores must yield
// byte-identical rendered output for corresponding cards.
func TestImportRoundTrip(t *testing.T) {
	archive := buildArchive(t, basicModels(),
		map[string]colDeck{"1": {ID: 1, Name: "French"}},
		[]noteRow{{id: 501, mid: 1001, tags: "vocab", flds: []string{`cat <img src="cat.png">`, "chat"}}},
		[]cardRow{{id: 1, nid: 501, did: 1, ord: 0}, {id: 2, nid: 501, did: 1, ord: 1}},
		map[string][]byte{"cat.png": {0x89, 0x50}},
	)

	renderAll := func(db *storage.DB) map[string][2]string {
		out := map[string][2]string{}
		cards, err := db.Search(domain.Ref{}, nil)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for _, c := range cards {
			note, err := db.Note(c.NoteID)
			if err != nil {
				t.Fatalf("Note: %v", err)
			}
			tpl, err := db.Template(c.TemplateID)
			if err != nil {
				t.Fatalf("Template: %v", err)
			}
			model, err := db.Model(domain.ByID(note.ModelID))
			if err != nil {
				t.Fatalf("Model: %v", err)
			}
			media, err := db.NoteMedia(note.ID)
			if err != nil {
				t.Fatalf("NoteMedia: %v", err)
			}
			in := render.Input{Template: tpl, Model: model, Note: note, Media: media}
			if c.ClozeOrder != nil {
				in.ClozeOrder = *c.ClozeOrder
			}
			page := render.Render(in)
			out[c.Hash] = [2]string{page.Question, page.Answer}
		}
		return out
	}

	first := openStore(t)
	if err := Import(first, archive, Options{}); err != nil {
		t.Fatalf("first Import: %v", err)
	}
	second := openStore(t)
	if err := Import(second, archive, Options{}); err != nil {
		t.Fatalf("second Import: %v", err)
	}

	a, b := renderAll(first), renderAll(second)
	if len(a) != 2 || len(a) != len(b) {
		t.Fatalf("expected matching card sets, got %d and %d", len(a), len(b))
	}
	for hash, pages := range a {
		if b[hash] != pages {
			t.Errorf("rendered output differs for card %s", hash)
		}
	}
}
