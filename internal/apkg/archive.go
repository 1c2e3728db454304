// Package apkg imports a flashcard package archive into the store: a zip
// holding a relational snapshot (collection.anki2), a media-id sidecar
// and the media payloads as same-named files.
package apkg

import (
	"archive/zip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const collectionFile = "collection.anki2"

// fieldSeparator joins the field values of one note row in the snapshot.
const fieldSeparator = "\x1f"

type colTemplate struct {
	Name string `json:"name"`
	Qfmt string `json:"qfmt"`
	Afmt string `json:"afmt"`
}

type colField struct {
	Name string `json:"name"`
}

type colModel struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	CSS   string        `json:"css"`
	Flds  []colField    `json:"flds"`
	Tmpls []colTemplate `json:"tmpls"`
}

type colDeck struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type colNote struct {
	id     int64
	mid    int64
	tags   string
	fields []string
}

type colCard struct {
	id  int64
	nid int64
	did int64
	ord int
}

// archive is the parsed content of one package.
type archive struct {
	models map[int64]colModel
	decks  map[int64]colDeck
	notes  []colNote
	cards  []colCard
	media  map[string]string // media id -> original filename
	dir    string            // extraction dir holding the payload files
}

// extract unpacks the zip into a temp directory. Entry names are kept
// flat; anything trying to escape the directory is rejected.
func extract(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer zr.Close()

	dir, err := os.MkdirTemp("", "ankix-import-*")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}

	for _, f := range zr.File {
		name := filepath.Clean(f.Name)
		if name == ".." || strings.HasPrefix(name, ".."+string(os.PathSeparator)) || filepath.IsAbs(name) {
			return "", fmt.Errorf("archive entry %q escapes the extraction dir", f.Name)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if err := extractFile(f, filepath.Join(dir, name)); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func extractFile(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create dir for %s: %w", f.Name, err)
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}

// readArchive parses the extracted package: the relational snapshot and
// the media sidecar.
func readArchive(dir string) (*archive, error) {
	conn, err := sql.Open("sqlite", "file:"+filepath.Join(dir, collectionFile)+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open collection snapshot: %w", err)
	}
	defer conn.Close()

	arc := &archive{dir: dir, media: map[string]string{}}

	var modelsJSON, decksJSON string
	err = conn.QueryRow(`SELECT models, decks FROM col LIMIT 1`).Scan(&modelsJSON, &decksJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection metadata: %w", err)
	}

	// Both maps are keyed by the numeric id rendered as a string; the
	// entries repeat the id, which is what the importer uses.
	var models map[string]colModel
	if err := json.Unmarshal([]byte(modelsJSON), &models); err != nil {
		return nil, fmt.Errorf("failed to parse models metadata: %w", err)
	}
	arc.models = make(map[int64]colModel, len(models))
	for _, m := range models {
		arc.models[m.ID] = m
	}

	var decks map[string]colDeck
	if err := json.Unmarshal([]byte(decksJSON), &decks); err != nil {
		return nil, fmt.Errorf("failed to parse decks metadata: %w", err)
	}
	arc.decks = make(map[int64]colDeck, len(decks))
	for _, d := range decks {
		arc.decks[d.ID] = d
	}

	rows, err := conn.Query(`SELECT id, mid, tags, flds FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n colNote
		var flds string
		if err := rows.Scan(&n.id, &n.mid, &n.tags, &flds); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		n.fields = strings.Split(flds, fieldSeparator)
		arc.notes = append(arc.notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	cardRows, err := conn.Query(`SELECT id, nid, did, ord FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	defer cardRows.Close()
	for cardRows.Next() {
		var c colCard
		if err := cardRows.Scan(&c.id, &c.nid, &c.did, &c.ord); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		arc.cards = append(arc.cards, c)
	}
	if err := cardRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}

	if err := arc.readMediaSidecar(); err != nil {
		return nil, err
	}
	return arc, nil
}

func (a *archive) readMediaSidecar() error {
	raw, err := os.ReadFile(filepath.Join(a.dir, "media"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // archives without media are fine
		}
		return fmt.Errorf("failed to read media sidecar: %w", err)
	}
	if err := json.Unmarshal(raw, &a.media); err != nil {
		return fmt.Errorf("failed to parse media sidecar: %w", err)
	}
	return nil
}

// mediaPayload loads the binary for one sidecar entry; the payload file
// carries the numeric id, not the original filename.
func (a *archive) mediaPayload(id string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read media payload %s: %w", id, err)
	}
	return data, nil
}
