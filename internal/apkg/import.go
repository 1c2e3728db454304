package apkg

import (
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/conorfennell/ankix/internal/domain"
	"github.com/conorfennell/ankix/internal/fingerprint"
	"github.com/conorfennell/ankix/internal/render"
	"github.com/conorfennell/ankix/internal/storage"
)

// Options tunes one import run.
type Options struct {
	// SkipMedia lists media types to leave out of the media pass.
	SkipMedia []domain.MediaType
}

func (o Options) skips(t domain.MediaType) bool {
	for _, s := range o.SkipMedia {
		if s == t {
			return true
		}
	}
	return false
}

// clozeMarker in a model's first template switches the whole model to
// cloze fan-out: card ordinals then index cloze groups, not templates.
const clozeMarker = "{{cloze:"

var (
	reImageRef = regexp.MustCompile(`src=["']([^"']+)["']`)
	reSoundRef = regexp.MustCompile(`\[sound:([^\]]+)\]`)
	reCSSURL   = regexp.MustCompile(`url\(["']?([^)"']+)["']?\)`)
)

// Import unpacks the archive at path and loads it into the store inside
// one transaction: models, decks, notes, cards, deck pruning, media.
// Any failure rolls everything back; partial imports are never visible.
func Import(db *storage.DB, path string, opts Options) error {
	dir, err := extract(path)
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	arc, err := readArchive(dir)
	if err != nil {
		return err
	}

	imp := &importer{
		arc:        arc,
		opts:       opts,
		models:     map[int64]*domain.Model{},
		templates:  map[int64][]*domain.Template{},
		notes:      map[int64]*domain.Note{},
		noteMedia:  map[string][]int64{},
		modelMedia: map[string][]int64{},
	}

	if err := db.WithTx(imp.run); err != nil {
		return err
	}
	slog.Info("Import complete", "path", path,
		"models", len(arc.models), "decks", len(arc.decks),
		"notes", len(arc.notes), "cards", len(arc.cards))
	return nil
}

type importer struct {
	arc  *archive
	opts Options

	models    map[int64]*domain.Model
	templates map[int64][]*domain.Template
	notes     map[int64]*domain.Note

	// pending media associations recorded while parsing, keyed by the
	// original filename referenced in field values or model CSS
	noteMedia  map[string][]int64
	modelMedia map[string][]int64
}

func (imp *importer) run(tx *storage.Tx) error {
	if err := imp.importModels(tx); err != nil {
		return err
	}
	if err := imp.importDecks(tx); err != nil {
		return err
	}
	if err := imp.importNotes(tx); err != nil {
		return err
	}
	if err := imp.importCards(tx); err != nil {
		return err
	}
	pruned, err := tx.PruneEmptyDecks()
	if err != nil {
		return err
	}
	if pruned > 0 {
		slog.Info("Pruned empty decks", "count", pruned)
	}
	return imp.importMedia(tx)
}

func (imp *importer) importModels(tx *storage.Tx) error {
	for _, id := range sortedKeys(imp.arc.models) {
		cm := imp.arc.models[id]

		fields := make([]string, len(cm.Flds))
		for i, f := range cm.Flds {
			fields[i] = f.Name
		}
		model := &domain.Model{ID: cm.ID, Name: cm.Name, CSS: cm.CSS, Fields: fields}
		if err := tx.CreateModel(model); err != nil {
			return err
		}
		imp.models[cm.ID] = model

		for _, name := range cssFileRefs(cm.CSS) {
			imp.modelMedia[name] = append(imp.modelMedia[name], model.ID)
		}

		for _, ct := range cm.Tmpls {
			tpl := &domain.Template{
				ModelID:  model.ID,
				Name:     ct.Name,
				Question: ct.Qfmt,
				Answer:   ct.Afmt,
			}
			if err := tx.CreateTemplate(tpl); err != nil {
				return err
			}
			imp.templates[model.ID] = append(imp.templates[model.ID], tpl)
		}
	}
	return nil
}

func (imp *importer) importDecks(tx *storage.Tx) error {
	for _, id := range sortedKeys(imp.arc.decks) {
		cd := imp.arc.decks[id]
		if err := tx.CreateDeck(&domain.Deck{ID: cd.ID, Name: cd.Name}); err != nil {
			return err
		}
	}
	return nil
}

func (imp *importer) importNotes(tx *storage.Tx) error {
	for _, cn := range imp.arc.notes {
		model, ok := imp.models[cn.mid]
		if !ok {
			return &domain.ReferenceError{Entity: "model", ID: cn.mid}
		}

		data := domain.NewFieldData()
		for i, name := range model.Fields {
			if i >= len(cn.fields) {
				break
			}
			data.Set(name, cn.fields[i])
			for _, ref := range mediaFileRefs(cn.fields[i]) {
				imp.noteMedia[ref] = append(imp.noteMedia[ref], cn.id)
			}
		}

		note := &domain.Note{ID: cn.id, ModelID: model.ID, Data: data}
		if err := tx.CreateNote(note, tagSet(cn.tags)); err != nil {
			return err
		}
		imp.notes[cn.id] = note
	}
	return nil
}

func (imp *importer) importCards(tx *storage.Tx) error {
	for _, cc := range imp.arc.cards {
		note, ok := imp.notes[cc.nid]
		if !ok {
			return &domain.ReferenceError{Entity: "note", ID: cc.nid}
		}
		if _, ok := imp.arc.decks[cc.did]; !ok {
			return &domain.ReferenceError{Entity: "deck", ID: cc.did}
		}
		model := imp.models[note.ModelID]
		templates := imp.templates[model.ID]
		if len(templates) == 0 {
			return &domain.ReferenceError{Entity: "template", ID: int64(cc.ord)}
		}

		if strings.Contains(templates[0].Question, clozeMarker) {
			// Cloze fan-out: the ordinal names a cloze group, and every
			// template of the model yields one rendering variant.
			order := cc.ord + 1
			for _, tpl := range templates {
				if err := imp.createCard(tx, note, model, tpl, cc.did, &order); err != nil {
					return err
				}
			}
			continue
		}

		if cc.ord < 0 || cc.ord >= len(templates) {
			return &domain.ReferenceError{Entity: "template", ID: int64(cc.ord)}
		}
		if err := imp.createCard(tx, note, model, templates[cc.ord], cc.did, nil); err != nil {
			return err
		}
	}
	return nil
}

func (imp *importer) createCard(tx *storage.Tx, note *domain.Note, model *domain.Model,
	tpl *domain.Template, deckID int64, clozeOrder *int) error {

	in := render.Input{Template: tpl, Model: model, Note: note}
	if clozeOrder != nil {
		in.ClozeOrder = *clozeOrder
	}
	card := &domain.Card{
		NoteID:     note.ID,
		DeckID:     deckID,
		TemplateID: tpl.ID,
		Hash:       fingerprint.Card(render.Question(in)),
	}
	if clozeOrder != nil {
		order := *clozeOrder
		card.ClozeOrder = &order
	}
	return tx.CreateCard(card)
}

func (imp *importer) importMedia(tx *storage.Tx) error {
	if len(imp.arc.media) == 0 {
		return nil
	}

	ids := make([]string, 0, len(imp.arc.media))
	for id := range imp.arc.media {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		name := imp.arc.media[id]
		typ := domain.MediaTypeFor(name)
		if imp.opts.skips(typ) {
			continue
		}
		data, err := imp.arc.mediaPayload(id)
		if err != nil {
			return err
		}
		medium := &domain.Media{Name: name, Type: typ, Data: data}
		if err := tx.CreateMedia(medium); err != nil {
			return err
		}
		for _, noteID := range imp.noteMedia[name] {
			if err := tx.AttachMediaToNote(noteID, medium.ID); err != nil {
				return err
			}
		}
		for _, modelID := range imp.modelMedia[name] {
			if err := tx.AttachMediaToModel(modelID, medium.ID); err != nil {
				return err
			}
		}
	}

	removed, err := tx.CleanOrphanMedia()
	if err != nil {
		return err
	}
	if removed > 0 {
		slog.Info("Removed media referenced by nothing", "count", removed)
	}
	return nil
}

// tagSet splits the raw tag string on whitespace into distinct non-empty
// tags, keeping first-seen order.
func tagSet(raw string) []string {
	seen := map[string]bool{}
	var tags []string
	for _, tag := range strings.Fields(raw) {
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// mediaFileRefs finds media filenames referenced by a field value:
// embedded image sources and [sound:...] markers. External URLs are not
// media references.
func mediaFileRefs(value string) []string {
	var refs []string
	for _, m := range reImageRef.FindAllStringSubmatch(value, -1) {
		if isExternalRef(m[1]) {
			continue
		}
		refs = append(refs, m[1])
	}
	for _, m := range reSoundRef.FindAllStringSubmatch(value, -1) {
		refs = append(refs, m[1])
	}
	return refs
}

// cssFileRefs finds filenames referenced by url(...) in a model's CSS,
// typically embedded fonts.
func cssFileRefs(css string) []string {
	var refs []string
	for _, m := range reCSSURL.FindAllStringSubmatch(css, -1) {
		if isExternalRef(m[1]) {
			continue
		}
		refs = append(refs, m[1])
	}
	return refs
}

func isExternalRef(name string) bool {
	return strings.HasPrefix(name, "//") ||
		strings.Contains(name, "://") ||
		strings.HasPrefix(name, "data:")
}

func sortedKeys[M ~map[int64]V, V any](m M) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
