// Package fingerprint computes the content hashes used for deduplication.
// Every digest is a deterministic function of the entity's content: the
// same logical content always produces the same hash, regardless of field
// insertion order. No other normalization is applied — equality is exact
// after the stated preprocessing.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/conorfennell/ankix/internal/domain"
)

// Note digests a note's field mapping. Empty-valued fields are stripped
// and names are sorted first, so insertion order never changes the hash.
// Names and values are written with length prefixes to keep ("ab","c")
// distinct from ("a","bc").
func Note(data *domain.FieldData) string {
	stripped := data.StripEmpty()
	names := stripped.Keys()
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		value, _ := stripped.Get(name)
		fmt.Fprintf(h, "%d:%s=%d:%s\n", len(name), name, len(value), value)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Template digests a template's question and answer markup.
func Template(question, answer string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%s\n%d:%s", len(question), question, len(answer), answer)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Media digests the raw blob bytes, so identical content under different
// names collides.
func Media(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// Card digests the card's rendered question text.
func Card(renderedQuestion string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(renderedQuestion)))
}
