package render

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/ankix/internal/domain"
)

// Page is the immutable result of a full card render: both sides with
// media embedded, plus the model's CSS (fonts embedded) and script.
type Page struct {
	Question string
	Answer   string
	CSS      string
	JS       string
}

// Render produces the complete page for a card: both sides rendered, all
// referenced media replaced by inline data URIs, and font filenames in
// the model CSS substituted the same way.
func Render(in Input) *Page {
	css := ""
	js := ""
	if in.Model != nil {
		css = in.Model.CSS
		js = in.Model.JS
	}
	for _, m := range in.Media {
		if m.Type == domain.MediaFont {
			css = strings.ReplaceAll(css, m.Name, dataURI(m))
		}
	}
	return &Page{
		Question: embedMedia(Question(in), in.Media),
		Answer:   embedMedia(Answer(in), in.Media),
		CSS:      css,
		JS:       js,
	}
}

// embedMedia replaces [sound:name] markers with playable audio tags and
// bare filename references (img src attributes and the like) with data
// URIs.
func embedMedia(text string, media []*domain.Media) string {
	for _, m := range media {
		if m.Type == domain.MediaAudio {
			tag := fmt.Sprintf(`<audio controls src="%s"></audio>`, dataURI(m))
			text = strings.ReplaceAll(text, "[sound:"+m.Name+"]", tag)
		}
		text = strings.ReplaceAll(text, m.Name, dataURI(m))
	}
	return text
}

func dataURI(m *domain.Media) string {
	return "data:" + mimeType(m) + ";base64," + base64.StdEncoding.EncodeToString(m.Data)
}

// mimeTypes is a fixed table rather than mime.TypeByExtension: renders
// must be byte-identical across machines, and the stdlib consults
// host-specific mime.types files.
var mimeTypes = map[string]string{
	".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg",
	".gif": "image/gif", ".svg": "image/svg+xml", ".webp": "image/webp",
	".mp3": "audio/mpeg", ".ogg": "audio/ogg", ".wav": "audio/wav",
	".m4a": "audio/mp4", ".flac": "audio/flac", ".opus": "audio/opus",
	".ttf": "font/ttf", ".otf": "font/otf", ".woff": "font/woff",
	".woff2": "font/woff2", ".eot": "application/vnd.ms-fontobject",
}

func mimeType(m *domain.Media) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(m.Name))]; ok {
		return t
	}
	switch m.Type {
	case domain.MediaAudio:
		return "audio/mpeg"
	case domain.MediaFont:
		return "font/ttf"
	default:
		return "image/png"
	}
}

// HTML wraps the page for presentation: style block, hidden answer and a
// click-to-reveal toggle. Element ids are unique so multiple wrapped
// pages can coexist in one document.
func (p *Page) HTML() string {
	id := uuid.NewString()
	return fmt.Sprintf(`<style>%s</style>
<div id="c%[2]s">
  <div id="q%[2]s">%[3]s</div>
  <div id="a%[2]s" style="display: none;">%[4]s</div>
</div>
<script>%[5]s
function toggleHidden(el) {
  el.style.display = el.style.display === 'none' ? 'block' : 'none';
}
document.getElementById('c%[2]s').addEventListener('click', function () {
  toggleHidden(document.getElementById('q%[2]s'));
  toggleHidden(document.getElementById('a%[2]s'));
});
</script>`, p.CSS, id, p.Question, p.Answer, p.JS)
}
