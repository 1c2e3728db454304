// Package render expands a card's template against its note's field data,
// producing question/answer HTML with conditional sections, cloze masking
// and media embedding. Rendering is a pure function of its input: it
// never touches the store and never fails on unknown placeholders.
package render

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/conorfennell/ankix/internal/domain"
)

// Input carries everything one card render needs. ClozeOrder zero means
// the card is not a cloze variant. Media may be empty; fingerprinting
// renders media-free.
type Input struct {
	Template   *domain.Template
	Model      *domain.Model
	Note       *domain.Note
	ClozeOrder int
	Media      []*domain.Media
	Markdown   bool
}

// Question renders the question side: conditionals, substitution, cloze
// masking and placeholder cleanup, without media embedding.
func Question(in Input) string {
	return renderSide(in, true)
}

// Answer renders the answer side. {{FrontSide}} expands to the rendered
// question, and cloze spans are always revealed.
func Answer(in Input) string {
	return renderSide(in, false)
}

func renderSide(in Input, isQuestion bool) string {
	markup := in.Template.Answer
	if isQuestion {
		markup = in.Template.Question
	}

	r := renderer{input: in}
	if !isQuestion {
		r.front = renderSide(in, true)
	}

	var sb strings.Builder
	r.eval(parseTemplate(markup), &sb, isQuestion)
	return maskCloze(sb.String(), in.ClozeOrder, isQuestion)
}

type renderer struct {
	input Input
	front string // rendered question, answer side only
}

func (r *renderer) eval(nodes []node, sb *strings.Builder, isQuestion bool) {
	for _, n := range nodes {
		switch n.kind {
		case nodeText:
			sb.WriteString(n.text)
		case nodeSection:
			if v, ok := r.input.Note.Data.Get(n.name); ok && v != "" {
				r.eval(n.children, sb, isQuestion)
			}
		case nodeField:
			v, ok := r.input.Note.Data.Get(n.name)
			if !ok {
				continue // unknown placeholder: degrade to empty
			}
			sb.WriteString(r.formatValue(v))
		case nodeFrontSide:
			if !isQuestion {
				sb.WriteString(r.front)
			}
		}
	}
}

// reHTML detects values that already contain markup; those skip the
// markdown pass.
var reHTML = regexp.MustCompile(`(?:</[^<]+>)|(?:<[^<]+/>)`)

var markdown = goldmark.New()

func (r *renderer) formatValue(v string) string {
	if !r.input.Markdown || reHTML.MatchString(v) {
		return v
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(v), &buf); err != nil {
		return v
	}
	out := strings.TrimSpace(buf.String())
	// Field values are usually inline fragments; unwrap a lone paragraph.
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return out
}

// reCloze matches {{cN::text}} spans, which live inside field values.
// An optional ::hint segment after the text is Anki's blank hint.
var reCloze = regexp.MustCompile(`(?s)\{\{c(\d+)::(.*?)\}\}`)

func maskCloze(text string, order int, isQuestion bool) string {
	return reCloze.ReplaceAllStringFunc(text, func(span string) string {
		m := reCloze.FindStringSubmatch(span)
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return span
		}
		if isQuestion && order > 0 && n == order {
			return "[...]"
		}
		answer, _, _ := strings.Cut(m[2], "::")
		return answer
	})
}
