package render

import (
	"strings"
	"testing"

	"github.com/conorfennell/ankix/internal/domain"
)

func makeInput(question, answer string, fields map[string]string) Input {
	data := domain.NewFieldData()
	for k, v := range fields {
		data.Set(k, v)
	}
	return Input{
		Template: &domain.Template{Question: question, Answer: answer},
		Model:    &domain.Model{},
		Note:     &domain.Note{Data: data},
	}
}

func TestQuestion(t *testing.T) {
	t.Run("conditional section removed when field is empty", func(t *testing.T) {
		in := makeInput("Q: {{#hint}}Hint: {{hint}}{{/hint}}{{word}}", "", map[string]string{
			"hint": "",
			"word": "cat",
		})
		if got := Question(in); got != "Q: cat" {
			t.Errorf("got %q, want %q", got, "Q: cat")
		}
	})

	t.Run("conditional section kept when field is set", func(t *testing.T) {
		in := makeInput("Q: {{#hint}}Hint: {{hint}} {{/hint}}{{word}}", "", map[string]string{
			"hint": "animal",
			"word": "cat",
		})
		if got := Question(in); got != "Q: Hint: animal cat" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("sections span multiple lines", func(t *testing.T) {
		in := makeInput("{{#a}}\nline one\nline two\n{{/a}}end", "", map[string]string{"a": "x"})
		if got := Question(in); got != "\nline one\nline two\nend" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unknown placeholders degrade to empty", func(t *testing.T) {
		in := makeInput("{{word}}{{Nope}}{{type:word}}", "", map[string]string{"word": "cat"})
		if got := Question(in); got != "cat" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("field values are never re-substituted", func(t *testing.T) {
		in := makeInput("{{word}}", "", map[string]string{
			"word":  "literal {{other}} text",
			"other": "BOOM",
		})
		if got := Question(in); got != "literal {{other}} text" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("cloze field substitutes like a plain field", func(t *testing.T) {
		in := makeInput("{{cloze:Text}}", "", map[string]string{"Text": "plain"})
		if got := Question(in); got != "plain" {
			t.Errorf("got %q", got)
		}
	})
}

func TestClozeMasking(t *testing.T) {
	fields := map[string]string{"Text": "{{c1::Paris}} is the capital of {{c2::France}}"}

	t.Run("matching group hidden on the question side", func(t *testing.T) {
		in := makeInput("{{cloze:Text}}", "", fields)
		in.ClozeOrder = 1
		if got := Question(in); got != "[...] is the capital of France" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("other groups stay visible", func(t *testing.T) {
		in := makeInput("{{cloze:Text}}", "", fields)
		in.ClozeOrder = 2
		if got := Question(in); got != "Paris is the capital of [...]" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("answer side reveals everything", func(t *testing.T) {
		in := makeInput("{{cloze:Text}}", "{{cloze:Text}}", fields)
		in.ClozeOrder = 1
		if got := Answer(in); got != "Paris is the capital of France" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("hints are dropped when revealing", func(t *testing.T) {
		in := makeInput("{{cloze:Text}}", "", map[string]string{"Text": "{{c1::Paris::city}} here"})
		in.ClozeOrder = 2
		if got := Question(in); got != "Paris here" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("no cloze order reveals spans as text", func(t *testing.T) {
		in := makeInput("{{cloze:Text}}", "", fields)
		if got := Question(in); got != "Paris is the capital of France" {
			t.Errorf("got %q", got)
		}
	})
}

func TestFrontSide(t *testing.T) {
	in := makeInput("Q: {{word}}", "{{FrontSide}}<hr>{{back}}", map[string]string{
		"word": "cat",
		"back": "chat",
	})
	if got := Answer(in); got != "Q: cat<hr>chat" {
		t.Errorf("got %q", got)
	}

	// FrontSide on the question side is just an unresolved placeholder.
	in2 := makeInput("{{FrontSide}}{{word}}", "", map[string]string{"word": "cat"})
	if got := Question(in2); got != "cat" {
		t.Errorf("got %q", got)
	}
}

func TestMarkdown(t *testing.T) {
	t.Run("off by default", func(t *testing.T) {
		in := makeInput("{{word}}", "", map[string]string{"word": "*cat*"})
		if got := Question(in); got != "*cat*" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("formats plain values when enabled", func(t *testing.T) {
		in := makeInput("{{word}}", "", map[string]string{"word": "*cat*"})
		in.Markdown = true
		if got := Question(in); got != "<em>cat</em>" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("values that already look like HTML are left alone", func(t *testing.T) {
		in := makeInput("{{word}}", "", map[string]string{"word": "<b>cat</b> *dog*"})
		in.Markdown = true
		if got := Question(in); got != "<b>cat</b> *dog*" {
			t.Errorf("got %q", got)
		}
	})
}

func TestRenderPage(t *testing.T) {
	img := &domain.Media{Name: "cat.png", Type: domain.MediaImage, Data: []byte{1, 2}}
	snd := &domain.Media{Name: "meow.mp3", Type: domain.MediaAudio, Data: []byte{3, 4}}
	font := &domain.Media{Name: "serif.ttf", Type: domain.MediaFont, Data: []byte{5, 6}}

	in := makeInput(`<img src="cat.png">[sound:meow.mp3]{{word}}`, "{{word}}", map[string]string{"word": "cat"})
	in.Model.CSS = `@font-face { src: url("serif.ttf"); }`
	in.Media = []*domain.Media{img, snd, font}

	page := Render(in)

	if !strings.Contains(page.Question, `<img src="data:image/png;base64,`) {
		t.Errorf("expected an inline image, got %q", page.Question)
	}
	if !strings.Contains(page.Question, `<audio controls src="data:audio/mpeg;base64,`) {
		t.Errorf("expected an inline audio tag, got %q", page.Question)
	}
	if strings.Contains(page.Question, "[sound:") {
		t.Error("expected the sound marker to be replaced")
	}
	if strings.Contains(page.CSS, "serif.ttf") || !strings.Contains(page.CSS, "base64,") {
		t.Errorf("expected the font filename to be substituted in CSS, got %q", page.CSS)
	}

	html := page.HTML()
	for _, want := range []string{"<style>", "display: none", "addEventListener"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected wrapped page to contain %q", want)
		}
	}
}

func TestRenderIsRepeatable(t *testing.T) {
	in := makeInput("{{#a}}{{a}}{{/a}}-{{b}}", "{{FrontSide}}/{{b}}", map[string]string{
		"a": "x", "b": "y",
	})
	first := Render(in)
	second := Render(in)
	if first.Question != second.Question || first.Answer != second.Answer {
		t.Error("expected rendering to be repeatable")
	}
}
