package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Model is a note type: it declares the field schema, the shared CSS and
// script, and owns an ordered list of Templates.
type Model struct {
	ID     int64
	Name   string
	CSS    string
	JS     string
	Fields []string
}

// Template is one question/answer markup pair belonging to a Model.
// Hash covers question+answer and is unique across the store.
type Template struct {
	ID       int64
	ModelID  int64
	Name     string
	Question string
	Answer   string
	Hash     string
}

// Deck is a named container for cards.
type Deck struct {
	ID   int64
	Name string
}

// Tag is a case-insensitive label attached to notes.
type Tag struct {
	ID   int64
	Name string
}

// MediaType classifies a media blob by how it is embedded at render time.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
	MediaFont  MediaType = "font"
)

var mediaExtensions = map[string]MediaType{
	".mp3": MediaAudio, ".ogg": MediaAudio, ".wav": MediaAudio,
	".m4a": MediaAudio, ".flac": MediaAudio, ".opus": MediaAudio,
	".ttf": MediaFont, ".otf": MediaFont, ".woff": MediaFont,
	".woff2": MediaFont, ".eot": MediaFont,
}

// MediaTypeFor classifies a filename by extension. Anything not recognized
// as audio or font is treated as an image, the common case in archives.
func MediaTypeFor(name string) MediaType {
	if t, ok := mediaExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return MediaImage
}

// Media is a named binary blob. Hash covers the raw bytes, so the same
// content cannot be stored twice under different names.
type Media struct {
	ID   int64
	Name string
	Type MediaType
	Data []byte
	Hash string
}

// Note holds a field-name to value mapping for one Model. Hash covers the
// sorted mapping with empty values stripped.
type Note struct {
	ID      int64
	ModelID int64
	Data    *FieldData
	Hash    string
}

// Card is one renderable (note, deck, template) combination.
// ClozeOrder is set when the card is a specific cloze-deletion variant.
// SRSLevel and NextReview are nil until the card has been reviewed or
// scheduled. Hash covers the rendered question.
type Card struct {
	ID         int64
	NoteID     int64
	DeckID     int64
	TemplateID int64
	ClozeOrder *int
	SRSLevel   *int
	NextReview *time.Time
	Hash       string
}
