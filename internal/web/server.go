// Package web is the review UI: an HTMX front end over the collection,
// serving the deck list and the question/answer/grade loop.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/ankix/internal/domain"
	"github.com/conorfennell/ankix/internal/render"
	"github.com/conorfennell/ankix/internal/storage"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Collection is the slice of the flashcard collection the UI needs.
type Collection interface {
	DeckSummaries(now time.Time) ([]storage.DeckSummary, error)
	Quiz(deck domain.Ref, tags []string) ([]*domain.Card, error)
	RenderCard(id int64) (*render.Page, error)
	Right(id int64) error
	Wrong(id int64) error
	Bury(id int64) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	col       Collection
	router    *http.ServeMux
	templates *template.Template
}

// NewServer creates and configures a new server.
func NewServer(col Collection) *Server {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	s := &Server{
		col:       col,
		router:    http.NewServeMux(),
		templates: tpl,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("Failed to create sub-filesystem for static assets: %v", err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.Handle("/static/", http.StripPrefix("/static/", fileServer))
	s.router.Handle("/", fileServer)

	// HTMX-based routes
	s.router.HandleFunc("/decks", s.handleGetDecks())
	s.router.HandleFunc("/review/next", s.handleGetNextReview())
	s.router.HandleFunc("/review/answer/", s.handleShowAnswer())
	s.router.HandleFunc("/review/", s.handlePostReview())
}

// cardView is the template payload for one side of a review card.
type cardView struct {
	CardID   int64
	Deck     string
	Question template.HTML
	Answer   template.HTML
	CSS      template.CSS
	JS       template.JS
}

// handleGetDecks renders the deck list with due counts.
func (s *Server) handleGetDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := s.col.DeckSummaries(time.Now())
		if err != nil {
			log.Printf("Error summarizing decks: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		data := map[string]interface{}{
			"Decks": summaries,
		}
		s.templates.ExecuteTemplate(w, "decks", data)
	}
}

// handleGetNextReview renders the front of the next due card of the
// requested deck, or the all-done view when nothing is due.
func (s *Server) handleGetNextReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deckParam := r.FormValue("deck")
		card, err := s.nextDue(deckParam)
		if err != nil {
			log.Printf("Error picking next due card: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if card == nil {
			s.templates.ExecuteTemplate(w, "done", nil)
			return
		}
		view, err := s.cardView(card.ID, deckParam)
		if err != nil {
			log.Printf("Error rendering card %d: %v", card.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.templates.ExecuteTemplate(w, "card_front", view)
	}
}

// handleShowAnswer renders both sides of a card with the grade buttons.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/review/answer/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid card ID", http.StatusBadRequest)
			return
		}
		view, err := s.cardView(id, r.FormValue("deck"))
		if err != nil {
			log.Printf("Error rendering card %d: %v", id, err)
			http.NotFound(w, r)
			return
		}
		s.templates.ExecuteTemplate(w, "card_back", view)
	}
}

// handlePostReview grades a card and renders the next one.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		idStr := strings.TrimPrefix(r.URL.Path, "/review/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid card ID", http.StatusBadRequest)
			return
		}

		switch grade := r.PostFormValue("grade"); grade {
		case "right":
			err = s.col.Right(id)
		case "wrong":
			err = s.col.Wrong(id)
		case "bury":
			err = s.col.Bury(id)
		default:
			http.Error(w, "Invalid grade", http.StatusBadRequest)
			return
		}
		if err != nil {
			log.Printf("Error grading card %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// After grading, show the next card
		s.handleGetNextReview()(w, r)
	}
}

// nextDue picks the next due card of the deck. The quiz order is
// already shuffled, so the first due card is a random one.
func (s *Server) nextDue(deckParam string) (*domain.Card, error) {
	var deck domain.Ref
	if deckParam != "" {
		id, err := strconv.ParseInt(deckParam, 10, 64)
		if err != nil {
			return nil, err
		}
		deck = domain.ByID(id)
	}

	cards, err := s.col.Quiz(deck, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, c := range cards {
		if c.NextReview == nil || !c.NextReview.After(now) {
			return c, nil
		}
	}
	return nil, nil
}

func (s *Server) cardView(id int64, deckParam string) (*cardView, error) {
	page, err := s.col.RenderCard(id)
	if err != nil {
		return nil, err
	}
	return &cardView{
		CardID:   id,
		Deck:     deckParam,
		Question: template.HTML(page.Question),
		Answer:   template.HTML(page.Answer),
		CSS:      template.CSS(page.CSS),
		JS:       template.JS(page.JS),
	}, nil
}
