// Package web exposes the deck store over HTTP: deck listings, sync
// state, manifest retrieval, blob download and sync triggering.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/oneconcern/deckmon/pkg/dlogger"
	"github.com/oneconcern/deckmon/pkg/engine"
)

// Option to tune the web server
type Option func(*Server)

// Logger sets a logger on the server
func Logger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.l = l
		}
	}
}

// SyncTimeout bounds the duration of a sync triggered over HTTP
func SyncTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.syncTimeout = d
		}
	}
}

// Server serves the deck store API
type Server struct {
	eng         *engine.Engine
	l           *zap.Logger
	syncTimeout time.Duration
}

// NewServer builds an HTTP server over a sync engine
func NewServer(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		eng:         eng,
		l:           dlogger.MustGetLogger(dlogger.LogLevelInfo),
		syncTimeout: 10 * time.Minute,
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Router assembles the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/decks", func(r chi.Router) {
		r.Get("/", s.listDecks)
		r.Route("/{deckID}", func(r chi.Router) {
			r.Get("/status", s.deckStatus)
			r.Get("/manifest", s.deckManifest)
			r.Get("/history", s.deckHistory)
			r.Post("/sync", s.syncDeck)
			r.Delete("/", s.deleteDeck)
		})
	})
	r.Get("/blobs/{fingerprint}", s.getBlob)

	return r
}
