package web

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	casstatus "github.com/oneconcern/deckmon/pkg/cas/status"
	deckstatus "github.com/oneconcern/deckmon/pkg/deck/status"
	enginestatus "github.com/oneconcern/deckmon/pkg/engine/status"
	"github.com/oneconcern/deckmon/pkg/errors"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/model"
)

type errResponse struct {
	Error string `json:"error"`
}

func (s *Server) renderErr(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, deckstatus.ErrDeckNotFound),
		errors.Is(err, casstatus.ErrBlobNotFound):
		code = http.StatusNotFound
	case errors.Is(err, enginestatus.ErrSyncInProgress):
		code = http.StatusConflict
	case errors.Is(err, enginestatus.ErrUnknownDeck):
		code = http.StatusNotFound
	}
	if code == http.StatusInternalServerError {
		s.l.Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	render.Status(r, code)
	render.JSON(w, r, errResponse{Error: err.Error()})
}

type deckSummary struct {
	DeckID        string `json:"deckID"`
	Version       uint64 `json:"version"`
	Slides        int    `json:"slides"`
	Assets        int    `json:"assets"`
	State         string `json:"state"`
	RemoteVersion uint64 `json:"remoteVersion"`
}

func (s *Server) listDecks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deckIDs, err := s.eng.Index().List(ctx)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	summaries := make([]deckSummary, 0, len(deckIDs))
	for _, deckID := range deckIDs {
		manifest, merr := s.eng.Index().Current(ctx, deckID)
		if merr != nil {
			s.renderErr(w, r, merr)
			return
		}
		summaries = append(summaries, deckSummary{
			DeckID:        deckID,
			Version:       manifest.Version,
			Slides:        len(manifest.Slides),
			Assets:        len(manifest.Assets),
			State:         string(s.eng.Status(deckID)),
			RemoteVersion: manifest.LastSyncedRemoteVersion,
		})
	}
	render.JSON(w, r, summaries)
}

type deckStatusResponse struct {
	DeckID    string          `json:"deckID"`
	State     string          `json:"state"`
	Version   uint64          `json:"version"`
	SyncState model.SyncState `json:"syncState"`
}

func (s *Server) deckStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deckID := chi.URLParam(r, "deckID")

	manifest, err := s.eng.Index().Current(ctx, deckID)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	state, err := s.eng.Index().SyncState(ctx, deckID)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	render.JSON(w, r, deckStatusResponse{
		DeckID:    deckID,
		State:     string(s.eng.Status(deckID)),
		Version:   manifest.Version,
		SyncState: state,
	})
}

func (s *Server) deckManifest(w http.ResponseWriter, r *http.Request) {
	manifest, err := s.eng.Index().Current(r.Context(), chi.URLParam(r, "deckID"))
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	render.JSON(w, r, manifest)
}

func (s *Server) deckHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.eng.Index().History(r.Context(), chi.URLParam(r, "deckID"))
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	render.JSON(w, r, history)
}

func (s *Server) syncDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	// the sync outlives the request context timeout-wise, but a closed
	// client connection should not abort a transfer midway
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.syncTimeout)
	defer cancel()

	result, err := s.eng.Sync(ctx, deckID)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	if result.Status == model.SyncConflict {
		render.Status(r, http.StatusConflict)
	}
	render.JSON(w, r, result)
}

func (s *Server) deleteDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	if err := s.eng.Index().Delete(r.Context(), deckID); err != nil {
		s.renderErr(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (s *Server) getBlob(w http.ResponseWriter, r *http.Request) {
	key, err := fingerprint.KeyFromString(chi.URLParam(r, "fingerprint"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResponse{Error: err.Error()})
		return
	}

	rdr, err := s.eng.Blobs().Get(r.Context(), key)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	defer func() { _ = rdr.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rdr); err != nil {
		s.l.Warn("blob download interrupted",
			zap.Stringer("fingerprint", key), zap.Error(err))
	}
}
