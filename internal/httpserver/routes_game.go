package httpserver

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/capitals/apps/go-server/internal/game"
	"github.com/robalobadob/capitals/apps/go-server/internal/store"
)

// didYouMeanDistance bounds the "did you mean" edit distance.
const didYouMeanDistance = 2

type newGameReq struct {
	RestartFrom string `json:"restartFrom"`
}

type gameReq struct {
	GameID string `json:"gameId"`
	Guess  string `json:"guess"`
}

type guessRes struct {
	Guess      game.GuessRecord `json:"guess"`
	DidYouMean string           `json:"didYouMean,omitempty"`
	Message    string           `json:"message"`
	State      game.View        `json:"state"`
}

// handleNewGame: POST /game/new
// Drops the session named by restartFrom (if any) and starts a fresh one.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.RestartFrom != "" {
		// only the caller's own session may be dropped
		if err := s.update(r, req.RestartFrom, func(*game.Session) error { return nil }); err == nil {
			_ = s.sessions.Delete(r.Context(), req.RestartFrom)
		}
	}

	g, err := s.engine.Start(nil)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("start game")
		writeError(w, http.StatusServiceUnavailable, "no capitals available")
		return
	}
	o := s.owner(w, r)
	g.Owner = ownerKey(o)
	if err := s.sessions.Save(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save game")
		return
	}
	if err := s.history.Start(r.Context(), o, g); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("game", g.ID).Msg("history start")
	}
	writeJSON(w, http.StatusOK, g.View())
}

// handleGetGame: GET /game/{id}
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	var v game.View
	err := s.update(r, chi.URLParam(r, "id"), func(g *game.Session) error {
		v = g.View()
		return nil
	})
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleGuess: POST /game/guess
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req gameReq
	if err := decodeJSON(r, &req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "gameId and guess are required")
		return
	}

	var (
		rec  game.GuessRecord
		view game.View
		snap game.Session
	)
	err := s.update(r, req.GameID, func(g *game.Session) error {
		var err error
		if rec, err = g.Submit(req.Guess); err != nil {
			return err
		}
		view, snap = g.View(), snapshot(g)
		return nil
	})
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.syncHistory(r.Context(), w, r, &snap)

	res := guessRes{Guess: rec, Message: guessMessage(rec, view), State: view}
	if !rec.Resolved() {
		res.DidYouMean, _ = s.engine.Dataset().Closest(rec.Text, didYouMeanDistance)
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReveal: POST /game/reveal
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	var req gameReq
	if err := decodeJSON(r, &req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "gameId is required")
		return
	}
	var (
		view game.View
		snap game.Session
	)
	err := s.update(r, req.GameID, func(g *game.Session) error {
		g.Reveal()
		view, snap = g.View(), snapshot(g)
		return nil
	})
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.syncHistory(r.Context(), w, r, &snap)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "The answer is " + view.Answer.Country + ".",
		"state":   view,
	})
}

// handleHint: POST /game/hint
func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	var req gameReq
	if err := decodeJSON(r, &req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "gameId is required")
		return
	}
	var (
		hint game.Hint
		view game.View
	)
	err := s.update(r, req.GameID, func(g *game.Session) error {
		var err error
		if hint, err = g.Hint(); err != nil {
			return err
		}
		view = g.View()
		return nil
	})
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hint": hint, "state": view})
}

// handleSuggest: GET /suggest?q=
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	out := slices.Collect(s.matcher.Suggest(s.engine.Dataset(), q))
	if out == nil {
		out = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"q": q, "suggestions": out})
}

// update runs fn on a session under the store lock. Sessions started by
// another caller read as missing.
func (s *Server) update(r *http.Request, id string, fn func(*game.Session) error) error {
	return s.sessions.Update(r.Context(), id, func(g *game.Session) error {
		if !s.canAccess(r, g) {
			return store.ErrNotFound
		}
		return fn(g)
	})
}

// writeGameError maps engine/store errors onto HTTP statuses.
func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	case errors.Is(err, game.ErrEmptyGuess):
		writeError(w, http.StatusBadRequest, "Please enter your guess.")
	case errors.Is(err, game.ErrGameOver):
		writeError(w, http.StatusConflict, "game finished")
	case errors.Is(err, game.ErrNoHint):
		writeError(w, http.StatusNotFound, "no hints for this capital")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) syncHistory(ctx context.Context, w http.ResponseWriter, r *http.Request, g *game.Session) {
	if err := s.history.Sync(ctx, s.owner(w, r), g); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("game", g.ID).Msg("history sync")
	}
}

// snapshot copies a session so it can be persisted outside the store lock.
func snapshot(g *game.Session) game.Session {
	c := *g
	c.Guesses = slices.Clone(g.Guesses)
	return c
}

func guessMessage(rec game.GuessRecord, v game.View) string {
	switch {
	case rec.Correct:
		return "Congratulations! You guessed it!"
	case v.Over:
		return "Game over! The correct answer was " + v.Answer.Country + "."
	case !rec.Resolved():
		return "Unknown country: " + strings.TrimSpace(rec.Text) + "."
	default:
		return "Incorrect guess. Try again."
	}
}
