// apps/go-server/internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes four endpoints under /daily:
//   - POST /daily/new         → start a daily game (creates or reuses session)
//   - POST /daily/guess       → submit a guess for a daily game
//   - POST /daily/reveal      → give up; recorded as a loss
//   - GET  /daily/leaderboard → fetch top results for today (or a given date)
//
// Each player gets one game per UTC date (enforced by DB + in-memory session).
// Every player sees the same capital; the result is persisted when the game ends.
// A game belongs to the date it was started on, so it can be finished after
// midnight. Abandoned games are dropped by Server.Sweep.

package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/capitals/apps/go-server/internal/daily"
	"github.com/robalobadob/capitals/apps/go-server/internal/game"
)

// dailyEntry is an in-progress daily game.
type dailyEntry struct {
	player  string
	date    string
	session *game.Session
}

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	salt     string
	mu       sync.Mutex             // guards the maps and session mutation
	games    map[string]*dailyEntry // keyed by game ID
	byPlayer map[string]string      // playerID|date → game ID
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		salt:     s.cfg.DailySalt,
		games:    make(map[string]*dailyEntry),
		byPlayer: make(map[string]string),
	}
	s.daily = dd
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Post("/guess", dd.handleGuess)
		r.Post("/reveal", dd.handleReveal)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// playerID is the signed-in user, or the guest's anon cookie.
func (d *dailyServer) playerID(w http.ResponseWriter, r *http.Request) string {
	o := d.srv.owner(w, r)
	if o.UserID != "" {
		return o.UserID
	}
	return o.AnonID
}

// drop removes an entry; callers hold d.mu.
func (d *dailyServer) drop(id string) {
	if e, ok := d.games[id]; ok {
		delete(d.byPlayer, e.player+"|"+e.date)
		delete(d.games, id)
	}
}

// sweep drops games started before cutoff and returns how many were dropped.
func (d *dailyServer) sweep(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for id, e := range d.games {
		if e.session.StartedAt.Before(cutoff) {
			d.drop(id)
			n++
		}
	}
	return n
}

// -----------------------------------------------------------------------------
// /daily/new

type dailyNewRes struct {
	GameID string     `json:"gameId"`
	Date   string     `json:"date"`
	Played bool       `json:"played"`
	State  *game.View `json:"state,omitempty"`
}

// handleNew creates or reuses a daily session for the current date.
// A player who already has a DB row for today gets Played=true.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	uid := d.playerID(w, r)
	now := d.srv.now().UTC()
	date := daily.DateKey(now)

	if played, err := d.store.AlreadyPlayed(r.Context(), uid, date); err == nil && played {
		writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
		return
	}

	target, err := daily.Target(d.srv.engine.Dataset(), now, d.salt)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("daily target")
		writeError(w, http.StatusServiceUnavailable, "no capitals available")
		return
	}

	key := uid + "|" + date
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.games[d.byPlayer[key]]
	if !ok {
		e = &dailyEntry{player: uid, date: date, session: d.srv.engine.StartWith(target)}
		d.games[e.session.ID] = e
		d.byPlayer[key] = e.session.ID
	}
	v := e.session.View()
	writeJSON(w, http.StatusOK, dailyNewRes{GameID: e.session.ID, Date: date, State: &v})
}

// -----------------------------------------------------------------------------
// /daily/guess, /daily/reveal

type dailyGuessRes struct {
	Guess *game.GuessRecord `json:"guess,omitempty"`
	Date  string            `json:"date"`
	State game.View         `json:"state"`
}

// handleGuess applies a guess to the player's daily session.
func (d *dailyServer) handleGuess(w http.ResponseWriter, r *http.Request) {
	d.play(w, r, func(s *game.Session, guess string) (*game.GuessRecord, error) {
		rec, err := s.Submit(guess)
		return &rec, err
	})
}

// handleReveal ends the player's daily session as a loss.
func (d *dailyServer) handleReveal(w http.ResponseWriter, r *http.Request) {
	d.play(w, r, func(s *game.Session, _ string) (*game.GuessRecord, error) {
		s.Reveal()
		return nil, nil
	})
}

// play runs act on the caller's daily session and records the result once
// the game is over. The session keeps the date it was started on.
func (d *dailyServer) play(w http.ResponseWriter, r *http.Request, act func(*game.Session, string) (*game.GuessRecord, error)) {
	uid := d.playerID(w, r)

	var p gameReq
	if err := decodeJSON(r, &p); err != nil || p.GameID == "" {
		writeError(w, http.StatusBadRequest, "gameId is required")
		return
	}

	d.mu.Lock()
	e, ok := d.games[p.GameID]
	if !ok || e.player != uid {
		d.mu.Unlock()
		writeError(w, http.StatusConflict, "no session")
		return
	}
	rec, err := act(e.session, p.Guess)
	if err != nil {
		d.mu.Unlock()
		d.srv.writeGameError(w, err)
		return
	}
	sess := e.session
	v := sess.View()
	var result *daily.Result
	if sess.Over {
		result = &daily.Result{
			UserID:    uid,
			Date:      e.date,
			Capital:   sess.Target.Capital,
			Won:       sess.Won,
			Guesses:   len(sess.Guesses),
			ElapsedMs: int(sess.FinishedAt.Sub(sess.StartedAt) / time.Millisecond),
		}
		d.drop(p.GameID)
	}
	d.mu.Unlock()

	if result != nil {
		if err := d.store.InsertResult(r.Context(), *result); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("date", e.date).Msg("daily result")
		}
	}
	writeJSON(w, http.StatusOK, dailyGuessRes{Guess: rec, Date: e.date, State: v})
}

// -----------------------------------------------------------------------------
// /daily/leaderboard

type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.srv.now())
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if rows == nil {
		rows = []daily.LBRow{}
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
