// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the capital guessing backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/debug/countries", "/suggest".
//   - Game endpoints (optional auth): /game/new, /game/{id}, /game/guess, /game/reveal, /game/hint.
//   - Daily Challenge endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine.
//
// Notes:
//   - CORS is origin‑aware and credentials‑enabled (so cookies work).
//   - Game history writes are best effort; a DB hiccup never fails a guess.

package httpserver

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/capitals/apps/go-server/internal/auth"
	"github.com/robalobadob/capitals/apps/go-server/internal/config"
	"github.com/robalobadob/capitals/apps/go-server/internal/countries"
	"github.com/robalobadob/capitals/apps/go-server/internal/game"
	"github.com/robalobadob/capitals/apps/go-server/internal/history"
	"github.com/robalobadob/capitals/apps/go-server/internal/store"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config   *config.Config
	Engine   *game.Engine
	Sessions store.Store
	DB       *sql.DB
}

// Server bundles router, session store, and DB-backed services.
type Server struct {
	r        *chi.Mux
	cfg      *config.Config
	engine   *game.Engine
	sessions store.Store
	db       *sql.DB
	auth     *auth.Service
	history  *history.Store
	daily    *dailyServer
	matcher  countries.Matcher
	now      func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	cfg := d.Config
	if cfg == nil {
		cfg = config.FromEnv()
	}
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		engine:   d.Engine,
		sessions: d.Sessions,
		db:       d.DB,
		auth: auth.NewService(d.DB, auth.Options{
			Secret:      cfg.JWTSecret,
			ExpiresDays: cfg.JWTExpiresDays,
			CookieName:  cfg.CookieName,
			Production:  cfg.Production,
		}),
		history: history.NewStore(d.DB),
		matcher: countries.Matcher{
			Mode:     countries.ParseMatchMode(cfg.SuggestMode),
			Limit:    cfg.SuggestLimit,
			Capitals: cfg.SuggestCapitals,
		},
		now: time.Now,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(hlog.NewHandler(log.Logger))
	s.r.Use(hlog.AccessHandler(accessLog))
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(cors(cfg.ClientOrigin))

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "capitals-go",
			"endpoints": []string{"/health", "POST /game/new", "POST /game/guess", "POST /game/reveal", "GET /suggest", "/daily/*", "/auth/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	s.r.Get("/debug/countries", func(w http.ResponseWriter, r *http.Request) {
		recs, eligible, aliases := s.engine.Dataset().Stats()
		writeJSON(w, http.StatusOK, map[string]int{"records": recs, "eligible": eligible, "aliases": aliases})
	})

	s.r.Get("/suggest", s.handleSuggest)

	// Game + daily endpoints: OPTIONAL AUTH (guests can play)
	s.r.Group(func(r chi.Router) {
		r.Use(s.auth.OptionalAuth)
		r.Post("/game/new", s.handleNewGame)
		r.Get("/game/{id}", s.handleGetGame)
		r.Post("/game/guess", s.handleGuess)
		r.Post("/game/reveal", s.handleReveal)
		r.Post("/game/hint", s.handleHint)
		s.mountDaily(r)
	})

	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})
	return s
}

// Sweep drops game and daily sessions started before cutoff and returns how
// many were dropped.
func (s *Server) Sweep(cutoff time.Time) int {
	n := s.daily.sweep(cutoff)
	if sw, ok := s.sessions.(interface{ Sweep(time.Time) int }); ok {
		n += sw.Sweep(cutoff)
	}
	return n
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

func accessLog(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("req_id", chimw.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
}

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// owner resolves the history owner for a request (user if signed in, else anon cookie).
func (s *Server) owner(w http.ResponseWriter, r *http.Request) history.Owner {
	if me, ok := auth.FromContext(r.Context()); ok {
		return history.Owner{UserID: me.ID}
	}
	return history.Owner{AnonID: s.auth.EnsureAnonID(w, r)}
}

func ownerKey(o history.Owner) string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "anon:" + o.AnonID
}

// canAccess reports whether the request carries the identity g was started
// under. A guest who signs in keeps the anon cookie, so games started before
// login stay reachable.
func (s *Server) canAccess(r *http.Request, g *game.Session) bool {
	if g.Owner == "" {
		return true
	}
	if me, ok := auth.FromContext(r.Context()); ok && g.Owner == ownerKey(history.Owner{UserID: me.ID}) {
		return true
	}
	if c, err := r.Cookie(auth.AnonCookieName); err == nil && c.Value != "" {
		return g.Owner == ownerKey(history.Owner{AnonID: c.Value})
	}
	return false
}
