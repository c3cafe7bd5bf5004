package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/capitals/apps/go-server/assets"
	"github.com/robalobadob/capitals/apps/go-server/internal/auth"
	"github.com/robalobadob/capitals/apps/go-server/internal/config"
	"github.com/robalobadob/capitals/apps/go-server/internal/countries"
	"github.com/robalobadob/capitals/apps/go-server/internal/database"
	"github.com/robalobadob/capitals/apps/go-server/internal/game"
	"github.com/robalobadob/capitals/apps/go-server/internal/geo"
	"github.com/robalobadob/capitals/apps/go-server/internal/store"
)

func TestMain(m *testing.M) {
	log.Logger = zerolog.Nop()
	os.Exit(m.Run())
}

// newTestServer serves a dataset whose only playable capital is Paris.
// Germany has coordinates (so distances work) but no capital, which keeps
// it out of the random pool.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := database.OpenMigrated(t.Context(), filepath.Join(t.TempDir(), "app.db"), assets.Migrations())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d, err := countries.New([]countries.Record{
		{Country: "France", Capital: "Paris", Location: &geo.Point{Lat: 48.8566, Lon: 2.3522},
			Continent: "Europe", FamousFor: "the Eiffel Tower"},
		{Country: "Germany", Location: &geo.Point{Lat: 52.52, Lon: 13.405}},
	}, map[string]string{"gaul": "France"})
	require.NoError(t, err)

	cfg := config.FromEnv()
	cfg.JWTSecret = "test-secret"
	cfg.ClientOrigin = "http://client.test"
	cfg.SuggestMode = "contains"
	cfg.SuggestLimit = 10

	return New(Deps{
		Config:   cfg,
		Engine:   game.NewEngine(d, game.Options{MaxGuesses: 5, CountUnresolved: true}),
		Sessions: store.NewMemoryStore(),
		DB:       db,
	})
}

func do(t *testing.T, s *Server, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func newGame(t *testing.T, s *Server, cookies ...*http.Cookie) (game.View, *httptest.ResponseRecorder) {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/game/new", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[game.View](t, rec), rec
}

// newGuest starts a game as a guest and returns the anon cookie that owns it.
func newGuest(t *testing.T, s *Server) (game.View, *http.Cookie) {
	t.Helper()
	v, rec := newGame(t, s)
	anon := cookie(rec, auth.AnonCookieName)
	require.NotNil(t, anon)
	return v, anon
}

func TestHealthAndMiddleware(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "http://client.test", rec.Header().Get("Access-Control-Allow-Origin"))

	pre := do(t, s, http.MethodOptions, "/game/new", nil)
	assert.Equal(t, http.StatusNoContent, pre.Code)

	nf := do(t, s, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, nf.Code)

	stats := decode[map[string]int](t, do(t, s, http.MethodGet, "/debug/countries", nil))
	assert.Equal(t, map[string]int{"records": 2, "eligible": 1, "aliases": 1}, stats)
}

func TestGameFlow(t *testing.T) {
	s := newTestServer(t)
	v, anon := newGuest(t, s)
	assert.Len(t, v.ID, 16)
	assert.Equal(t, "Paris", v.Capital)
	assert.Equal(t, 5, v.Remaining)
	assert.Equal(t, game.StatusPlaying, v.Status)
	assert.Nil(t, v.Answer)

	rec := do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: v.ID, Guess: "Germany"}, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[guessRes](t, rec)
	require.NotNil(t, res.Guess.DistanceKm)
	assert.InDelta(t, 878, *res.Guess.DistanceKm, 1)
	assert.False(t, res.Guess.Correct)
	assert.Equal(t, 4, res.State.Remaining)
	assert.Equal(t, "Incorrect guess. Try again.", res.Message)
	assert.Nil(t, res.State.Answer)

	res = decode[guessRes](t, do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: v.ID, Guess: "Frnace"}, anon))
	assert.Nil(t, res.Guess.DistanceKm)
	assert.Equal(t, "France", res.DidYouMean)
	assert.Equal(t, 3, res.State.Remaining)
	assert.Equal(t, game.StatusPlaying, res.State.Status)

	res = decode[guessRes](t, do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: v.ID, Guess: "  france "}, anon))
	assert.True(t, res.Guess.Correct)
	assert.Equal(t, 0, *res.Guess.DistanceKm)
	assert.Equal(t, game.StatusWon, res.State.Status)
	require.NotNil(t, res.State.Answer)
	assert.Equal(t, "France", res.State.Answer.Country)
	assert.Contains(t, res.State.Answer.MapCell, "u09t")
	assert.Len(t, res.State.Guesses, 3)

	rec = do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: v.ID, Guess: "Germany"}, anon)
	assert.Equal(t, http.StatusConflict, rec.Code)

	got := decode[game.View](t, do(t, s, http.MethodGet, "/game/"+v.ID, nil, anon))
	assert.Equal(t, game.StatusWon, got.Status)
	assert.Len(t, got.Guesses, 3)
}

func TestGuessAliasWins(t *testing.T) {
	s := newTestServer(t)
	v, anon := newGuest(t, s)
	res := decode[guessRes](t, do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: v.ID, Guess: "Gaul"}, anon))
	assert.True(t, res.Guess.Correct)
	assert.Equal(t, "Congratulations! You guessed it!", res.Message)
}

func TestGuessErrors(t *testing.T) {
	s := newTestServer(t)
	v, anon := newGuest(t, s)

	rec := do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: v.ID, Guess: "   "}, anon)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Please enter your guess."}`, rec.Body.String())

	got := decode[game.View](t, do(t, s, http.MethodGet, "/game/"+v.ID, nil, anon))
	assert.Empty(t, got.Guesses)
	assert.Equal(t, 5, got.Remaining)

	rec = do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: "missing", Guess: "France"}, anon)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/game/guess", gameReq{Guess: "France"}, anon)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/game/missing", nil, anon).Code)
}

func TestLosingRunsOutOfAttempts(t *testing.T) {
	s := newTestServer(t)
	v, anon := newGuest(t, s)
	var res guessRes
	for i := range 5 {
		rec := do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: v.ID, Guess: "Germany"}, anon)
		require.Equal(t, http.StatusOK, rec.Code, "guess %d", i)
		res = decode[guessRes](t, rec)
	}
	assert.Equal(t, game.StatusLost, res.State.Status)
	assert.Equal(t, 0, res.State.Remaining)
	assert.Equal(t, "Game over! The correct answer was France.", res.Message)
}

func TestRevealAndHint(t *testing.T) {
	s := newTestServer(t)
	v, anon := newGuest(t, s)

	type hintRes struct {
		Hint  game.Hint `json:"hint"`
		State game.View `json:"state"`
	}
	h := decode[hintRes](t, do(t, s, http.MethodPost, "/game/hint", gameReq{GameID: v.ID}, anon))
	assert.Equal(t, game.Hint{Kind: game.HintContinent, Text: "Europe"}, h.Hint)
	h = decode[hintRes](t, do(t, s, http.MethodPost, "/game/hint", gameReq{GameID: v.ID}, anon))
	assert.Equal(t, game.HintFamousFor, h.Hint.Kind)
	assert.Len(t, h.State.Hints, 2)
	assert.Equal(t, 5, h.State.Remaining)

	type revealRes struct {
		Message string    `json:"message"`
		State   game.View `json:"state"`
	}
	rv := decode[revealRes](t, do(t, s, http.MethodPost, "/game/reveal", gameReq{GameID: v.ID}, anon))
	assert.Equal(t, "The answer is France.", rv.Message)
	assert.Equal(t, game.StatusLost, rv.State.Status)
	assert.Empty(t, rv.State.Guesses)

	again := do(t, s, http.MethodPost, "/game/reveal", gameReq{GameID: v.ID}, anon)
	assert.Equal(t, http.StatusOK, again.Code)

	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/game/hint", gameReq{GameID: v.ID}, anon).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/game/reveal", gameReq{GameID: "missing"}, anon).Code)
}

func TestRestartDropsPreviousSession(t *testing.T) {
	s := newTestServer(t)
	old, anon := newGuest(t, s)
	rec := do(t, s, http.MethodPost, "/game/new", newGameReq{RestartFrom: old.ID}, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := decode[game.View](t, rec)
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/game/"+old.ID, nil, anon).Code)
}

func TestSuggest(t *testing.T) {
	s := newTestServer(t)
	type suggestRes struct {
		Suggestions []string `json:"suggestions"`
	}
	got := decode[suggestRes](t, do(t, s, http.MethodGet, "/suggest?q=an", nil))
	assert.Equal(t, []string{"France", "Germany"}, got.Suggestions)

	got = decode[suggestRes](t, do(t, s, http.MethodGet, "/suggest?q=", nil))
	assert.NotNil(t, got.Suggestions)
	assert.Empty(t, got.Suggestions)
}

func TestAuthFlowClaimsGuestGames(t *testing.T) {
	s := newTestServer(t)

	// guest wins a game
	v, rec := newGame(t, s)
	anon := cookie(rec, auth.AnonCookieName)
	require.NotNil(t, anon)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: v.ID, Guess: "France"}, anon).Code)

	rec = do(t, s, http.MethodPost, "/auth/signup", credentialsReq{Username: "dana", Password: "password123"}, anon)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := cookie(rec, "capitals_token")
	require.NotNil(t, tok)

	rec = do(t, s, http.MethodPost, "/auth/signup", credentialsReq{Username: "DANA", Password: "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	type row struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Answer string `json:"answer"`
	}
	mine := decode[[]row](t, do(t, s, http.MethodGet, "/games/mine", nil, tok))
	require.Len(t, mine, 1)
	assert.Equal(t, v.ID, mine[0].ID)
	assert.Equal(t, "won", mine[0].Status)
	assert.Equal(t, "France", mine[0].Answer)

	// signed-in game bumps stats
	v2, _ := newGame(t, s, tok)
	do(t, s, http.MethodPost, "/game/guess", gameReq{GameID: v2.ID, Guess: "Germany"}, tok)
	do(t, s, http.MethodPost, "/game/reveal", gameReq{GameID: v2.ID}, tok)

	st := decode[map[string]any](t, do(t, s, http.MethodGet, "/stats/me", nil, tok))
	assert.EqualValues(t, 1, st["gamesPlayed"])
	assert.EqualValues(t, 0, st["wins"])
	assert.EqualValues(t, 0, st["streak"])

	me := decode[map[string]any](t, do(t, s, http.MethodGet, "/auth/me", nil, tok))
	assert.Equal(t, "dana", me["username"])
	assert.NotContains(t, me, "passwordHash")

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodPost, "/auth/login",
		credentialsReq{Username: "dana", Password: "wrong-password"}).Code)
	rec = do(t, s, http.MethodPost, "/auth/login", credentialsReq{Username: "Dana", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, cookie(rec, "capitals_token"))

	rec = do(t, s, http.MethodPost, "/auth/logout", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := cookie(rec, "capitals_token")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/stats/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/games/mine", nil,
		&http.Cookie{Name: "capitals_token", Value: "garbage"}).Code)
}

func TestDailyOnePlayPerDay(t *testing.T) {
	s := newTestServer(t)
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day }

	rec := do(t, s, http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anon := cookie(rec, auth.AnonCookieName)
	require.NotNil(t, anon)
	nr := decode[dailyNewRes](t, rec)
	assert.Equal(t, "2026-03-14", nr.Date)
	assert.False(t, nr.Played)
	require.NotNil(t, nr.State)
	assert.Equal(t, "Paris", nr.State.Capital)

	// same player reuses the session
	again := decode[dailyNewRes](t, do(t, s, http.MethodPost, "/daily/new", nil, anon))
	assert.Equal(t, nr.GameID, again.GameID)

	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/daily/guess",
		gameReq{GameID: "other", Guess: "France"}, anon).Code)

	gr := decode[dailyGuessRes](t, do(t, s, http.MethodPost, "/daily/guess",
		gameReq{GameID: nr.GameID, Guess: "Germany"}, anon))
	assert.False(t, gr.Guess.Correct)
	gr = decode[dailyGuessRes](t, do(t, s, http.MethodPost, "/daily/guess",
		gameReq{GameID: nr.GameID, Guess: "France"}, anon))
	assert.Equal(t, game.StatusWon, gr.State.Status)

	played := decode[dailyNewRes](t, do(t, s, http.MethodPost, "/daily/new", nil, anon))
	assert.True(t, played.Played)
	assert.Empty(t, played.GameID)

	lb := decode[lbRes](t, do(t, s, http.MethodGet, "/daily/leaderboard", nil))
	assert.Equal(t, "2026-03-14", lb.Date)
	require.Len(t, lb.Top, 1)
	assert.Equal(t, anon.Value, lb.Top[0].UserID)
	assert.Equal(t, 2, lb.Top[0].Guesses)

	empty := decode[lbRes](t, do(t, s, http.MethodGet, "/daily/leaderboard?date=2026-03-15", nil))
	assert.Empty(t, empty.Top)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/daily/leaderboard?date=yesterday", nil).Code)
}

func TestSessionsAreBoundToOwner(t *testing.T) {
	s := newTestServer(t)
	v, anon := newGuest(t, s)
	stranger := &http.Cookie{Name: auth.AnonCookieName, Value: "someone-else"}

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/game/"+v.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/game/"+v.ID, nil, stranger).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/game/guess",
		gameReq{GameID: v.ID, Guess: "France"}, stranger).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/game/reveal",
		gameReq{GameID: v.ID}, stranger).Code)

	// restartFrom on someone else's game starts a new game but leaves theirs alone
	rec := do(t, s, http.MethodPost, "/game/new", newGameReq{RestartFrom: v.ID}, stranger)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[game.View](t, do(t, s, http.MethodGet, "/game/"+v.ID, nil, anon))
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, game.StatusPlaying, got.Status)
}

func TestGuestGameSurvivesSignup(t *testing.T) {
	s := newTestServer(t)
	v, anon := newGuest(t, s)

	rec := do(t, s, http.MethodPost, "/auth/signup", credentialsReq{Username: "rowan", Password: "password123"}, anon)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := cookie(rec, "capitals_token")
	require.NotNil(t, tok)

	res := decode[guessRes](t, do(t, s, http.MethodPost, "/game/guess",
		gameReq{GameID: v.ID, Guess: "France"}, anon, tok))
	assert.True(t, res.Guess.Correct)

	st := decode[map[string]any](t, do(t, s, http.MethodGet, "/stats/me", nil, tok))
	assert.EqualValues(t, 1, st["wins"])
}

func TestDailyGameFinishesAfterMidnight(t *testing.T) {
	s := newTestServer(t)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC) }

	rec := do(t, s, http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anon := cookie(rec, auth.AnonCookieName)
	require.NotNil(t, anon)
	nr := decode[dailyNewRes](t, rec)
	assert.Equal(t, "2026-03-01", nr.Date)

	s.now = func() time.Time { return time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC) }
	rec = do(t, s, http.MethodPost, "/daily/guess", gameReq{GameID: nr.GameID, Guess: "France"}, anon)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gr := decode[dailyGuessRes](t, rec)
	assert.Equal(t, "2026-03-01", gr.Date)
	assert.Equal(t, game.StatusWon, gr.State.Status)

	lb := decode[lbRes](t, do(t, s, http.MethodGet, "/daily/leaderboard?date=2026-03-01", nil))
	require.Len(t, lb.Top, 1)
	assert.Equal(t, anon.Value, lb.Top[0].UserID)

	// the new day is still open
	today := decode[dailyNewRes](t, do(t, s, http.MethodPost, "/daily/new", nil, anon))
	assert.False(t, today.Played)
	assert.Equal(t, "2026-03-02", today.Date)
	assert.NotEqual(t, nr.GameID, today.GameID)
}

func TestDailyRevealRecordsLoss(t *testing.T) {
	s := newTestServer(t)
	day := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day }

	rec := do(t, s, http.MethodPost, "/daily/new", nil)
	anon := cookie(rec, auth.AnonCookieName)
	require.NotNil(t, anon)
	nr := decode[dailyNewRes](t, rec)

	stranger := &http.Cookie{Name: auth.AnonCookieName, Value: "someone-else"}
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/daily/reveal",
		gameReq{GameID: nr.GameID}, stranger).Code)

	rec = do(t, s, http.MethodPost, "/daily/reveal", gameReq{GameID: nr.GameID}, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	gr := decode[dailyGuessRes](t, rec)
	assert.Nil(t, gr.Guess)
	assert.Equal(t, game.StatusLost, gr.State.Status)
	require.NotNil(t, gr.State.Answer)
	assert.Equal(t, "France", gr.State.Answer.Country)

	// session is freed and the day counts as played
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/daily/guess",
		gameReq{GameID: nr.GameID, Guess: "France"}, anon).Code)
	played := decode[dailyNewRes](t, do(t, s, http.MethodPost, "/daily/new", nil, anon))
	assert.True(t, played.Played)

	lb := decode[lbRes](t, do(t, s, http.MethodGet, "/daily/leaderboard", nil))
	assert.Empty(t, lb.Top)
}

func TestSweepDropsGameAndDailySessions(t *testing.T) {
	s := newTestServer(t)
	v, anon := newGuest(t, s)
	rec := do(t, s, http.MethodPost, "/daily/new", nil, anon)
	nr := decode[dailyNewRes](t, rec)

	assert.Zero(t, s.Sweep(time.Now().Add(-time.Hour)))
	assert.Equal(t, 2, s.Sweep(time.Now().Add(time.Minute)))

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/game/"+v.ID, nil, anon).Code)
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/daily/guess",
		gameReq{GameID: nr.GameID, Guess: "France"}, anon).Code)

	again := decode[dailyNewRes](t, do(t, s, http.MethodPost, "/daily/new", nil, anon))
	assert.False(t, again.Played)
	assert.NotEqual(t, nr.GameID, again.GameID)
}
