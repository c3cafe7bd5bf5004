// apps/go-server/internal/game/engine.go
//
// Game engine for the capital guessing game.
// Responsibilities:
//   - Start sessions with a target drawn uniformly from the eligible pool.
//   - Validate and apply guesses, producing great-circle distance feedback.
//   - Track state transitions: playing → won/lost, and forced reveal.
//   - Hand out hints drawn from the target's dataset entry.
//
// Notes:
//   - The dataset is read-only; sessions hold a pointer to it for lookups.
//   - Guesses are never deduplicated; every accepted submission is recorded.
//   - With CountUnresolved=false, guesses that yield no distance are
//     recorded but do not consume an attempt.
package game

import (
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/robalobadob/capitals/apps/go-server/internal/countries"
	"github.com/robalobadob/capitals/apps/go-server/internal/geo"
)

// DefaultMaxGuesses is the attempt limit when Options.MaxGuesses is unset.
const DefaultMaxGuesses = 5

var (
	ErrEmptyGuess = errors.New("empty guess")
	ErrGameOver   = errors.New("game finished")
	ErrNoHint     = errors.New("no hints for this capital")
)

// Options tunes session rules.
type Options struct {
	MaxGuesses      int  // <= 0 means DefaultMaxGuesses
	CountUnresolved bool // unresolved guesses consume an attempt
}

// Engine creates sessions against a fixed dataset.
type Engine struct {
	data *countries.Dataset
	opts Options
	now  func() time.Time
}

// NewEngine returns an Engine over data.
func NewEngine(data *countries.Dataset, opts Options) *Engine {
	if opts.MaxGuesses <= 0 {
		opts.MaxGuesses = DefaultMaxGuesses
	}
	return &Engine{data: data, opts: opts, now: time.Now}
}

// Dataset returns the dataset sessions are played against.
func (e *Engine) Dataset() *countries.Dataset { return e.data }

// Options returns the effective session rules.
func (e *Engine) Options() Options { return e.opts }

// Start begins a session with a target picked from src. A nil src uses the
// process-wide math/rand/v2 generator, which is safe for concurrent use.
func (e *Engine) Start(src countries.Source) (*Session, error) {
	if src == nil {
		src = globalSource{}
	}
	target, err := e.data.Pick(src)
	if err != nil {
		return nil, err
	}
	return e.StartWith(target), nil
}

// StartWith begins a session with a fixed target.
func (e *Engine) StartWith(target countries.Record) *Session {
	return &Session{
		ID:              randomID(),
		Target:          target,
		Guesses:         []GuessRecord{},
		MaxGuesses:      e.opts.MaxGuesses,
		CountUnresolved: e.opts.CountUnresolved,
		StartedAt:       e.now().UTC(),
		data:            e.data,
		now:             e.now,
	}
}

// Submit validates and scores a guess, mutating the session.
//
// Validation rules:
//   - Session must not be over (ErrGameOver).
//   - Guess must be non-empty after trimming (ErrEmptyGuess).
//
// Scoring:
//   - Normalized text equal to the target (directly or via alias) wins with distance 0.
//   - A known country gets the capital-to-capital distance, or nil when either
//     side lacks coordinates.
//   - Anything else is recorded unresolved with nil distance.
func (s *Session) Submit(raw string) (GuessRecord, error) {
	if s.Over {
		return GuessRecord{}, ErrGameOver
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return GuessRecord{}, ErrEmptyGuess
	}

	rec := GuessRecord{Text: text}
	if s.Target.Country != "" && countries.Normalize(text) == countries.Normalize(s.Target.Country) {
		rec.Country = s.Target.Country
	} else if s.data != nil {
		if r, ok := s.data.Lookup(text); ok {
			rec.Country = r.Country
			if r.Country != s.Target.Country && r.Location != nil && s.Target.Location != nil {
				d := geo.DistanceKm(*r.Location, *s.Target.Location)
				rec.DistanceKm = &d
			}
		}
	}
	if rec.Country != "" && rec.Country == s.Target.Country {
		zero := 0
		rec.Correct, rec.DistanceKm = true, &zero
	}

	s.Guesses = append(s.Guesses, rec)

	if rec.Correct {
		s.finish(true)
	} else if s.AttemptsUsed() >= s.MaxGuesses {
		s.finish(false)
	}
	return rec, nil
}

// Reveal ends the session as a loss regardless of remaining attempts.
// It never records a guess and leaves an already finished session alone.
func (s *Session) Reveal() {
	if s.Over {
		return
	}
	s.Revealed = true
	s.finish(false)
}

// Hint returns the next hint for the target: continent first, then what the
// country is famous for. Further calls repeat the last hint. Hints never
// consume attempts.
func (s *Session) Hint() (Hint, error) {
	if s.Over {
		return Hint{}, ErrGameOver
	}
	all := s.availableHints()
	if len(all) == 0 {
		return Hint{}, ErrNoHint
	}
	if s.HintsUsed < len(all) {
		s.HintsUsed++
	}
	return all[s.HintsUsed-1], nil
}

func (s *Session) availableHints() []Hint {
	var out []Hint
	if s.Target.Continent != "" {
		out = append(out, Hint{Kind: HintContinent, Text: s.Target.Continent})
	}
	if s.Target.FamousFor != "" {
		out = append(out, Hint{Kind: HintFamousFor, Text: s.Target.FamousFor})
	}
	return out
}

// AttemptsUsed counts guesses that consumed an attempt. A guess without a
// distance (unknown country, or either side lacking coordinates) counts only
// under CountUnresolved.
func (s *Session) AttemptsUsed() int {
	n := 0
	for _, g := range s.Guesses {
		if g.Correct || g.DistanceKm != nil || s.CountUnresolved {
			n++
		}
	}
	return n
}

// Remaining reports attempts left, never negative.
func (s *Session) Remaining() int {
	if r := s.MaxGuesses - s.AttemptsUsed(); r > 0 {
		return r
	}
	return 0
}

// Status reports the coarse state.
func (s *Session) Status() Status {
	if s.Over {
		if s.Won {
			return StatusWon
		}
		return StatusLost
	}
	return StatusPlaying
}

// View returns a read-only projection. The answer is included only once the
// session is over.
func (s *Session) View() View {
	v := View{
		ID:         s.ID,
		Capital:    s.Target.Capital,
		Guesses:    append([]GuessRecord(nil), s.Guesses...),
		Remaining:  s.Remaining(),
		MaxGuesses: s.MaxGuesses,
		Status:     s.Status(),
		Over:       s.Over,
		Won:        s.Won,
		Hints:      append([]Hint{}, s.availableHints()[:s.HintsUsed]...),
	}
	if v.Guesses == nil {
		v.Guesses = []GuessRecord{}
	}
	if s.Over {
		a := &Answer{Country: s.Target.Country, Capital: s.Target.Capital}
		if s.Target.Location != nil {
			a.Location = *s.Target.Location
			a.MapCell = geo.MapCell(*s.Target.Location)
		}
		v.Answer = a
	}
	return v
}

func (s *Session) finish(won bool) {
	s.Over, s.Won = true, won
	if s.now != nil {
		s.FinishedAt = s.now().UTC()
	}
}

// globalSource adapts the package-level math/rand/v2 functions.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// randomID returns a compact 16‑hex‑char identifier.
func randomID() string {
	var b [8]byte
	_, _ = crand.Read(b[:])
	return hex.EncodeToString(b[:])
}
