// apps/go-server/internal/game/types.go
//
// Core type definitions for the capital guessing engine.
// Defines:
//   - GuessRecord: one submitted guess and its feedback.
//   - Session: state for a single in-progress or finished game.
//   - View: the read-only projection handed to presentation layers.

package game

import (
	"time"

	"github.com/robalobadob/capitals/apps/go-server/internal/countries"
	"github.com/robalobadob/capitals/apps/go-server/internal/geo"
)

// Status is a coarse representation of where a session is.
type Status string

const (
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// GuessRecord is created once per accepted submission and never mutated.
// DistanceKm is nil when the guess (or the target) could not be placed.
type GuessRecord struct {
	Text       string `json:"text"`              // trimmed input as typed
	Country    string `json:"country,omitempty"` // canonical name when resolved
	DistanceKm *int   `json:"distanceKm"`
	Correct    bool   `json:"correct"`
}

// Resolved reports whether the guess matched a known country.
func (g GuessRecord) Resolved() bool { return g.Country != "" }

// HintKind names the dataset field a hint was drawn from.
type HintKind string

const (
	HintContinent HintKind = "continent"
	HintFamousFor HintKind = "famousFor"
)

// Hint is one piece of extra information about the target.
type Hint struct {
	Kind HintKind `json:"kind"`
	Text string   `json:"text"`
}

// Session holds the state of a single game. It is owned by one caller at a
// time; the HTTP layer serialises access per session.
type Session struct {
	ID              string
	Owner           string // opaque key of the caller that started it; empty means anyone
	Target          countries.Record
	Guesses         []GuessRecord
	MaxGuesses      int
	CountUnresolved bool
	Over            bool
	Won             bool
	Revealed        bool
	HintsUsed       int
	StartedAt       time.Time
	FinishedAt      time.Time

	data *countries.Dataset
	now  func() time.Time
}

// Answer is only exposed once the session is over.
type Answer struct {
	Country  string    `json:"country"`
	Capital  string    `json:"capital"`
	Location geo.Point `json:"location"`
	MapCell  string    `json:"mapCell"`
}

// View is the read-only session state rendered by clients.
type View struct {
	ID         string        `json:"gameId"`
	Capital    string        `json:"capital"`
	Guesses    []GuessRecord `json:"guesses"`
	Remaining  int           `json:"remaining"`
	MaxGuesses int           `json:"maxGuesses"`
	Status     Status        `json:"state"`
	Over       bool          `json:"over"`
	Won        bool          `json:"won"`
	Hints      []Hint        `json:"hints"`
	Answer     *Answer       `json:"answer,omitempty"`
}
