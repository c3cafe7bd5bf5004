// Package history persists finished and in-progress games and per-user
// counters (games played, wins, streak). Guests are tracked by anonymous id
// and their rows are claimed when they sign in.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/capitals/apps/go-server/internal/game"
)

// Owner identifies who a game belongs to. Exactly one field should be set;
// UserID wins when both are.
type Owner struct {
	UserID string
	AnonID string
}

func (o Owner) clause() (string, any) {
	if o.UserID != "" {
		return `user_id=?`, o.UserID
	}
	return `anonymous_id=?`, o.AnonID
}

// GameRow is one entry of a user's recent games.
type GameRow struct {
	ID         string `json:"id"`
	Capital    string `json:"capital"`
	Answer     string `json:"answer,omitempty"`
	Status     string `json:"status"`
	Guesses    int    `json:"guesses"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// Stats are the per-user counters.
type Stats struct {
	GamesPlayed int `json:"gamesPlayed"`
	Wins        int `json:"wins"`
	Streak      int `json:"streak"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Start inserts the owner row for a new session. The answer is not stored
// until the game is over.
func (s *Store) Start(ctx context.Context, o Owner, g *game.Session) error {
	var userID, anonID any
	if o.UserID != "" {
		userID = o.UserID
	} else {
		anonID = o.AnonID
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO games (id, user_id, anonymous_id, capital, started_at, status, guesses)
        VALUES (?,?,?,?,?,?,0)`,
		g.ID, userID, anonID, g.Target.Capital, g.StartedAt.Format(time.RFC3339), string(game.StatusPlaying))
	return err
}

// Sync writes the session's guess count and, the first time it is seen
// over, its result, bumping the owner's stats. Calling it again after the
// game is finished changes nothing.
func (s *Store) Sync(ctx context.Context, o Owner, g *game.Session) error {
	clause, arg := o.clause()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET guesses=? WHERE id=? AND status='playing' AND `+clause,
		len(g.Guesses), g.ID, arg); err != nil {
		return fmt.Errorf("update guesses: %w", err)
	}

	if g.Over {
		res, err := tx.ExecContext(ctx,
			`UPDATE games SET status=?, answer=?, finished_at=? WHERE id=? AND status='playing' AND `+clause,
			string(g.Status()), g.Target.Country, finishedAt(g).Format(time.RFC3339), g.ID, arg)
		if err != nil {
			return fmt.Errorf("finish game: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 && o.UserID != "" {
			if err := bumpStats(ctx, tx, o.UserID, g.Won); err != nil {
				return fmt.Errorf("bump stats: %w", err)
			}
		}
	}
	return tx.Commit()
}

func finishedAt(g *game.Session) time.Time {
	if g.FinishedAt.IsZero() {
		return time.Now().UTC()
	}
	return g.FinishedAt
}

// bumpStats increments games played; updates wins and streak based on result (within tx).
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, won bool) error {
	var st Stats
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id=?`, userID)
	if err := row.Scan(&st.GamesPlayed, &st.Wins, &st.Streak); err != nil {
		return err
	}
	st.GamesPlayed++
	if won {
		st.Wins++
		st.Streak++
	} else {
		st.Streak = 0
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, streak=? WHERE id=?`,
		st.GamesPlayed, st.Wins, st.Streak, userID)
	return err
}

// ClaimAnon transfers a guest's games to a user account.
func (s *Store) ClaimAnon(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	return err
}

// Recent returns a user's most recent games, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]GameRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, capital, answer, status, guesses, started_at, COALESCE(finished_at,'')
        FROM games WHERE user_id=? ORDER BY started_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRow{}
	for rows.Next() {
		var gr GameRow
		if err := rows.Scan(&gr.ID, &gr.Capital, &gr.Answer, &gr.Status, &gr.Guesses, &gr.StartedAt, &gr.FinishedAt); err != nil {
			return nil, err
		}
		if gr.Status == string(game.StatusPlaying) {
			gr.Answer = ""
		}
		out = append(out, gr)
	}
	return out, rows.Err()
}

// UserStats reads the counters for a user.
func (s *Store) UserStats(ctx context.Context, userID string) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id=?`, userID).
		Scan(&st.GamesPlayed, &st.Wins, &st.Streak)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("user %s: %w", userID, err)
	}
	return st, err
}
