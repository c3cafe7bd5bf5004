// cmd/play is a terminal client that plays the capital guessing game
// against the embedded dataset, no server required.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/robalobadob/capitals/apps/go-server/internal/config"
	"github.com/robalobadob/capitals/apps/go-server/internal/countries"
	"github.com/robalobadob/capitals/apps/go-server/internal/game"
	"github.com/robalobadob/capitals/apps/go-server/internal/tui"
)

func main() {
	cfg := config.Load()
	// log lines would corrupt the alt screen
	zerolog.SetGlobalLevel(zerolog.Disabled)

	if err := countries.Init(cfg.CountriesFile, cfg.AliasesFile); err != nil {
		fmt.Printf("Error loading countries: %v\n", err)
		os.Exit(1)
	}

	eng := game.NewEngine(countries.Default(), game.Options{
		MaxGuesses:      cfg.MaxGuesses,
		CountUnresolved: cfg.CountUnresolved,
	})
	matcher := countries.Matcher{
		Mode:     countries.ParseMatchMode(cfg.SuggestMode),
		Limit:    cfg.SuggestLimit,
		Capitals: cfg.SuggestCapitals,
	}
	if err := tui.Run(eng, matcher, nil); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
