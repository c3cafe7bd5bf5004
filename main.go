// apps/go-server/main.go
//
// Entry point for the capitals go-server: loads config, the country dataset
// and the SQLite database, then serves the HTTP API until interrupted.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/capitals/apps/go-server/assets"
	"github.com/robalobadob/capitals/apps/go-server/internal/config"
	"github.com/robalobadob/capitals/apps/go-server/internal/countries"
	"github.com/robalobadob/capitals/apps/go-server/internal/database"
	"github.com/robalobadob/capitals/apps/go-server/internal/game"
	"github.com/robalobadob/capitals/apps/go-server/internal/httpserver"
	"github.com/robalobadob/capitals/apps/go-server/internal/store"
)

func main() {
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := countries.Init(cfg.CountriesFile, cfg.AliasesFile); err != nil {
		log.Fatal().Err(err).Msg("failed to load country dataset")
	}
	recs, eligible, aliases := countries.Default().Stats()
	log.Info().Int("records", recs).Int("eligible", eligible).Int("aliases", aliases).Msg("dataset loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenMigrated(ctx, cfg.DBPath, assets.Migrations())
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer db.Close()

	mem := store.NewMemoryStore()
	engine := game.NewEngine(countries.Default(), game.Options{
		MaxGuesses:      cfg.MaxGuesses,
		CountUnresolved: cfg.CountUnresolved,
	})
	srv := httpserver.New(httpserver.Deps{Config: cfg, Engine: engine, Sessions: mem, DB: db})

	go sweep(ctx, srv, cfg.SessionTTL)

	hs := &http.Server{Addr: ":" + cfg.Port, Handler: srv.Router(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.Port).Msg("starting go-server")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

// sweep drops abandoned game and daily sessions older than ttl.
func sweep(ctx context.Context, srv *httpserver.Server, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(ttl / 4)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := srv.Sweep(now.Add(-ttl)); n > 0 {
				log.Debug().Int("dropped", n).Msg("swept sessions")
			}
		}
	}
}
