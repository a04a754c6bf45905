package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "huddle/internal/adapters/http"
	wssignal "huddle/internal/adapters/signal"
	"huddle/internal/app"
	"huddle/internal/config"
	"huddle/internal/core"
	"huddle/internal/store/memory"
	"huddle/internal/store/sqlite"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var store core.RoomStore
	if cfg.DBPath != "" {
		s, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
		}
		defer s.Close()
		store = s
		log.Info().Str("path", cfg.DBPath).Msg("using sqlite room store")
	} else {
		store = memory.NewStore()
		log.Warn().Msg("no db_path configured, using in-memory room store")
	}

	// The registry instance is owned here and handed to the connection
	// controller; there is no ambient global presence state.
	presence := app.NewPresenceRegistry()
	policy := app.NewAvailabilityPolicy(cfg.JoinGrace)
	events := app.NewBroadcaster(presence)
	lifecycle := app.NewLifecycle(store, presence, policy, events, cfg.JoinTimeout)

	ws := wssignal.NewController(lifecycle, presence, cfg.ReadLimit, cfg.PingPeriod, cfg.SendQueue)
	r := router.SetupRouter(ctx, cfg, store, ws)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Huddle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
