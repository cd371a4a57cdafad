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

	router "github.com/castform/castform/internal/adapters/http"
	wssignal "github.com/castform/castform/internal/adapters/signal"
	"github.com/castform/castform/internal/app"
	"github.com/castform/castform/internal/auth"
	"github.com/castform/castform/internal/config"
	"github.com/castform/castform/internal/storage"
	"github.com/castform/castform/internal/store"
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

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	var blobs storage.Provider
	switch cfg.Storage {
	case "gcs":
		blobs, err = storage.NewGCS(ctx, cfg.StorageBucket)
	default:
		blobs, err = storage.NewDisk(cfg.StorageDir)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}

	authSvc := auth.NewService(cfg.Secret, 7*24*time.Hour)

	relay := app.NewRelay(app.NewRegistry(), app.NewRoomTable(), db)
	ctl := wssignal.NewController(relay, authSvc, cfg)

	r := router.SetupRouter(ctx, cfg, ctl, db, authSvc, blobs)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Castform server started")
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
