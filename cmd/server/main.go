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

	router "liveroom/internal/adapters/http"
	"liveroom/internal/adapters/rtc"
	"liveroom/internal/adapters/store"
	"liveroom/internal/app"
	"liveroom/internal/auth"
	"liveroom/internal/config"
	"liveroom/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var (
		engineStore core.Store
		auditSink   core.AuditSink
		users       auth.UserStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to store")
		}
		defer pg.Close()
		engineStore, auditSink, users = pg, pg, pg
	} else {
		log.Warn().Msg("no database_url configured, state will not survive restarts")
		mem := store.NewMemory()
		engineStore, auditSink, users = mem, mem, mem
	}

	engine := app.NewEngine(engineStore, app.Options{
		CommandTimeout: cfg.CommandTimeout,
		DrainGrace:     cfg.DrainGrace,
		Audit:          auditSink,
	})

	authSvc := auth.NewService(users, cfg.Secret, cfg.TokenTTL)
	tokens := rtc.NewTokenService(cfg.RTC.AppID, cfg.RTC.Secret, cfg.RTC.TTL)

	r := router.SetupRouter(cfg, authSvc,
		&router.AuthController{Auth: authSvc},
		&router.RoomController{Engine: engine, Tokens: tokens},
	)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("liveroom server started")
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
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Engine forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
