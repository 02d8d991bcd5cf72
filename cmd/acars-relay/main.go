// Command acars-relay runs the station relay: the HTTP operation surface,
// the retention sweeper, and (when configured) the external network bridge.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/atcnet/acars-relay/internal/config"
	httpapi "github.com/atcnet/acars-relay/internal/http"
	"github.com/atcnet/acars-relay/internal/observability"
	"github.com/atcnet/acars-relay/internal/relaybridge"
	"github.com/atcnet/acars-relay/internal/repo"
	"github.com/atcnet/acars-relay/internal/services"
	"github.com/atcnet/acars-relay/internal/sweeper"
	"github.com/atcnet/acars-relay/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(c)
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	svc := services.NewRelayService(db)
	svc.RetentionWindow = cfg.RetentionWindow
	svc.DedupeTTL = cfg.DedupeTTL
	if err := svc.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("statistics init failed")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	// Background workers.
	go sweeper.New(svc, cfg.CleanupInterval, log.With().Str("worker", "sweeper").Logger()).Run(ctx)
	if cfg.Hoppie.Enabled() {
		go relaybridge.New(svc, cfg.Hoppie, log.With().Str("worker", "bridge").Logger()).Run(ctx)
	} else {
		log.Info().Msg("external relay bridge disabled (no HOPPIE_LOGON)")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
