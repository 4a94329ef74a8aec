// Command server runs the WhatsApp automation backend: the provider-facing
// webhook receiver, the operator admin API, and the background outbound
// delivery scheduler, all sharing one SQLite database.
//
// @title        WhatsApp Automation Backend API
// @version      1.0
// @description  Inbound resolution, automated replies, and reliable outbound delivery.
// @BasePath     /
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/klresolute/whatsapp-backend/internal/config"
	"github.com/klresolute/whatsapp-backend/internal/gateway"
	httpapi "github.com/klresolute/whatsapp-backend/internal/http"
	"github.com/klresolute/whatsapp-backend/internal/observability"
	"github.com/klresolute/whatsapp-backend/internal/repo"
	"github.com/klresolute/whatsapp-backend/internal/services"
	"github.com/klresolute/whatsapp-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op unless enabled)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Database
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("could not open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Outbound gateway: dry-run unless explicitly configured otherwise.
	gw := gateway.Build(gateway.Settings{
		Mode: cfg.Outbound.Mode,
		Meta: gateway.MetaConfig{
			Enabled:       cfg.Outbound.MetaEnabled,
			AccessToken:   cfg.Outbound.MetaAccessToken,
			PhoneNumberID: cfg.Outbound.MetaPhoneID,
			APIBaseURL:    cfg.Outbound.MetaAPIBaseURL,
			TestAllowlist: cfg.Outbound.TestAllowlist,
			Timeout:       cfg.Outbound.MetaSendTimeout,
		},
	})
	log.Info().Str("mode", cfg.Outbound.Mode).Msg("outbound gateway configured")

	// Services
	delivery := services.NewDeliveryService(gw)
	inbound := &services.InboundService{
		Selector: services.ResponseSelector{Fallback: cfg.FallbackResponse},
		Drafts:   services.NewDraftService(cfg.DedupWindow),
	}

	// Background delivery scheduler
	scheduler := &services.Scheduler{Delivery: delivery, Interval: cfg.DeliveryInterval}
	schedulerDone := scheduler.Start(ctx, db)

	// HTTP
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Inbound: inbound, Delivery: delivery}, cfg)

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
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	<-schedulerDone

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}
