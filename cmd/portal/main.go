// Command portal runs the care portal: the session-holding front door that
// sits between the web client and the gender healthcare platform API.
//
//	@title			Care Portal API
//	@version		1.0
//	@description	Accounts, STI bookings, staff dashboard, blog, cycle tracker and payment landing.
//	@BasePath		/api
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
	"gorm.io/gorm"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/config"
	"github.com/genderhealth/care-portal/internal/currency"
	httpapi "github.com/genderhealth/care-portal/internal/http"
	"github.com/genderhealth/care-portal/internal/observability"
	"github.com/genderhealth/care-portal/internal/payment"
	"github.com/genderhealth/care-portal/internal/repo"
	"github.com/genderhealth/care-portal/internal/session"
	"github.com/genderhealth/care-portal/internal/storage"
	"github.com/genderhealth/care-portal/internal/sysutil"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

// purgeEvery is how often expired SQLite session entries are swept.
const purgeEvery = 10 * time.Minute

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	log.Logger = observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, ver)
	zerolog.DefaultContextLogger = &log.Logger
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	store, closeStore := openStore(ctx, cfg, db)
	defer closeStore()

	api := backend.New(cfg.Backend.BaseURL, backend.NewHTTPClient(cfg.Backend.Timeout))
	conv, err := currency.NewConverter(cfg.USDVNDRate)
	if err != nil {
		log.Fatal().Err(err).Msg("USD_VND_RATE")
	}

	sessions := session.NewManager(store, api)
	sessions.RefreshTimeout = cfg.Backend.RefreshTimeout
	payments := payment.NewReconciler(store, api, conv)
	payments.FinalizeTimeout = cfg.Backend.FinalizeTimeout

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Sessions: sessions, Payments: payments}, cfg)

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
		log.Info().
			Str("addr", srv.Addr).
			Str("backend", cfg.Backend.BaseURL).
			Str("storage", cfg.StorageDriver).
			Msg("care portal listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// Background profile refreshes write to the store; let them land.
	sessions.Wait()
}

// openStore returns the session store selected by STORAGE_DRIVER and a
// function that releases it.
func openStore(ctx context.Context, cfg config.Config, db *gorm.DB) (storage.Store, func()) {
	if cfg.StorageDriver == "redis" {
		client, err := storage.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("connect redis")
		}
		return storage.NewRedisStore(client, cfg.SessionTTL), func() { _ = client.Close() }
	}

	gs := storage.NewGormStore(db, cfg.SessionTTL)
	pctx, cancel := context.WithCancel(ctx)
	go func() {
		t := time.NewTicker(purgeEvery)
		defer t.Stop()
		for {
			select {
			case <-pctx.Done():
				return
			case <-t.C:
				n, err := gs.Purge(pctx)
				if err != nil {
					log.Warn().Err(err).Msg("purge expired sessions")
					continue
				}
				if n > 0 {
					log.Debug().Int64("rows", n).Msg("purged expired session entries")
				}
			}
		}
	}()
	return gs, cancel
}
