package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/showtime-booking/internal/cache"
	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/database"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/metrics"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/payment"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/router"
	"github.com/iliyamo/showtime-booking/internal/service"
)

func main() {
	cfg := config.Load()

	// Logger
	zerolog.TimeFieldFormat = time.RFC3339
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Env == "dev" || cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// MySQL
	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	// Redis
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Warn().Err(err).Msg("redis unreachable at startup, seat holds run degraded until it returns")
	}
	defer rdb.Close()

	// RabbitMQ
	publisher := queue.NewPublisher(cfg.RabbitURL)
	defer publisher.Close()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	coord := service.NewCoordinator(
		repository.NewBookingRepo(db),
		repository.NewShowtimeRepo(db),
		cache.NewAvailability(rdb),
		cache.NewSelections(rdb),
		publisher,
		service.WithHoldTTL(cfg.HoldTTL),
		service.WithBookingTimeout(cfg.BookingTimeout),
		service.WithMetrics(m),
	)

	sweeper := service.NewSweeper(coord, cfg.SweepInterval, cfg.SweepBatch, m)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	if cfg.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.RabbitURL, queue.NotificationLog(cfg.NotificationDir))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("booking consumer stopped")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.RegisterRoutes(e, router.Deps{
		Bookings:  handler.NewBookingHandler(coord),
		Webhooks:  handler.NewWebhookHandler(coord, payment.NewVerifier(cfg.PaymentWebhookSecret)),
		Admin:     handler.NewAdminHandler(sweeper),
		Health:    handler.Health(db.PingContext, func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		Metrics:   metrics.Handler(reg),
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
