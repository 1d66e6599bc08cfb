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
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/config"
	"github.com/cscfi/exam-reservation/internal/handler"
	"github.com/cscfi/exam-reservation/internal/logging"
	"github.com/cscfi/exam-reservation/internal/middleware"
	"github.com/cscfi/exam-reservation/internal/partner"
	"github.com/cscfi/exam-reservation/internal/queue"
	"github.com/cscfi/exam-reservation/internal/router"
	"github.com/cscfi/exam-reservation/internal/service"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger, err := logging.New(cfg.Env)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, closeStore, err := openStore(ctx, cfg, migrate, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			// Interface values stay nil when the collaborator is disabled.
			var remote service.Partner
			if cfg.Partner.BaseURL != "" {
				remote = partner.New(cfg.Partner.BaseURL, cfg.Partner.APIKey, cfg.Partner.Timeout)
			} else {
				logger.Info("partner api disabled, external reservations unavailable")
			}
			var notifier service.Notifier
			if cfg.RabbitMQURL != "" {
				notifier = queue.NewPublisher(cfg.RabbitMQURL, logger.With(zap.String("component", "publisher")))
			} else {
				logger.Info("rabbitmq disabled, notifications are not sent")
			}

			reservations := service.NewReservationService(store, remote, notifier, cfg.Scheduler, time.Now, logger)
			slots := service.NewSlotService(store, remote, cfg.Scheduler, time.Now, logger)
			maintenance := service.NewMaintenanceService(store, logger)

			rdb := config.NewRedisClient(logger)
			if rdb != nil {
				defer func() { _ = rdb.Close() }()
			}

			e := echo.New()
			e.HideBanner = true
			e.Use(echomw.Recover())
			e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
				LogMethod:  true,
				LogURI:     true,
				LogStatus:  true,
				LogLatency: true,
				LogError:   true,
				LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
					logger.Info("request",
						zap.String("method", v.Method),
						zap.String("uri", v.URI),
						zap.Int("status", v.Status),
						zap.Duration("latency", v.Latency),
						zap.Error(v.Error))
					return nil
				},
			}))

			e.Use(middleware.ContextLogger(logger))

			limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
			cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

			router.RegisterRoutes(e)
			router.RegisterAuth(e, handler.NewAuthHandler(store, cfg.JWTSecret, cfg.AccessTTLMin))
			router.RegisterStudent(e, handler.NewSlotHandler(slots), handler.NewReservationHandler(reservations), cfg.JWTSecret, limit, cache)
			router.RegisterAdmin(e, handler.NewAdminHandler(reservations, maintenance), cfg.JWTSecret)

			errCh := make(chan error, 1)
			go func() {
				addr := ":" + cfg.Port
				logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("storage", cfg.StorageDriver))
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply database migrations on startup")
	return cmd
}
