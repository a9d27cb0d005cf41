package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/TimeWtr/notify_scheduler"
	"github.com/TimeWtr/notify_scheduler/config"
	"github.com/TimeWtr/notify_scheduler/handler"
	"github.com/TimeWtr/notify_scheduler/repository"
	"github.com/TimeWtr/notify_scheduler/repository/dao"
	"github.com/TimeWtr/notify_scheduler/websocket"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Args:  cobra.NoArgs,
		Short: "Start the HTTP API, websocket endpoint and job scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	cfg.Watch(func(fresh *config.Config) {
		level, err := zap.ParseAtomicLevel(fresh.Logger.Level)
		if err != nil {
			logger.Warn("ignoring invalid log level", notify_scheduler.String("level", fresh.Logger.Level))
			return
		}
		if level.Level() != a.level.Level() {
			a.level.SetLevel(level.Level())
			logger.Info("log level changed", notify_scheduler.String("level", level.String()))
		}
	}, func(err error) {
		logger.Error("config reload failed", notify_scheduler.Err(err))
	})

	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	jobs := repository.NewCronJobRepository(dao.NewCronJobDAO(db))
	notifications := repository.NewNotificationRepository(dao.NewNotificationDAO(db))
	users := repository.NewUserRepository(dao.NewUserDAO(db))

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	registry := notify_scheduler.NewConnectionRegistry(users,
		logger.With(notify_scheduler.String("component", "registry")),
		notify_scheduler.WithConnectionPolicy(policy),
		notify_scheduler.WithPresenceTimeout(cfg.Scheduler.QueryTimeout))

	delivery := notify_scheduler.NewNotificationDelivery(notifications, users, registry,
		logger.With(notify_scheduler.String("component", "delivery")),
		notify_scheduler.WithDeliveryQueryTimeout(cfg.Scheduler.QueryTimeout))

	center := notify_scheduler.NewExecCenter()
	notify_scheduler.NewJobHandlers(delivery,
		logger.With(notify_scheduler.String("component", "jobs")), nil).RegisterTo(center)

	scheduler := notify_scheduler.NewJobScheduler(jobs, center,
		logger.With(notify_scheduler.String("component", "scheduler")),
		notify_scheduler.WithLimiter(cfg.Scheduler.Limiter),
		notify_scheduler.WithFireTimeout(cfg.Scheduler.FireTimeout),
		notify_scheduler.WithQueryTimeout(cfg.Scheduler.QueryTimeout))
	scheduler.Start()
	if cfg.Scheduler.AutoLoad {
		if err = scheduler.LoadAll(ctx); err != nil {
			logger.Error("failed to load cron jobs", notify_scheduler.Err(err))
		}
	}

	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery(), handler.LoggerMiddleware(logger))

	h := handler.NewHandler(delivery, jobs, scheduler, delivery, sqlDB, registry.Len, logger)
	h.RegisterRoutes(engine)

	ws := websocket.NewHandler(
		websocket.NewRouter(registry, delivery, logger, cfg.Scheduler.QueryTimeout),
		websocket.Config{
			WriteWait:         cfg.WebSocket.WriteWait,
			PongWait:          cfg.WebSocket.PongWait,
			MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
			SendBuffer:        cfg.WebSocket.SendBuffer,
			MessagesPerSecond: cfg.WebSocket.MessagesPerSecond,
			Burst:             cfg.WebSocket.Burst,
			AllowedOrigins:    cfg.WebSocket.AllowedOrigins,
		}, logger.With(notify_scheduler.String("component", "websocket")))
	engine.GET("/ws", ws.Handle)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", notify_scheduler.String("addr", server.Addr),
			notify_scheduler.String("connection_policy", policy.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case serveErr = <-errCh:
		logger.Error("server failed", notify_scheduler.Err(serveErr))
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	errs := serveErr
	errs = multierr.Append(errs, server.Shutdown(sctx))
	registry.Close()
	errs = multierr.Append(errs, scheduler.Shutdown(sctx))
	errs = multierr.Append(errs, sqlDB.Close())
	if errs != nil {
		logger.Error("shutdown finished with errors", notify_scheduler.Err(errs))
		return errs
	}

	logger.Info("server exited")
	return nil
}
