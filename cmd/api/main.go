package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/medicab/scheduler/internal/config"
	v1 "github.com/medicab/scheduler/internal/handler/v1"
	"github.com/medicab/scheduler/internal/notify"
	"github.com/medicab/scheduler/internal/repository/postgres"
	"github.com/medicab/scheduler/internal/service"
	"github.com/medicab/scheduler/pkg/auth"
	"github.com/medicab/scheduler/pkg/database"
	"github.com/medicab/scheduler/pkg/logger"
	"github.com/medicab/scheduler/pkg/metrics"
	"github.com/medicab/scheduler/pkg/tracer"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting appointment scheduler",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	if cfg.Tracing.Enabled {
		tp, err := tracer.Init(cfg.Tracing)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	collector := metrics.NewCollector("scheduler")

	store := postgres.NewAppointmentStore(db)
	timeOffStore := postgres.NewTimeOffStore(db)
	auditStore := postgres.NewAuditStore(db)

	auditSvc := service.NewAuditService(auditStore, collector.AuditBufferDropped, log)
	defer auditSvc.Shutdown()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Kafka.Enabled {
		publisher, err := notify.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			log.Fatal("failed to connect to kafka", zap.Error(err))
		}
		dispatcher := notify.NewDispatcher(publisher, collector.NotifyBufferDropped, log)
		defer dispatcher.Shutdown()
		notifier = dispatcher
	}

	svc, err := service.NewAppointmentService(store, timeOffStore, auditSvc, notifier, cfg.Schedule, log)
	if err != nil {
		log.Fatal("failed to build appointment service", zap.Error(err))
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	reminder := notify.NewReminder(store, notifier,
		cfg.Schedule.ReminderInterval, cfg.Schedule.ReminderWindow,
		collector.RemindersSentTotal, log)
	go reminder.Run(bgCtx)
	go database.ObservePool(bgCtx, db, collector.DBConnections)

	router := v1.NewRouter(v1.RouterDeps{
		Config:       cfg,
		Logger:       log,
		Collector:    collector,
		JWTManager:   auth.NewJWTManager(cfg.JWT),
		Appointments: v1.NewAppointmentHandler(svc, collector, log),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	log.Info("stopped")
}
