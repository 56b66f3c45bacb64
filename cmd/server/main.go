// Command server runs the track tampering detection service: fusion engine,
// alert lifecycle, audit log and dissemination bus behind one HTTP surface.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"trackguard/internal/alert"
	alerthandler "trackguard/internal/alert/handler"
	alertmetrics "trackguard/internal/alert/metrics"
	alertmem "trackguard/internal/alert/store/memory"
	alertpg "trackguard/internal/alert/store/postgres"
	"trackguard/internal/audit"
	audithandler "trackguard/internal/audit/handler"
	auditmem "trackguard/internal/audit/store/memory"
	auditpg "trackguard/internal/audit/store/postgres"
	"trackguard/internal/bus"
	busmetrics "trackguard/internal/bus/metrics"
	httpapi "trackguard/internal/http"
	"trackguard/internal/intent"
	intenthandler "trackguard/internal/intent/handler"
	intentmetrics "trackguard/internal/intent/metrics"
	"trackguard/internal/platform/config"
	"trackguard/internal/platform/httpserver"
	"trackguard/internal/platform/logger"
	"trackguard/internal/platform/postgres"
	platformredis "trackguard/internal/platform/redis"
	"trackguard/internal/reading"
	"trackguard/internal/sensor"
	sensorhandler "trackguard/internal/sensor/handler"
	"trackguard/internal/vision"
	visionhandler "trackguard/internal/vision/handler"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Stores: durable when Postgres is configured, in-memory otherwise.
	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	var (
		auditStore audit.Store = auditmem.NewInMemoryStore()
		alertStore alert.Store = alertmem.NewInMemoryStore()
	)
	if db != nil {
		defer db.Close()

		apg := auditpg.New(db)
		if err := apg.EnsureSchema(ctx); err != nil {
			return err
		}
		auditStore = apg

		lpg := alertpg.New(db)
		if err := lpg.EnsureSchema(ctx); err != nil {
			return err
		}
		alertStore = lpg
	} else {
		log.Warn("no postgres configured, using in-memory stores")
	}

	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	eventBus := bus.New(cfg.StreamBuffer, log, busmetrics.New(registry))
	defer eventBus.Close()

	auditSvc, err := audit.NewService(ctx, auditStore, log)
	if err != nil {
		return err
	}
	alertSvc := alert.NewService(alert.DefaultConfig(), alertStore, auditSvc, eventBus, log, alertmetrics.New(registry))

	simCfg := reading.DefaultSimulatedConfig()
	visionSrc := reading.NewSimulatedVisionSource(simCfg)
	sensorSrc := reading.NewSimulatedSensorSource(simCfg)
	visionAnalyzer := vision.NewAnalyzer(vision.DefaultConfig())
	sensorAnalyzer := sensor.NewAnalyzer(sensor.DefaultConfig())

	intentSvc := intent.NewService(
		intent.DefaultConfig(),
		visionSrc, sensorSrc,
		visionAnalyzer, sensorAnalyzer,
		auditSvc, alertSvc, eventBus,
		log, intentmetrics.New(registry),
	)

	checks := map[string]httpapi.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if rdb != nil {
		checks["redis"] = rdb.Health
	}

	router := httpapi.New(httpapi.Config{
		Registry: registry,
		Handlers: []httpapi.Registrar{
			intenthandler.New(intentSvc, log),
			visionhandler.New(visionSrc, visionAnalyzer, log),
			sensorhandler.New(sensorSrc, sensorAnalyzer, log),
			alerthandler.New(alertSvc, log),
			audithandler.New(auditSvc, log),
		},
		Stream: bus.StreamHandler(eventBus, log),
		Checks: checks,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if rdb != nil {
		relay := bus.NewRelay(eventBus, rdb.Client, bus.DefaultRelayChannel, log)
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("dissemination relay enabled", "channel", bus.DefaultRelayChannel)
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
