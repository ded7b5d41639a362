package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nkoutsos/backstop/config"
	"github.com/nkoutsos/backstop/internal/circuitbreaker"
	"github.com/nkoutsos/backstop/internal/health"
	"github.com/nkoutsos/backstop/internal/httpserver"
	"github.com/nkoutsos/backstop/internal/metrics"
	"github.com/nkoutsos/backstop/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(256, log)
	collector.Start(ctx)

	manager := circuitbreaker.NewManager(log)
	if err := registerBreakers(manager, collector, cfg.Breakers); err != nil {
		log.Error("Failed to register breakers", slog.Any("err", err))
		os.Exit(1)
	}

	monitor, err := buildMonitor(cfg.Health, collector, log)
	if err != nil {
		log.Error("Failed to build health monitor", slog.Any("err", err))
		os.Exit(1)
	}
	monitor.Start(ctx)
	defer monitor.Stop()

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(manager, monitor, collector))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Observability endpoint listening", slog.String("address", cfg.Server.Address))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func registerBreakers(manager *circuitbreaker.Manager, collector *metrics.Collector, breakers []config.BreakerConfig) error {
	for _, bc := range breakers {
		recoveryTimeout, err := time.ParseDuration(bc.RecoveryTimeout)
		if err != nil {
			return err
		}

		cancellation := circuitbreaker.CancelCountsAsFailure
		if bc.OnCancel == config.OnCancelIgnore {
			cancellation = circuitbreaker.CancelIgnored
		}

		_, err = manager.Register(bc.Tier, circuitbreaker.Settings{
			FailureThreshold:   bc.FailureThreshold,
			RecoveryTimeout:    recoveryTimeout,
			HalfOpenMaxCalls:   bc.HalfOpenMaxCalls,
			SuccessThreshold:   bc.SuccessThreshold,
			CancellationPolicy: cancellation,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				collector.Emit(metrics.Event{
					Type:      metrics.EventStateChanged,
					Timestamp: time.Now(),
					Breaker:   name,
					State:     to,
				})
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func buildMonitor(hc config.HealthConfig, collector *metrics.Collector, log *slog.Logger) (*health.Monitor, error) {
	interval, err := time.ParseDuration(hc.Interval)
	if err != nil {
		return nil, err
	}

	probeTimeout, err := time.ParseDuration(hc.ProbeTimeout)
	if err != nil {
		return nil, err
	}

	monitor := health.NewMonitor(interval, probeTimeout, log)

	client := &http.Client{Timeout: probeTimeout}
	for _, tier := range hc.Tiers {
		u, err := url.Parse(tier.URL)
		if err != nil {
			return nil, err
		}
		monitor.RegisterProbe(tier.Name, health.HTTPProbe(client, u))
	}

	monitor.OnChange(func(tier string, healthy bool) {
		collector.Emit(metrics.Event{
			Type:      metrics.EventHealthChanged,
			Timestamp: time.Now(),
			Tier:      tier,
			Healthy:   healthy,
		})
	})

	return monitor, nil
}
