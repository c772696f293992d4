// Command healthserver is a small demonstration entry point wiring the
// health engine, its logging/metrics/config/serviceinfo collaborators, and
// its HTTP surface together.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/r3e-network/healthcheck/config"
	"github.com/r3e-network/healthcheck/health"
	"github.com/r3e-network/healthcheck/httpapi"
	"github.com/r3e-network/healthcheck/logging"
	"github.com/r3e-network/healthcheck/metrics"
	"github.com/r3e-network/healthcheck/serviceinfo"
)

func main() {
	cfg := config.LoadServerConfig()
	logger := logging.New(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.Init(cfg.ServiceName)
	}

	processStarted := time.Now()
	gatherer := serviceinfo.New(cfg.ServiceName, processStarted, map[string]string{
		"version": "dev",
	})

	registry := health.NewRegistry(
		health.WithLogger(logging.NewHealthRunnerLogger(logger)),
		health.WithServiceInfo(gatherer.Gather),
		health.WithVersion(health.ReportDTOVersion),
	)

	registerExampleChecks(registry)
	wireMetrics(registry, m, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registry.StartHealthChecks(ctx); err != nil {
		log.Fatalf("failed to start health checks: %v", err)
	}

	server := httpapi.NewServer(cfg.ServiceName, registry, m)
	addr := fmt.Sprintf(":%d", cfg.Port)

	logger.WithContext(ctx).WithField("addr", addr).Info("healthserver listening")

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe(ctx, addr) }()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.WithContext(ctx).WithError(err).Error("http server exited")
		}
	case <-ctx.Done():
	}

	shutdownDeadline := time.NewTimer(cfg.ShutdownGrace)
	defer shutdownDeadline.Stop()
	shutdownDone := make(chan struct{})
	go func() { registry.Shutdown(); close(shutdownDone) }()
	select {
	case <-shutdownDone:
	case <-shutdownDeadline.C:
		logger.WithContext(context.Background()).Warn("health registry shutdown exceeded grace period")
	}
	logger.WithContext(context.Background()).Info("healthserver stopped")
}

// registerExampleChecks registers a couple of representative checks: a
// static always-ready readiness check, and a dynamic disk-space-style
// degraded-axis check that activates DEGRADED_MINOR/DEGRADED_PARTIAL as a
// simulated usage figure climbs.
func registerExampleChecks(registry *health.Registry) {
	err := registry.RegisterCheck(health.CheckMetadata{
		Name:        "service-ready",
		Description: "reports that the process has completed startup",
	}, func(spec *health.CheckSpecification) {
		spec.StaticText("process accepts traffic once this check reports ok").
			Check([]health.ResponsibleRef{health.Operations}, []health.Axis{health.NotReady}, func(c *health.CheckContext) *health.CheckResultBuilder {
				return c.Ok("startup complete")
			})
	})
	if err != nil {
		log.Printf("failed to register service-ready check: %v", err)
	}

	err = registry.RegisterCheck(health.CheckMetadata{
		Name:                       "disk-space",
		Description:                "simulated disk usage check",
		IntervalInSeconds:          30,
		IntervalWhenNotOkInSeconds: 10,
	}, func(spec *health.CheckSpecification) {
		spec.DynamicText(func(shared *health.SharedContext) string {
			usage := simulatedDiskUsagePercent()
			shared.Put("usage", usage)
			return fmt.Sprintf("simulated usage: %d%%", usage)
		}).Check(
			[]health.ResponsibleRef{health.Operations},
			[]health.Axis{health.DegradedComplete},
			func(c *health.CheckContext) *health.CheckResultBuilder {
				usage, _ := c.Get("usage").(int)
				switch {
				case usage >= 95:
					return c.Fault(fmt.Sprintf("disk usage critical at %d%%", usage), health.WithCompareString("disk-critical"))
				case usage >= 85:
					b := c.Fault(fmt.Sprintf("disk usage elevated at %d%%", usage), health.WithCompareString("disk-elevated"))
					return b.TurnOffAxes(health.DegradedComplete)
				case usage >= 70:
					b := c.Fault(fmt.Sprintf("disk usage climbing at %d%%", usage), health.WithCompareString("disk-climbing"))
					return b.TurnOffAxes(health.DegradedComplete, health.DegradedPartial)
				default:
					return c.Ok(fmt.Sprintf("disk usage nominal at %d%%", usage))
				}
			},
		)
	})
	if err != nil {
		log.Printf("failed to register disk-space check: %v", err)
	}
}

// simulatedDiskUsagePercent stands in for a real gopsutil disk.Usage call;
// kept deterministic-ish but varying so the demonstration check visibly
// changes state across runs.
func simulatedDiskUsagePercent() int {
	return 40 + rand.Intn(55)
}

// wireMetrics subscribes to the registry's status-change stream and records
// each change against the metrics collector.
func wireMetrics(registry *health.Registry, m *metrics.Metrics, service string) {
	if m == nil {
		return
	}
	m.SetServiceInfo(service, health.ReportDTOVersion)
	registry.SubscribeToStatusChanges(func(name string, result *health.CheckResult) {
		m.RecordCheckExecution(service, name, result.RunningTime, result.Ok())
		for axis, active := range result.AggregatedAxes {
			m.SetCheckAxisActivated(service, name, string(axis), active)
		}
	})
}
