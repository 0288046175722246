package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medbot/rounds/api"
	"github.com/medbot/rounds/config"
	"github.com/medbot/rounds/core/alerts"
	"github.com/medbot/rounds/core/assignment"
	"github.com/medbot/rounds/core/directory"
	"github.com/medbot/rounds/core/dispatch"
	"github.com/medbot/rounds/core/dispatch/logging"
	"github.com/medbot/rounds/core/fanout"
	coremetrics "github.com/medbot/rounds/core/metrics"
	"github.com/medbot/rounds/core/monitoring"
	"github.com/medbot/rounds/core/scheduler"
	"github.com/medbot/rounds/core/telemetry"
	"github.com/medbot/rounds/core/vitals"
	"github.com/medbot/rounds/infra/cron"
	"github.com/medbot/rounds/infra/lock"
	"github.com/medbot/rounds/infra/logger"
	"github.com/medbot/rounds/infra/metrics"
	infmon "github.com/medbot/rounds/infra/monitoring"
	"github.com/medbot/rounds/infra/mqtt"
	"github.com/medbot/rounds/infra/sqlstore"
	inftel "github.com/medbot/rounds/infra/telemetry"
	"github.com/medbot/rounds/internal/eventbus"
)

// Cron job names.
const (
	JobTrigger = "trigger"
	JobSweep   = "sweep"
)

// Service wires the scheduling core to its store, the fan-out hub, the cron
// driver, telemetry ingestion and the HTTP API.
type Service struct {
	Store     *sqlstore.Store
	Hub       *fanout.Hub
	Trigger   *scheduler.Trigger
	Sweeper   *scheduler.Sweeper
	Registry  *scheduler.Registry
	Telemetry *telemetry.Service

	cfg       *config.Config
	log       logger.Logger
	loc       *time.Location
	closeLock func() error
	planLog   logging.LogStore
	sink      coremetrics.MetricsSink
	samples   *eventbus.TypedBus[coremetrics.TelemetrySample]
	cron      *cron.Driver
	ingest    *inftel.Manager
	server    *api.Server
}

// New creates a Service from the configuration. Nothing runs until Run.
func New(cfg *config.Config) (svc *Service, err error) {
	ctx := context.Background()
	logg := logger.New("service")

	mon, err := infmon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(mon)

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, log: logg, loc: loc}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.Store, err = sqlstore.Open(ctx, cfg.Store); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	locker, closeLock, err := lock.New(ctx, cfg.Lock)
	if err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}
	s.closeLock = closeLock

	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	hubOpts := []fanout.HubOption{
		fanout.WithBuffer(cfg.Fanout.Buffer),
		fanout.WithHubMetrics(s.sink),
		fanout.WithHubLogger(logger.New("fanout")),
	}
	if cfg.MQTT.Enabled() {
		backbone, err := mqtt.NewBackbone(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt backbone: %w", err)
		}
		hubOpts = append(hubOpts, fanout.WithBackbone(backbone))
	}
	s.Hub = fanout.NewHub(hubOpts...)

	if cfg.Logging.Enabled() {
		if s.planLog, err = logging.Open(cfg.Logging.Options()); err != nil {
			return nil, fmt.Errorf("plan log: %w", err)
		}
	}

	s.samples = eventbus.NewTyped[coremetrics.TelemetrySample](cfg.Telemetry.SampleBuffer)
	dir := directory.New(s.Store, logger.New("directory"))
	s.Telemetry = telemetry.NewService(s.Hub, dir,
		telemetry.WithSamples(s.samples),
		telemetry.WithLogger(logger.New("telemetry")),
	)
	s.Registry = scheduler.NewRegistry(s.Store, logger.New("registry"))

	trigOpts := []scheduler.Option{
		scheduler.WithMetrics(s.sink),
		scheduler.WithLogger(logger.New("trigger")),
		scheduler.WithLocation(loc),
		scheduler.WithRetry(cfg.Scheduler.TriggerPolicy()),
		scheduler.WithBatchTimeout(cfg.Scheduler.BatchTimeout()),
	}
	if s.planLog != nil {
		trigOpts = append(trigOpts, scheduler.WithPlanLog(s.planLog))
	}
	s.Trigger = scheduler.NewTrigger(locker, s.Store, dispatch.NewBuilder(s.Store), s.Hub, trigOpts...)
	s.Sweeper = scheduler.NewSweeper(s.Store, cfg.Scheduler.SweepPolicy(), logger.New("sweeper"))

	s.cron = cron.New(loc, logger.New("cron"))
	// Cycles may overlap while one retries; the minute lock keeps them apart.
	if err := s.cron.Add(JobTrigger, cfg.Scheduler.TriggerSpec, s.Trigger.Tick, cron.Overlapping()); err != nil {
		return nil, err
	}
	if err := s.cron.Add(JobSweep, cfg.Scheduler.SweepSpec, s.Sweeper.Tick); err != nil {
		return nil, err
	}

	if cfg.Telemetry.Enabled && cfg.MQTT.Enabled() {
		s.ingest, err = inftel.NewManager(cfg.MQTT, cfg.Telemetry, s.Telemetry, prometheus.DefaultRegisterer, logger.New("telemetry-ingest"))
		if err != nil {
			return nil, fmt.Errorf("telemetry ingest: %w", err)
		}
	}

	router := api.NewRouter(cfg.API, api.Deps{
		Registry:   s.Registry,
		Assignment: assignment.New(s.Store, logger.New("assignment")),
		Directory:  dir,
		Telemetry:  s.Telemetry,
		Alerts:     alerts.New(s.Store, s.Hub, logger.New("alerts")),
		Vitals:     vitals.New(s.Store, s.Hub, logger.New("vitals")),
		Hub:        s.Hub,
		Plans:      s.planLog,
		Metrics:    promhttp.Handler(),
		Logger:     logger.New("api"),
	})
	s.server = api.NewServer(cfg.API, router, logger.New("api"))
	return s, nil
}

// Run starts every component and blocks until the context is cancelled or
// the API server fails.
func (s *Service) Run(ctx context.Context) error {
	defer monitoring.Recover()
	if err := s.Hub.Start(ctx); err != nil {
		return fmt.Errorf("fanout backbone: %w", err)
	}
	metrics.StartTelemetryCollector(ctx, s.samples, s.sink)
	if s.ingest != nil {
		go s.ingest.Start(ctx)
	}
	s.cron.Start(ctx)
	s.log.Infof("next trigger at %s, next sweep at %s",
		s.cron.Next(JobTrigger).Format(time.RFC3339), s.cron.Next(JobSweep).Format(time.RFC3339))

	err := s.server.Run(ctx)
	if err != nil {
		monitoring.CaptureException(err, map[string]string{"component": "api"})
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Scheduler.BatchTimeout()+5*time.Second)
	defer cancel()
	if stopErr := s.cron.Stop(stopCtx); stopErr != nil {
		s.log.Warnf("cron stop: %v", stopErr)
	}
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Hub != nil {
		errs = append(errs, s.Hub.Close())
	}
	if s.samples != nil {
		s.samples.Close()
	}
	if s.planLog != nil {
		errs = append(errs, s.planLog.Close())
	}
	if s.sink != nil {
		coremetrics.CloseSink(s.sink)
	}
	if s.closeLock != nil {
		errs = append(errs, s.closeLock())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	monitoring.Flush(2 * time.Second)
	return errors.Join(errs...)
}
