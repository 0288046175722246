// Package api exposes the scheduling core over HTTP and websockets. Every
// JSON response uses the {status, message, data} envelope.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medbot/rounds/core/alerts"
	"github.com/medbot/rounds/core/assignment"
	"github.com/medbot/rounds/core/directory"
	"github.com/medbot/rounds/core/dispatch/logging"
	"github.com/medbot/rounds/core/fanout"
	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/scheduler"
	"github.com/medbot/rounds/core/telemetry"
	"github.com/medbot/rounds/core/vitals"
)

// Config configures the HTTP listener.
type Config struct {
	Addr string `json:"addr"`
	// Mode is the gin mode: "release", "debug" or "test".
	Mode            string `json:"mode"`
	ShutdownSeconds int    `json:"shutdown_seconds"`
	// PlanLogToken protects the plan log endpoint when set.
	PlanLogToken string `json:"plan_log_token"`
	// WSRate and WSBurst limit inbound websocket messages per connection.
	WSRate  float64 `json:"ws_rate"`
	WSBurst int     `json:"ws_burst"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.Mode == "" {
		c.Mode = gin.ReleaseMode
	}
	if c.ShutdownSeconds <= 0 {
		c.ShutdownSeconds = 10
	}
	if c.WSRate <= 0 {
		c.WSRate = 5
	}
	if c.WSBurst <= 0 {
		c.WSBurst = 10
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case gin.ReleaseMode, gin.DebugMode, gin.TestMode:
	default:
		return fmt.Errorf("api.mode must be release, debug or test, got %q", c.Mode)
	}
	if c.WSBurst < 1 {
		return errors.New("api.ws_burst must be positive")
	}
	return nil
}

// Deps are the services behind the routes. Vitals, Plans and Metrics are
// optional.
type Deps struct {
	Registry   *scheduler.Registry
	Assignment *assignment.Service
	Directory  *directory.Service
	Telemetry  *telemetry.Service
	Alerts     *alerts.Service
	Vitals     *vitals.Service
	Hub        *fanout.Hub
	Plans      logging.LogStore
	Metrics    http.Handler
	Logger     logger.Logger
	Now        func() time.Time
}

type handlers struct {
	Deps
	cfg Config
	log logger.Logger
}

// NewRouter registers every route on a new gin engine.
func NewRouter(cfg Config, d Deps) *gin.Engine {
	cfg.SetDefaults()
	gin.SetMode(cfg.Mode)
	useJSONFieldNames()
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{Deps: d, cfg: cfg, log: logger.OrNop(d.Logger)}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog)

	r.GET("/healthz", func(c *gin.Context) { ok(c, http.StatusOK, "ok", nil) })
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	r.GET("/ws/socket-server/:group/", h.socket)
	r.GET("/ws/socket-server/:group", h.socket)

	base := r.Group("/api/medicalbot")
	h.scheduleRoutes(base.Group("/schedule"))
	h.directoryRoutes(base.Group("/bed/data"))
	h.patientRoutes(base.Group("/main"))
	h.robotRoutes(base.Group("/robot_management"))
	if d.Vitals != nil {
		h.vitalsRoutes(base.Group("/vitals_management"))
	}
	if d.Plans != nil {
		base.GET("/dispatch/logs/", h.requireToken, h.planLogs)
	}
	return r
}

func (h *handlers) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	if len(c.Errors) > 0 {
		h.log.Errorf("%s %s: %s", c.Request.Method, c.Request.URL.Path, c.Errors.String())
		return
	}
	h.log.Debugw("http request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.FullPath(),
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// Server runs the router until its context is cancelled.
type Server struct {
	srv     *http.Server
	timeout time.Duration
	log     logger.Logger
}

// NewServer wraps handler in an HTTP server listening on cfg.Addr.
func NewServer(cfg Config, handler http.Handler, log logger.Logger) *Server {
	cfg.SetDefaults()
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		timeout: time.Duration(cfg.ShutdownSeconds) * time.Second,
		log:     logger.OrNop(log),
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("api listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}
