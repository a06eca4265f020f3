// Package apprun bootstraps an app command: environment, configuration,
// logger, metrics and the selected MCP transport.
package apprun

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/RobinCoderZhao/mcp-apps/internal/appconfig"
	"github.com/RobinCoderZhao/mcp-apps/internal/observability/metrics"
	"github.com/RobinCoderZhao/mcp-apps/pkg/config"
	"github.com/RobinCoderZhao/mcp-apps/pkg/logging"
	"github.com/RobinCoderZhao/mcp-apps/pkg/mcpserver"
)

// Flags are the serve command overrides. Empty values keep the config.
type Flags struct {
	ConfigPath string
	Transport  string
	Addr       string
	EnvFiles   []string
}

// Env is a loaded configuration with its logger and metrics registry.
type Env struct {
	Config   appconfig.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry
}

// Load reads .env files, the config file and the flag overrides.
func Load(f Flags) (*Env, error) {
	if err := config.LoadDotEnv(f.EnvFiles...); err != nil {
		return nil, err
	}
	cfg, err := appconfig.Load(f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f.Transport != "" {
		cfg.Server.Transport = f.Transport
	}
	if f.Addr != "" {
		cfg.Server.Addr = f.Addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Env{
		Config:   cfg,
		Logger:   logging.New(cfg.Log.Level),
		Registry: reg,
	}, nil
}

// NewServer creates an MCP server with the logging, recovery and metrics
// middleware installed.
func (e *Env) NewServer(name, version string) *mcpserver.Server {
	logger := e.Logger.Logger
	s := mcpserver.New(name, version,
		mcpserver.WithLogger(logger),
		mcpserver.WithSessionTTL(e.Config.Server.SessionTTL),
	)
	s.Use(mcpserver.RecoveryMiddleware(logger))
	s.Use(mcpserver.LoggingMiddleware(logger))
	s.UseTool(mcpserver.ToolLoggingMiddleware(logger))
	s.UseTool(metrics.NewToolMetrics(e.Registry, name).Middleware())
	return s
}

// Serve runs s on the configured transport until ctx is done. routes are
// mounted as extra GET handlers on HTTP transports.
func (e *Env) Serve(ctx context.Context, s *mcpserver.Server, routes map[string]http.Handler) error {
	srv := e.Config.Server
	logger := e.Logger.Logger

	if srv.Transport == appconfig.TransportStdio {
		logger.Info("serving on stdio", "server", s.Name())
		return s.RunStdio(ctx)
	}

	opts := []mcpserver.HTTPOption{mcpserver.WithKeepAlive(srv.KeepAlive)}
	if srv.Transport == appconfig.TransportSSE {
		opts = append(opts, mcpserver.WithSSE())
	}
	if e.Config.Metrics.Enabled {
		opts = append(opts, mcpserver.WithRoute(e.Config.Metrics.Path, metrics.Handler(e.Registry)))
	}
	for pattern, h := range routes {
		opts = append(opts, mcpserver.WithRoute(pattern, h))
	}

	logger.Info("serving on http",
		slog.String("server", s.Name()),
		slog.String("addr", srv.ListenAddr()),
		slog.String("transport", srv.Transport),
		slog.String("base_url", srv.BaseURL),
	)
	return s.RunHTTP(ctx, srv.ListenAddr(), opts...)
}
