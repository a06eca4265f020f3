// Package appconfig holds the configuration shared by the MCP app commands.
package appconfig

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/RobinCoderZhao/mcp-apps/pkg/config"
	"github.com/RobinCoderZhao/mcp-apps/pkg/storage"
)

// Transports accepted by ServerConfig.Transport.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// Config is the root configuration of an app command.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database storage.Config `yaml:"database"`
	Widget   WidgetConfig   `yaml:"widget"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig configures the MCP transport.
type ServerConfig struct {
	Transport  string        `yaml:"transport" env:"MCP_TRANSPORT"`
	Addr       string        `yaml:"addr" env:"MCP_ADDR"`
	Port       int           `yaml:"port" env:"PORT"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"MCP_SESSION_TTL"`
	KeepAlive  time.Duration `yaml:"keep_alive" env:"MCP_SSE_KEEPALIVE"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// WidgetConfig configures the display surfaces rendered by clients.
type WidgetConfig struct {
	WebAppURL        string   `yaml:"web_app_url" env:"WEB_APP_URL"`
	ExtraCSPDomains  []string `yaml:"extra_csp_domains" env:"WIDGET_CSP_DOMAINS"`
	TimeZone         string   `yaml:"time_zone" env:"DISPLAY_TIME_ZONE"`
	GoogleMapsAPIKey string   `yaml:"google_maps_api_key" env:"GOOGLE_MAPS_API_KEY"`
}

// MetricsConfig toggles the Prometheus endpoint on HTTP transports.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" env:"METRICS_PATH"`
}

// NotifyConfig configures booking notifications. Empty values disable the
// channel.
type NotifyConfig struct {
	WebhookURL       string `yaml:"webhook_url" env:"BOOKING_WEBHOOK_URL"`
	WebhookSecret    string `yaml:"webhook_secret" env:"BOOKING_WEBHOOK_SECRET"`
	TelegramBotToken string `yaml:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `yaml:"telegram_chat_id" env:"TELEGRAM_CHAT_ID"`
}

// Enabled reports whether any channel is configured.
func (n NotifyConfig) Enabled() bool {
	return n.WebhookURL != "" || (n.TelegramBotToken != "" && n.TelegramChatID != "")
}

// Default returns the defaults used when no file or variable overrides them.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Transport:  TransportStdio,
			Port:       8787,
			BaseURL:    "http://localhost:8787",
			SessionTTL: 30 * time.Minute,
			KeepAlive:  25 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Database: storage.Config{
			Driver: "memory",
		},
		Widget: WidgetConfig{
			WebAppURL: "http://localhost:5173",
			TimeZone:  "America/Sao_Paulo",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads path over the defaults, then applies env overrides. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := config.LoadOrDefault(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP, TransportSSE:
	default:
		return fmt.Errorf("unsupported transport %q", c.Server.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.KeepAlive <= 0 {
		return fmt.Errorf("invalid keep-alive interval %s", c.Server.KeepAlive)
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("invalid session ttl %s", c.Server.SessionTTL)
	}
	if _, err := time.LoadLocation(c.Widget.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Widget.TimeZone, err)
	}
	return nil
}

// ListenAddr returns Addr, or ":<Port>" when Addr is empty.
func (s ServerConfig) ListenAddr() string {
	if s.Addr != "" {
		return s.Addr
	}
	return fmt.Sprintf(":%d", s.Port)
}

// Location returns the display time zone.
func (w WidgetConfig) Location() *time.Location {
	loc, err := time.LoadLocation(w.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
