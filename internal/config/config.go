// Package config provides configuration loading for orctasks.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete orctasks configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Gateway       GatewayConfig       `koanf:"gateway"`
	Database      DatabaseConfig      `koanf:"database"`
	Identity      IdentityConfig      `koanf:"identity"`
	Events        EventsConfig        `koanf:"events"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RequestTimeout  Duration `koanf:"request_timeout"`
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit    float64 `koanf:"rate_limit"`
	MaxBodyBytes int64   `koanf:"max_body_bytes"`
}

// GatewayConfig controls the JSON-RPC gateway and the discovery documents.
type GatewayConfig struct {
	Prefix  string `koanf:"prefix"`
	BaseURL string `koanf:"base_url"`
	Realm   string `koanf:"realm"`
}

// DatabaseConfig locates the SQLite ledger.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// IdentityConfig holds the path markers used to infer agent roles.
type IdentityConfig struct {
	OrchestratorMarker string `koanf:"orchestrator_marker"`
	WorktreesMarker    string `koanf:"worktrees_marker"`
}

// EventsConfig enables history event publishing. Empty NATSURL disables it.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
	Token         Secret `koanf:"token"`
}

// LoggingConfig is the subset of logging settings exposed in the file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"`
	Insecure        bool   `koanf:"insecure"`
	TLSSkipVerify   bool   `koanf:"tls_skip_verify"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 6970
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}

	if cfg.Gateway.Prefix == "" {
		cfg.Gateway.Prefix = "/mcp"
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "http://localhost:6970"
	}
	if cfg.Gateway.Realm == "" {
		cfg.Gateway.Realm = "MCP"
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "~/.local/share/orctasks/orctasks.db"
	}

	if cfg.Identity.OrchestratorMarker == "" {
		cfg.Identity.OrchestratorMarker = "orc"
	}
	if cfg.Identity.WorktreesMarker == "" {
		cfg.Identity.WorktreesMarker = "worktrees"
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "orc.tasks"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "orctasks"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.http_port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must be >= 0")
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, "server.max_body_bytes must be >= 0")
	}
	if !strings.HasPrefix(c.Gateway.Prefix, "/") || strings.HasSuffix(c.Gateway.Prefix, "/") {
		errs = append(errs, fmt.Sprintf("gateway.prefix must start with '/' and not end with '/', got %q", c.Gateway.Prefix))
	}
	if u, err := url.Parse(c.Gateway.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("gateway.base_url must be an absolute URL, got %q", c.Gateway.BaseURL))
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if strings.ContainsRune(c.Identity.OrchestratorMarker, '/') || strings.ContainsRune(c.Identity.WorktreesMarker, '/') {
		errs = append(errs, "identity markers must be single path segments")
	}
	if c.Observability.Protocol != "grpc" && c.Observability.Protocol != "http/protobuf" {
		errs = append(errs, fmt.Sprintf("observability.protocol must be grpc or http/protobuf, got %q", c.Observability.Protocol))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
