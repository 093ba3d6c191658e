package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/dolsel/livetv/pkg/models"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Window    WindowConfig    `yaml:"window"`
	Security  SecurityConfig  `yaml:"security"`
	Directory DirectoryConfig `yaml:"directory"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Logging   LoggingConfig   `yaml:"logging"`
	Poller    PollerConfig    `yaml:"poller"`
}

type ServerConfig struct {
	Address      string    `yaml:"address" env:"CHATDB_SERVER_ADDRESS"`
	Port         int       `yaml:"port" env:"CHATDB_SERVER_PORT"`
	ReadTimeout  Duration  `yaml:"read_timeout" env:"CHATDB_SERVER_READ_TIMEOUT"`
	WriteTimeout Duration  `yaml:"write_timeout" env:"CHATDB_SERVER_WRITE_TIMEOUT"`
	IdleTimeout  Duration  `yaml:"idle_timeout" env:"CHATDB_SERVER_IDLE_TIMEOUT"`
	MaxBodySize  SizeBytes `yaml:"max_body_size" env:"CHATDB_SERVER_MAX_BODY_SIZE"`
}

type StorageConfig struct {
	DBPath    string    `yaml:"db_path" env:"CHATDB_DB_PATH"`
	CacheSize SizeBytes `yaml:"cache_size" env:"CHATDB_CACHE_SIZE"`
	// Sync forces an fsync on every committed batch.
	Sync *bool `yaml:"sync" env:"CHATDB_SYNC_WRITES"`
}

// SyncWrites reports the effective sync setting (default true).
func (s StorageConfig) SyncWrites() bool {
	return s.Sync == nil || *s.Sync
}

// WindowConfig bounds the message windows returned by list operations.
type WindowConfig struct {
	DefaultLimit int `yaml:"default_limit" env:"CHATDB_WINDOW_DEFAULT_LIMIT"`
	MaxLimit     int `yaml:"max_limit" env:"CHATDB_WINDOW_MAX_LIMIT"`
}

type SecurityConfig struct {
	AllowUnauth bool `yaml:"allow_unauth" env:"CHATDB_ALLOW_UNAUTH"`
	CORS        struct {
		AllowedOrigins []string `yaml:"allowed_origins" env:"CHATDB_CORS_ORIGINS"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps" env:"CHATDB_RATE_RPS"`
		Burst int     `yaml:"burst" env:"CHATDB_RATE_BURST"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist" env:"CHATDB_IP_WHITELIST"`
	APIKeys     struct {
		Backend  []string `yaml:"backend" env:"CHATDB_API_BACKEND_KEYS"`
		Frontend []string `yaml:"frontend" env:"CHATDB_API_FRONTEND_KEYS"`
		Admin    []string `yaml:"admin" env:"CHATDB_API_ADMIN_KEYS"`
	} `yaml:"api_keys"`
}

// DirectoryConfig seeds the identity and channel replica at startup.
type DirectoryConfig struct {
	Users    []models.Identity `yaml:"users"`
	Channels []models.Channel  `yaml:"channels"`
}

type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled" env:"CHATDB_SNAPSHOT_ENABLED"`
	Cron    string `yaml:"cron" env:"CHATDB_SNAPSHOT_CRON"`
	Dir     string `yaml:"dir" env:"CHATDB_SNAPSHOT_DIR"`
	Keep    int    `yaml:"keep" env:"CHATDB_SNAPSHOT_KEEP"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"CHATDB_LOG_LEVEL"`
	Format string `yaml:"format" env:"CHATDB_LOG_FORMAT"`
	Sink   string `yaml:"sink" env:"CHATDB_LOG_SINK"`
}

// PollerConfig drives the tail client.
type PollerConfig struct {
	ChannelInterval Duration `yaml:"channel_interval" env:"CHATDB_POLL_CHANNEL_INTERVAL"`
	ThreadInterval  Duration `yaml:"thread_interval" env:"CHATDB_POLL_THREAD_INTERVAL"`
	MaxFailures     int      `yaml:"max_failures" env:"CHATDB_POLL_MAX_FAILURES"`
	Backoff         Duration `yaml:"backoff" env:"CHATDB_POLL_BACKOFF"`
	MaxBackoff      Duration `yaml:"max_backoff" env:"CHATDB_POLL_MAX_BACKOFF"`
}

// SizeBytes parses human sizes such as "64MB" or plain byte counts.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	return s.UnmarshalText([]byte(node.Value))
}

// UnmarshalText lets the env overlay share the YAML parsing rules.
func (s *SizeBytes) UnmarshalText(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// Duration accepts "100ms" style strings or plain numbers of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = 0
		return nil
	}
	return d.UnmarshalText([]byte(node.Value))
}

func (d *Duration) UnmarshalText(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" {
		*d = 0
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", raw)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
