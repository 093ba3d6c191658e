package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dolsel/livetv/pkg/logger"
)

const (
	defaultPort          = 8080
	defaultDBPath        = "./.chatdb"
	defaultMaxBodySize   = 1 * 1024 * 1024
	defaultCacheSize     = 64 * 1024 * 1024
	defaultReadTimeout   = 10 * time.Second
	defaultWriteTimeout  = 10 * time.Second
	defaultIdleTimeout   = 60 * time.Second
	defaultWindowLimit   = 50
	defaultWindowMax     = 200
	defaultRPS           = 5
	defaultBurst         = 10
	defaultSnapshotCron  = "0 3 * * *"
	defaultSnapshotKeep  = 7
	defaultChannelPoll   = 3 * time.Second
	defaultThreadPoll    = 2 * time.Second
	defaultPollFailures  = 5
	defaultPollBackoff   = 500 * time.Millisecond
	defaultPollBackoffUp = 10 * time.Second
)

// Overrides are the command-line values that win over file and env.
// Empty fields are ignored.
type Overrides struct {
	Addr     string
	DBPath   string
	LogLevel string
}

// LoadFile reads a YAML config. A missing file yields an empty config and found=false.
func LoadFile(path string) (*Config, bool, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) == "" {
		return cfg, false, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, false, nil
		}
		return nil, false, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, true, nil
}

// Load builds the effective config: file, then CHATDB_* env, then
// overrides, then defaults. The result is validated.
func Load(path string, ov Overrides) (*Config, error) {
	cfg, found, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := ov.apply(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !found && path != "" {
		logger.Debug("config_file_missing", "path", path)
	}
	return cfg, nil
}

func (ov Overrides) apply(cfg *Config) error {
	if ov.Addr != "" {
		host, portStr, err := net.SplitHostPort(ov.Addr)
		if err != nil {
			return fmt.Errorf("invalid addr %q: %w", ov.Addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid port in addr %q", ov.Addr)
		}
		cfg.Server.Address = host
		cfg.Server.Port = port
	}
	if ov.DBPath != "" {
		cfg.Storage.DBPath = ov.DBPath
	}
	if ov.LogLevel != "" {
		cfg.Logging.Level = ov.LogLevel
	}
	return nil
}

// ApplyDefaults fills every zero field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(defaultReadTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(defaultIdleTimeout)
	}
	if c.Server.MaxBodySize == 0 {
		c.Server.MaxBodySize = defaultMaxBodySize
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = defaultDBPath
	}
	if c.Storage.CacheSize == 0 {
		c.Storage.CacheSize = defaultCacheSize
	}
	if c.Window.DefaultLimit == 0 {
		c.Window.DefaultLimit = defaultWindowLimit
	}
	if c.Window.MaxLimit == 0 {
		c.Window.MaxLimit = defaultWindowMax
	}
	if c.Security.RateLimit.RPS == 0 {
		c.Security.RateLimit.RPS = defaultRPS
	}
	if c.Security.RateLimit.Burst == 0 {
		c.Security.RateLimit.Burst = defaultBurst
	}
	if c.Snapshot.Cron == "" {
		c.Snapshot.Cron = defaultSnapshotCron
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = c.Storage.DBPath + "-snapshots"
	}
	if c.Snapshot.Keep == 0 {
		c.Snapshot.Keep = defaultSnapshotKeep
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Sink == "" {
		c.Logging.Sink = "stdout"
	}
	if c.Poller.ChannelInterval == 0 {
		c.Poller.ChannelInterval = Duration(defaultChannelPoll)
	}
	if c.Poller.ThreadInterval == 0 {
		c.Poller.ThreadInterval = Duration(defaultThreadPoll)
	}
	if c.Poller.MaxFailures == 0 {
		c.Poller.MaxFailures = defaultPollFailures
	}
	if c.Poller.Backoff == 0 {
		c.Poller.Backoff = Duration(defaultPollBackoff)
	}
	if c.Poller.MaxBackoff == 0 {
		c.Poller.MaxBackoff = Duration(defaultPollBackoffUp)
	}
}

// Validate checks cross-field constraints after defaults are applied.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Window.DefaultLimit < 0 || c.Window.MaxLimit < 0 {
		errs = append(errs, errors.New("window limits must not be negative"))
	}
	if c.Window.DefaultLimit > c.Window.MaxLimit {
		errs = append(errs, fmt.Errorf("window.default_limit %d exceeds window.max_limit %d", c.Window.DefaultLimit, c.Window.MaxLimit))
	}
	if c.Security.RateLimit.RPS < 0 || c.Security.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("security.rate_limit values must not be negative"))
	}
	if c.Snapshot.Keep < 0 {
		errs = append(errs, errors.New("snapshot.keep must not be negative"))
	}
	if c.Snapshot.Enabled && !gronx.New().IsValid(c.Snapshot.Cron) {
		errs = append(errs, fmt.Errorf("snapshot.cron is not a valid cron expression: %q", c.Snapshot.Cron))
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Poller.MaxFailures < 0 {
		errs = append(errs, errors.New("poller.max_failures must not be negative"))
	}
	for i, u := range c.Directory.Users {
		if strings.TrimSpace(u.UserID) == "" {
			errs = append(errs, fmt.Errorf("directory.users[%d]: user_id is required", i))
		}
	}
	for i, ch := range c.Directory.Channels {
		if strings.TrimSpace(ch.ChannelID) == "" {
			errs = append(errs, fmt.Errorf("directory.channels[%d]: channel_id is required", i))
		}
	}
	return errors.Join(errs...)
}

// Addr returns host:port for the listener, defaulting the host to 0.0.0.0.
func (c *Config) Addr() string {
	host := c.Server.Address
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

// Summary renders the effective config for the startup banner. Keys are counted, never printed.
func (c *Config) Summary() []string {
	return []string{
		"listen: " + c.Addr(),
		"db_path: " + c.Storage.DBPath,
		"cache_size: " + c.Storage.CacheSize.String(),
		fmt.Sprintf("sync_writes: %t", c.Storage.SyncWrites()),
		fmt.Sprintf("window: default=%d max=%d", c.Window.DefaultLimit, c.Window.MaxLimit),
		fmt.Sprintf("api_keys: backend=%d frontend=%d admin=%d", len(c.Security.APIKeys.Backend), len(c.Security.APIKeys.Frontend), len(c.Security.APIKeys.Admin)),
		fmt.Sprintf("allow_unauth: %t", c.Security.AllowUnauth),
		fmt.Sprintf("rate_limit: rps=%g burst=%d", c.Security.RateLimit.RPS, c.Security.RateLimit.Burst),
		fmt.Sprintf("directory_seed: users=%d channels=%d", len(c.Directory.Users), len(c.Directory.Channels)),
		fmt.Sprintf("snapshot: enabled=%t cron=%q keep=%d", c.Snapshot.Enabled, c.Snapshot.Cron, c.Snapshot.Keep),
		"log_level: " + c.Logging.Level,
	}
}
