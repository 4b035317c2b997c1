package config

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPath is read when no --config is given. A missing default file is not an error.
const DefaultPath = "push_server.yaml"

type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Storage  StorageConfig   `json:"storage"`
	Dispatch DispatchConfig  `json:"dispatch"`
	WebPush  WebPushConfig   `json:"webpush"`
	Server   ServerConfig    `json:"server"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the subscriber store.
//
// Example:
//
//	storage: { driver: sqlite, path: ./users.db }
//	storage: { driver: postgres, dsn: "postgres://..." }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	DSN         string `json:"dsn,omitempty"`          // postgres only (do not log)
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DispatchConfig holds defaults for a dispatch run. CLI flags override them.
//
// Defaults (when fields are omitted/zero):
//   - ttl: 300 (an explicit 0 is kept)
//   - concurrency: 16
//   - rate_per_sec: 0 (unlimited)
//   - timeout: "30s"
type DispatchConfig struct {
	TTL         *int   `json:"ttl,omitempty"`
	Topic       string `json:"topic,omitempty"`
	Urgency     string `json:"urgency,omitempty"`
	Concurrency int    `json:"concurrency,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	// Schedule repeats the dispatch (cron like "*/5 * * * *" or interval like "10m").
	Schedule string `json:"schedule,omitempty"`
}

// WebPushConfig carries VAPID credentials. Keys are base64url, as produced by
// webpush.GenerateVAPIDKeys.
type WebPushConfig struct {
	Subscriber      string `json:"subscriber"`
	VAPIDPublicKey  string `json:"vapid_public_key"`
	VAPIDPrivateKey string `json:"vapid_private_key"` // do not log
	RecordSize      int    `json:"record_size,omitempty"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// PageDir overrides the embedded index page and /i/ assets.
	PageDir      string `json:"page_dir,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"` // do not log
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// TTLSeconds is the configured TTL, or 300 when unset.
func (d DispatchConfig) TTLSeconds() int {
	if d.TTL == nil {
		return 300
	}
	return *d.TTL
}

func (d DispatchConfig) equal(o DispatchConfig) bool {
	if d.TTLSeconds() != o.TTLSeconds() {
		return false
	}
	d.TTL, o.TTL = nil, nil
	return d == o
}

func intPtr(v int) *int { return &v }

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "sqlite", Path: "users.db"},
		Dispatch: DispatchConfig{
			TTL:         intPtr(300),
			Concurrency: 16,
			Timeout:     "30s",
		},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8200},
	}
}

// ApplyDefaults fills zero values with Default() values.
func (c *Config) ApplyDefaults() {
	d := Default()
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = d.Logging.Level
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Dispatch.TTL == nil {
		c.Dispatch.TTL = intPtr(*d.Dispatch.TTL)
	}
	if c.Dispatch.Concurrency <= 0 {
		c.Dispatch.Concurrency = d.Dispatch.Concurrency
	}
	if strings.TrimSpace(c.Dispatch.Timeout) == "" {
		c.Dispatch.Timeout = d.Dispatch.Timeout
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
}

// Validate checks field ranges and duration strings.
func (c *Config) Validate() error {
	if c.Dispatch.TTL != nil && *c.Dispatch.TTL < 0 {
		return fmt.Errorf("dispatch.ttl must be >= 0")
	}
	if c.Dispatch.RatePerSec < 0 {
		return fmt.Errorf("dispatch.rate_per_sec must be >= 0")
	}
	if _, err := ParseDurationField("dispatch.timeout", c.Dispatch.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	for path, raw := range map[string]string{
		"server.read_timeout":  c.Server.ReadTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
		"server.idle_timeout":  c.Server.IdleTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "sqlite", "sqlite3", "file":
	case "postgres", "pgx":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Logging.Telegram.Enabled && (c.Telegram == nil || strings.TrimSpace(c.Telegram.Token) == "") {
		return fmt.Errorf("logging.telegram.enabled requires telegram.token")
	}
	return nil
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
