package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pushfan/internal/config"
	"pushfan/internal/storage"
	"pushfan/internal/transport/telegram"
	logx "pushfan/pkg/logx"
)

// Options are command-line overrides applied on top of the config file.
// Zero values leave the file's setting alone.
type Options struct {
	ConfigPath string
	Debug      bool
	DBPath     string
	Port       int
}

// App holds what both commands share: config, logging and the subscriber store.
type App struct {
	opts Options

	cfgm  *config.Manager
	cfg   *config.Config
	logs  *logx.Service
	log   logx.Logger
	store storage.Store
}

// New loads config, starts logging and opens the store.
func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, opts)
	cfgm.Commit(cfg)

	// The Telegram sink needs a bot; without a token it stays off.
	var sender logx.Sender
	if cfg.Telegram != nil && strings.TrimSpace(cfg.Telegram.Token) != "" {
		tg, err := telegram.New(cfg.Telegram.Token, 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		sender = tg
	}
	logs, log := logx.New(cfg.LogConfig(opts.Debug), sender)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Debug("store opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	return &App{opts: opts, cfgm: cfgm, cfg: cfg, logs: logs, log: log, store: store}, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if p := strings.TrimSpace(opts.DBPath); p != "" {
		cfg.Storage.Path = p
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.Debug {
		cfg.Logging.Level = "debug"
	}
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Store() storage.Store { return a.store }

// Close releases the store, then flushes logging.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
