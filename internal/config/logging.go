package config

import logx "pushfan/pkg/logx"

// LogConfig maps the logging section onto logx. debug forces level "debug".
func (c *Config) LogConfig(debug bool) logx.Config {
	out := logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    c.Logging.Telegram.Enabled,
			MinLevel:   c.Logging.Telegram.MinLevel,
			RatePerSec: c.Logging.Telegram.RatePerSec,
		},
	}
	if debug {
		out.Level = "debug"
	}
	if c.Telegram != nil {
		out.Telegram.ChatID = c.Telegram.ChatID
		out.Telegram.ThreadID = c.Telegram.ThreadID
	}
	return out
}
