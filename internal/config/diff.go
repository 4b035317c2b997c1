package config

import (
	"reflect"
	"strings"

	logx "pushfan/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured fields for logging. Secrets (DSN, VAPID private key, bot token)
// are only reported as "set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage.Driver != newCfg.Storage.Driver ||
		strings.TrimSpace(oldCfg.Storage.Path) != strings.TrimSpace(newCfg.Storage.Path) ||
		oldCfg.Storage.DSN != newCfg.Storage.DSN ||
		oldCfg.Storage.BusyTimeout != newCfg.Storage.BusyTimeout {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
			logx.Bool("storage.dsn_set", strings.TrimSpace(newCfg.Storage.DSN) != ""),
		)
	}

	if !oldCfg.Dispatch.equal(newCfg.Dispatch) {
		changed = append(changed, "dispatch")
		attrs = append(attrs,
			logx.Int("dispatch.ttl", newCfg.Dispatch.TTLSeconds()),
			logx.Int("dispatch.concurrency", newCfg.Dispatch.Concurrency),
			logx.Int("dispatch.rate_per_sec", newCfg.Dispatch.RatePerSec),
			logx.String("dispatch.timeout", newCfg.Dispatch.Timeout),
			logx.String("dispatch.schedule", newCfg.Dispatch.Schedule),
		)
	}

	if oldCfg.WebPush != newCfg.WebPush {
		changed = append(changed, "webpush")
		attrs = append(attrs,
			logx.String("webpush.subscriber", newCfg.WebPush.Subscriber),
			logx.Bool("webpush.vapid_private_key_set", strings.TrimSpace(newCfg.WebPush.VAPIDPrivateKey) != ""),
		)
	}

	if oldCfg.Server != newCfg.Server {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.String("server.host", newCfg.Server.Host),
			logx.Int("server.port", newCfg.Server.Port),
			logx.String("server.page_dir", newCfg.Server.PageDir),
		)
	}

	var oTG, nTG TelegramConfig
	if oldCfg.Telegram != nil {
		oTG = *oldCfg.Telegram
	}
	if newCfg.Telegram != nil {
		nTG = *newCfg.Telegram
	}
	if oTG != nTG {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(nTG.Token) != ""),
			logx.Int64("telegram.chat_id", nTG.ChatID),
		)
	}

	return changed, attrs
}
