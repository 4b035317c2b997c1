package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pushfan/internal/config"
	"pushfan/internal/register"
	"pushfan/internal/runtime/supervisor"
	logx "pushfan/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the registration server until ctx is done or a component fails.
// It also follows config file changes and reports readiness to systemd.
func (a *App) Serve(ctx context.Context) error {
	sc := a.cfg.Server
	readTO, err := config.ParseDurationOrDefault("server.read_timeout", sc.ReadTimeout, 15*time.Second)
	if err != nil {
		return err
	}
	writeTO, err := config.ParseDurationOrDefault("server.write_timeout", sc.WriteTimeout, 15*time.Second)
	if err != nil {
		return err
	}
	idleTO, err := config.ParseDurationOrDefault("server.idle_timeout", sc.IdleTimeout, 60*time.Second)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           register.New(a.store, a.log.With(logx.String("comp", "register")), register.Options{PageDir: sc.PageDir}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTO,
		WriteTimeout:      writeTO,
		IdleTimeout:       idleTO,
	}

	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	sup.Go("http.server", func(context.Context) error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	sub := a.cfgm.Subscribe(8)
	sup.GoRestart("config.watch", a.cfgm.Watch)
	sup.Go("config.reload", func(c context.Context) error {
		a.reloadLoop(c, sub)
		return nil
	})

	a.log.Info("registration server listening", logx.String("addr", ln.Addr().String()))
	notify(a.log, daemon.SdNotifyReady)

	<-sup.Context().Done()
	notify(a.log, daemon.SdNotifyStopping)
	a.log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Warn("http shutdown incomplete", logx.Err(err))
	}
	return sup.Stop(sctx)
}

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// reloadLoop applies logging changes live. Storage and server changes are
// only reported; they need a restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfg
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			applyOverrides(next, a.opts)
			sections, fields := config.SummarizeConfigChange(last, next)
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			fields = append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)
			a.log.Info("config reloaded", fields...)
			a.logs.Apply(next.LogConfig(a.opts.Debug))
			for _, s := range sections {
				if s == "storage" || s == "server" || s == "telegram" {
					a.log.Warn("config section changed; restart to apply", logx.String("section", s))
				}
			}
			last = next
		}
	}
}
