package app

import (
	"time"

	"pushfan/internal/config"
	"pushfan/internal/dispatch"
	"pushfan/internal/webpush"
	logx "pushfan/pkg/logx"
)

// Engine builds a dispatch engine that delivers through Web Push with the
// configured VAPID identity.
func (a *App) Engine() (*dispatch.Engine, error) {
	dc := a.cfg.Dispatch
	timeout, err := config.ParseDurationOrDefault("dispatch.timeout", dc.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	wc := a.cfg.WebPush
	client, err := webpush.New(webpush.Config{
		Subscriber:      wc.Subscriber,
		VAPIDPublicKey:  wc.VAPIDPublicKey,
		VAPIDPrivateKey: wc.VAPIDPrivateKey,
		RecordSize:      uint32(max(0, wc.RecordSize)),
	}, a.log.With(logx.String("comp", "webpush")))
	if err != nil {
		return nil, err
	}
	return dispatch.New(a.store, client, a.log.With(logx.String("comp", "dispatch")), dispatch.Options{
		Concurrency: dc.Concurrency,
		RatePerSec:  dc.RatePerSec,
		Timeout:     timeout,
	}), nil
}

// Request returns a request for msg carrying the configured header defaults.
func (a *App) Request(msg []byte, idFilter string) dispatch.Request {
	dc := a.cfg.Dispatch
	return dispatch.Request{
		Message:  msg,
		TTL:      dc.TTLSeconds(),
		Topic:    dc.Topic,
		Urgency:  dc.Urgency,
		IDFilter: idFilter,
	}
}
