package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"pushfan/internal/storage"
	logx "pushfan/pkg/logx"
)

const (
	defaultConcurrency = 16
	defaultTimeout     = 30 * time.Second
)

// Options bound a run's resource use.
type Options struct {
	// Concurrency caps in-flight deliveries; <=0 means 16.
	Concurrency int
	// RatePerSec caps delivery starts per second; <=0 means unlimited.
	RatePerSec int
	// Timeout bounds one delivery attempt; <=0 means 30s.
	Timeout time.Duration
}

// Engine runs dispatches. It holds no per-run state, so concurrent Dispatch
// calls are independent.
type Engine struct {
	store     Store
	deliverer Deliverer
	log       logx.Logger
	opts      Options
}

func New(store Store, deliverer Deliverer, log logx.Logger, opts Options) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Engine{store: store, deliverer: deliverer, log: log, opts: opts}
}

type result struct {
	rec storage.Record
	out Outcome
}

// Dispatch delivers req.Message to every candidate and prunes the
// permanently invalid ones. The returned error is non-nil only for an
// invalid request (wrapping ErrConfig) or a failed candidate lookup.
func (e *Engine) Dispatch(ctx context.Context, req Request) (Report, error) {
	h, err := req.headers()
	if err != nil {
		return Report{}, err
	}

	start := time.Now()
	rep := Report{RunID: fmt.Sprintf("run:%d", start.UnixNano())}
	log := e.log.With(logx.String("run", rep.RunID))

	cands, err := e.store.Find(ctx, req.IDFilter)
	if err != nil {
		return rep, fmt.Errorf("load candidates: %w", err)
	}
	rep.Attempted = len(cands)
	if len(cands) == 0 {
		log.Info("no candidates", logx.String("filter", req.IDFilter))
		return rep, nil
	}
	log.Info("processing message", logx.Int("candidates", len(cands)), logx.String("filter", req.IDFilter),
		logx.Int("ttl", h.TTL), logx.String("topic", h.Topic), logx.Int("concurrency", e.opts.Concurrency))

	for _, r := range e.fanOut(ctx, log, cands, req.Message, h) {
		e.settle(ctx, log, r, &rep)
	}

	fields := []logx.Field{
		logx.Int("attempted", rep.Attempted),
		logx.Int("delivered", rep.Delivered),
		logx.Strings("failed", rep.FailedIDs),
		logx.Strings("pruned", rep.PrunedIDs),
		logx.Duration("dur", time.Since(start)),
	}
	if len(rep.FailedIDs) > 0 {
		log.Warn("dispatch finished with failures", fields...)
	} else {
		log.Info("dispatch finished", fields...)
	}
	return rep, nil
}

// fanOut attempts every candidate and returns once all attempts are done,
// in the order they completed.
func (e *Engine) fanOut(ctx context.Context, log logx.Logger, cands []storage.Record, msg []byte, h Headers) []result {
	sem := semaphore.NewWeighted(int64(e.opts.Concurrency))
	var lim *rate.Limiter
	if e.opts.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(e.opts.RatePerSec), e.opts.RatePerSec)
	}

	done := make(chan result, len(cands))
	var wg sync.WaitGroup
	for _, c := range cands {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled while queued: never attempted, so not proven dead.
			done <- result{rec: c, out: Outcome{Err: err}}
			continue
		}
		wg.Add(1)
		go func(c storage.Record) {
			defer wg.Done()
			defer sem.Release(1)
			done <- result{rec: c, out: e.deliverOne(ctx, log, lim, c, msg, h)}
		}(c)
	}
	wg.Wait()
	close(done)

	out := make([]result, 0, len(cands))
	for r := range done {
		out = append(out, r)
	}
	return out
}

func (e *Engine) deliverOne(ctx context.Context, log logx.Logger, lim *rate.Limiter, c storage.Record, msg []byte, h Headers) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in delivery", logx.String("id", c.ID), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			out = Outcome{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return Outcome{Err: err}
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	out = e.deliverer.Deliver(callCtx, c.Subscription, msg, h)
	if out.Err == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && out.Status == 0 {
		out.Err = callCtx.Err()
	}
	return out
}

// settle applies one outcome. It runs on a single goroutine, so store
// mutations happen one candidate at a time.
func (e *Engine) settle(ctx context.Context, log logx.Logger, r result, rep *Report) {
	id := r.rec.ID
	switch Classify(r.out) {
	case Delivered:
		rep.Delivered++
		log.Debug("sent message", logx.String("id", id), logx.Int("status", r.out.Status))

	case PermanentlyInvalid:
		log.Warn("subscriber no longer wants updates; dropping", logx.String("id", id),
			logx.Int("status", r.out.Status), logx.String("reason", Reason(r.out)))
		if err := e.store.Delete(ctx, id); err != nil {
			// Still stored, so it must show up as a failure.
			log.Error("could not drop subscriber", logx.String("id", id), logx.Err(err))
			rep.FailedIDs = append(rep.FailedIDs, id)
			return
		}
		if err := e.store.Commit(ctx); err != nil {
			log.Warn("commit after drop failed", logx.String("id", id), logx.Err(err))
		}
		rep.PrunedIDs = append(rep.PrunedIDs, id)

	default:
		log.Error("could not deliver to subscriber", logx.String("id", id),
			logx.Int("status", r.out.Status), logx.String("reason", Reason(r.out)))
		rep.FailedIDs = append(rep.FailedIDs, id)
	}
}
