package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "pushfan/pkg/logx"
)

type Options struct {
	// Timeout bounds one run; 0 means no limit beyond the Run context.
	Timeout time.Duration
	// Timezone names the location cron fields are read in; empty is Local.
	Timezone string
	// Immediately also runs the job once at start.
	Immediately bool
}

// Run triggers job on spec until ctx is done. A trigger that fires while the
// previous run is still going is skipped. Job errors are logged, never fatal.
func Run(ctx context.Context, name string, spec Spec, opts Options, log logx.Logger, job func(ctx context.Context) error) error {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("schedule", name))

	loc := time.Local
	if tz := strings.TrimSpace(opts.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("schedule %s: timezone %q: %w", name, tz, err)
		}
		loc = l
	}

	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	fire := func() {
		runCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		start := time.Now()
		if err := job(runCtx); err != nil {
			log.Warn("scheduled run failed", logx.Err(err), logx.Duration("dur", time.Since(start)))
			return
		}
		log.Debug("scheduled run done", logx.Duration("dur", time.Since(start)))
	}

	var (
		id  cron.EntryID
		err error
	)
	switch spec.Kind {
	case KindInterval:
		id = c.Schedule(cron.Every(spec.Every), cron.FuncJob(fire))
	default:
		id, err = c.AddFunc(spec.Cron, fire)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	c.Start()
	log.Info("schedule started", logx.String("spec", spec.String()), logx.String("tz", loc.String()),
		logx.String("next", c.Entry(id).Next.Format(time.RFC3339)))

	if opts.Immediately {
		// Through the entry's wrapped job, so it counts for overlap skipping.
		go c.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(opts.Timeout + 5*time.Second):
		log.Warn("scheduled run still in flight at shutdown")
	}
	log.Info("schedule stopped")
	return nil
}

// NextRuns lists the next n trigger times after from.
func NextRuns(spec Spec, from time.Time, n int) []time.Time {
	var sched cron.Schedule
	if spec.Kind == KindInterval {
		sched = cron.Every(spec.Every)
	} else {
		s, err := cronParser.Parse(spec.Cron)
		if err != nil {
			return nil
		}
		sched = s
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

// cronLogger routes cron's own messages into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	fields := append(kvFields(kv), logx.Err(err))
	if strings.Contains(msg, "panic") {
		fields = append(fields, logx.String("stack", string(debug.Stack())))
	}
	l.log.Error("cron: "+msg, fields...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
