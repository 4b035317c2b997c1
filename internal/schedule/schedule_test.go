package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "pushfan/pkg/logx"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in     string
		kind   Kind
		every  time.Duration
		cron   string
		source string
	}{
		{in: "*/5 * * * *", kind: KindCron, cron: "*/5 * * * *", source: "cron"},
		{in: "0 30 9 * * 1-5", kind: KindCron, cron: "0 30 9 * * 1-5", source: "cron"},
		{in: "@hourly", kind: KindCron, cron: "@hourly", source: "cron"},
		{in: "@every 55m", kind: KindCron, cron: "@every 55m", source: "cron"},
		{in: "cron: 0 8 * * *", kind: KindCron, cron: "0 8 * * *", source: "cron"},
		{in: "55m", kind: KindInterval, every: 55 * time.Minute, source: "duration"},
		{in: "02:30", kind: KindInterval, every: 2*time.Hour + 30*time.Minute, source: "hhmm"},
		{in: "interval: 00:50", kind: KindInterval, every: 50 * time.Minute, source: "hhmm"},
		{in: "every:1h", kind: KindInterval, every: time.Hour, source: "duration"},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got.Kind != tc.kind || got.Every != tc.every || got.Cron != tc.cron || got.Source != tc.source {
			t.Fatalf("Parse(%q) = %+v", tc.in, got)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "  ", "soon", "-5m", "0s", "00:00", "01:75", "cron:", "interval:", "* * *", "@sometimes"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q): expected error", in)
		}
	}
}

func TestNextRuns(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	spec, err := Parse("15m")
	if err != nil {
		t.Fatal(err)
	}
	runs := NextRuns(spec, from, 3)
	if len(runs) != 3 || !runs[0].Equal(from.Add(15*time.Minute)) || !runs[2].Equal(from.Add(45*time.Minute)) {
		t.Fatalf("runs = %v", runs)
	}

	spec, err = Parse("0 12 * * *")
	if err != nil {
		t.Fatal(err)
	}
	from = time.Date(2026, 1, 1, 10, 0, 0, 0, time.Local)
	runs = NextRuns(spec, from, 2)
	if len(runs) != 2 || runs[0].Hour() != 12 || runs[1].Sub(runs[0]) != 24*time.Hour {
		t.Fatalf("runs = %v", runs)
	}
}

func TestRun_ImmediatelyAndStopsOnCancel(t *testing.T) {
	spec, err := Parse("1h")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	ran := make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "test", spec, Options{Immediately: true, Timeout: time.Second}, logx.Nop(), func(ctx context.Context) error {
			calls.Add(1)
			select {
			case ran <- struct{}{}:
			default:
			}
			return errors.New("ignored")
		})
	}()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestRun_BadTimezone(t *testing.T) {
	spec, _ := Parse("1h")
	err := Run(context.Background(), "tz", spec, Options{Timezone: "Nowhere/Special"}, logx.Nop(), func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected timezone error")
	}
}
