package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pushfan/internal/app"
	"pushfan/internal/dispatch"
	"pushfan/internal/schedule"
	"pushfan/internal/webpush"
	logx "pushfan/pkg/logx"
)

// exitFailures is returned when at least one subscriber could not be reached.
const exitFailures = 2

type flags struct {
	config      string
	debug       bool
	db          string
	msg         string
	id          string
	topic       string
	urgency     string
	ttl         int
	concurrency int
	schedule    string
	genVAPID    bool

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("pusher", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "path to config (yaml/json); default ./push_server.yaml if present")
	fs.BoolVar(&f.debug, "debug", false, "debug logging")
	fs.BoolVar(&f.debug, "d", false, "debug logging (shorthand)")
	fs.StringVar(&f.db, "db", "", "subscriber database path (overrides storage.path)")
	fs.StringVar(&f.msg, "msg", "", "message body to send (required)")
	fs.StringVar(&f.id, "id", "", "only send to subscribers whose id contains this")
	fs.StringVar(&f.topic, "topic", "", "message topic")
	fs.StringVar(&f.urgency, "urgency", "", "very-low|low|normal|high")
	fs.IntVar(&f.ttl, "ttl", 300, "message time to live in seconds")
	fs.IntVar(&f.concurrency, "concurrency", 0, "max deliveries in flight (overrides dispatch.concurrency)")
	fs.StringVar(&f.schedule, "schedule", "", "repeat on a cron expression or interval, e.g. '*/5 * * * *' or '10m'")
	fs.BoolVar(&f.genVAPID, "gen-vapid", false, "print a new VAPID key pair and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.set = map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	if !f.genVAPID && f.msg == "" {
		return nil, errors.New("--msg is required")
	}
	return f, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}

	if f.genVAPID {
		priv, pub, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(stderr, "fatal:", err)
			return 1
		}
		fmt.Fprintf(stdout, "vapid_public_key: %s\nvapid_private_key: %s\n", pub, priv)
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: f.config, Debug: f.debug, DBPath: f.db})
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	defer a.Close()

	if f.set["concurrency"] {
		a.Config().Dispatch.Concurrency = f.concurrency
	}
	eng, err := a.Engine()
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	req := buildRequest(a, f)
	log := a.Logger()

	spec := strings.TrimSpace(f.schedule)
	if !f.set["schedule"] {
		spec = strings.TrimSpace(a.Config().Dispatch.Schedule)
	}
	if spec != "" {
		return runScheduled(ctx, eng, req, spec, log, stdout, stderr)
	}

	rep, err := eng.Dispatch(ctx, req)
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	printReport(stdout, rep)
	if len(rep.FailedIDs) > 0 {
		return exitFailures
	}
	return 0
}

// buildRequest starts from config defaults and applies the flags that were given.
func buildRequest(a *app.App, f *flags) dispatch.Request {
	req := a.Request([]byte(f.msg), f.id)
	if f.set["ttl"] {
		req.TTL = f.ttl
	}
	if f.set["topic"] {
		req.Topic = f.topic
	}
	if f.set["urgency"] {
		req.Urgency = f.urgency
	}
	return req
}

func runScheduled(ctx context.Context, eng *dispatch.Engine, req dispatch.Request, raw string, log logx.Logger, stdout, stderr io.Writer) int {
	spec, err := schedule.Parse(raw)
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	// Fail fast on a bad request instead of at every trigger.
	if err := req.Validate(); err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	err = schedule.Run(ctx, "dispatch", spec, schedule.Options{Immediately: true}, log, func(ctx context.Context) error {
		rep, err := eng.Dispatch(ctx, req)
		if err != nil {
			return err
		}
		printReport(stdout, rep)
		return nil
	})
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	return 0
}

func printReport(w io.Writer, rep dispatch.Report) {
	fmt.Fprintf(w, "dispatch finished run=%s attempted=%d delivered=%d failed=[%s] pruned=[%s]\n",
		rep.RunID, rep.Attempted, rep.Delivered, strings.Join(rep.FailedIDs, ","), strings.Join(rep.PrunedIDs, ","))
}
