package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	timeFormat       = "2006-01-02T15:04:05.000Z07:00"
	defaultLogPath   = "./pushfan.log"
	telegramQueueLen = 256
	telegramMaxText  = 3500
	telegramMaxField = 600
)

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// TelegramConfig forwards log lines at or above MinLevel to one chat.
type TelegramConfig struct {
	Enabled    bool
	ChatID     int64
	ThreadID   int
	MinLevel   string
	RatePerSec int
}

// Sender delivers a plain-text log line to a chat.
// Implemented by internal/transport/telegram.
type Sender interface {
	SendText(ctx context.Context, chatID int64, threadID int, text string) error
}

// Field adds one key to a log line. Later fields overwrite earlier ones.
type Field func(e *zerolog.Event)

func String(k, v string) Field  { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field {
	return func(e *zerolog.Event) { e.Int64(k, v) }
}
func Bool(k string, v bool) Field { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}
func Strings(k string, v []string) Field {
	return func(e *zerolog.Event) { e.Strs(k, v) }
}
func Any(k string, v any) Field { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Logger writes structured lines. A Logger obtained from a Service follows
// every later Service.Apply. The zero value discards everything.
type Logger struct {
	svc    *Service
	base   *zerolog.Logger
	fields []Field
}

func Nop() Logger {
	zl := zerolog.Nop()
	return Logger{base: &zl}
}

// NewJSON writes JSON lines to w with no Service behind it.
func NewJSON(w io.Writer, level string) Logger {
	zl := zerolog.New(w).Level(parseLevel(level, zerolog.InfoLevel)).With().Timestamp().Logger()
	return Logger{base: &zl}
}

func (l Logger) IsZero() bool { return l.svc == nil && l.base == nil && len(l.fields) == 0 }

func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	l.fields = append(slices.Clone(l.fields), fields...)
	return l
}

func (l Logger) Debug(msg string, fields ...Field) { l.emit(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(zerolog.ErrorLevel, msg, fields) }

func (l Logger) sink() zerolog.Logger {
	switch {
	case l.svc != nil:
		return l.svc.current()
	case l.base != nil:
		return *l.base
	default:
		return zerolog.Nop()
	}
}

func (l Logger) emit(level zerolog.Level, msg string, fields []Field) {
	zl := l.sink()
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	// emit <- Debug/Info/... <- call site
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	for _, group := range [][]Field{l.fields, fields} {
		for _, f := range group {
			if f != nil {
				f(e)
			}
		}
	}
	e.Msg(msg)
}

// Service owns the configured sinks and rebuilds them on Apply.
type Service struct {
	sender Sender
	root   atomic.Pointer[zerolog.Logger]

	mu   sync.Mutex
	file *os.File
	tg   telegramRoute

	queue      chan telegramItem
	workerOnce sync.Once
	stopWorker context.CancelFunc
	workerWG   sync.WaitGroup
}

// telegramRoute is the part of TelegramConfig the writer reads per line.
type telegramRoute struct {
	chatID   int64
	threadID int
	minLevel zerolog.Level
	limiter  *rate.Limiter
}

type telegramItem struct {
	chatID   int64
	threadID int
	text     string
}

// New applies cfg and returns the Service with a Logger bound to it.
// With a nil sender the Telegram sink stays off.
func New(cfg Config, sender Sender) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat

	s := &Service{sender: sender, queue: make(chan telegramItem, telegramQueueLen)}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply rebuilds the sinks from cfg. Safe for concurrent use with logging.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rps := max(1, cfg.Telegram.RatePerSec)
	s.tg = telegramRoute{
		chatID:   cfg.Telegram.ChatID,
		threadID: cfg.Telegram.ThreadID,
		minLevel: parseLevel(cfg.Telegram.MinLevel, zerolog.WarnLevel),
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
	}

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(os.Stderr))
	}
	if cfg.File.Enabled {
		if f := openLogFile(cfg.File.Path); f != nil {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if cfg.Telegram.Enabled && s.sender != nil {
		s.startWorker()
		writers = append(writers, telegramWriter{svc: s})
		if s.tg.chatID == 0 {
			fmt.Fprintln(os.Stderr, "logx: telegram sink enabled without a chat id; lines are dropped")
		}
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(os.Stderr))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// Close stops the Telegram worker, dropping queued lines, and closes the file.
func (s *Service) Close() error {
	s.mu.Lock()
	f, stop := s.file, s.stopWorker
	s.file, s.stopWorker = nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		s.workerWG.Wait()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

func openLogFile(path string) *os.File {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultLogPath
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: open %q: %v\n", path, err)
		return nil
	}
	return f
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   timeFormat,
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

// startWorker must be called with s.mu held.
func (s *Service) startWorker() {
	s.workerOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopWorker = cancel
		s.workerWG.Add(1)
		go func() {
			defer s.workerWG.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case it := <-s.queue:
					sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
					_ = s.sender.SendText(sendCtx, it.chatID, it.threadID, it.text)
					cancel()
				}
			}
		}()
	})
}

// telegramWriter is a zerolog.LevelWriter that queues lines for the worker.
// It never blocks: lines over the rate limit or a full queue are dropped.
type telegramWriter struct{ svc *Service }

func (w telegramWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w telegramWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	w.svc.mu.Lock()
	route := w.svc.tg
	w.svc.mu.Unlock()

	if route.chatID == 0 || level < route.minLevel || !route.limiter.Allow() {
		return len(p), nil
	}
	text := telegramText(p)
	if text == "" {
		return len(p), nil
	}
	select {
	case w.svc.queue <- telegramItem{chatID: route.chatID, threadID: route.threadID, text: text}:
	default:
	}
	return len(p), nil
}

// telegramText renders one JSON log line as "[LEVEL] message" followed by
// one "- key=value" line per remaining field, keys sorted.
func telegramText(p []byte) string {
	raw := strings.TrimSpace(string(p))
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return clip(raw, telegramMaxText)
	}

	var b strings.Builder
	if lvl, _ := m["level"].(string); lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	msg, _ := m["message"].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message":
		default:
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s=%s", k, clip(fmt.Sprint(m[k]), telegramMaxField))
	}
	return clip(b.String(), telegramMaxText)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
