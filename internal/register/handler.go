package register

import (
	"context"
	"embed"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"pushfan/internal/storage"
	logx "pushfan/pkg/logx"
)

//go:embed page
var embedded embed.FS

const (
	maxBodyBytes   = 64 << 10
	requestTimeout = 10 * time.Second
)

// Inserter is the part of the subscriber store registration needs.
type Inserter interface {
	Insert(ctx context.Context, id string, subscription []byte) error
}

type Options struct {
	// PageDir replaces the built-in page when set. It must hold index.html.
	PageDir string
}

// Handler serves the registration endpoint, the index page and its assets.
type Handler struct {
	store Inserter
	log   logx.Logger
	page  fs.FS
	mux   *http.ServeMux
}

func New(store Inserter, log logx.Logger, opts Options) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Handler{store: store, log: log, mux: http.NewServeMux()}
	if dir := strings.TrimSpace(opts.PageDir); dir != "" {
		h.page = os.DirFS(dir)
	} else {
		sub, _ := fs.Sub(embedded, "page")
		h.page = sub
	}

	h.mux.HandleFunc("GET /{$}", h.handleIndex)
	h.mux.HandleFunc("POST /{$}", h.handleRegister)
	h.mux.Handle("GET /i/", http.StripPrefix("/i/", http.FileServerFS(h.page)))
	h.mux.HandleFunc("OPTIONS /", h.handlePreflight)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	for k, v := range corsHeaders {
		w.Header().Set(k, v)
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rec := &statusRecorder{ResponseWriter: w}
	h.mux.ServeHTTP(rec, r.WithContext(ctx))

	h.log.Debug("http request",
		logx.String("method", r.Method),
		logx.String("path", r.URL.Path),
		logx.Int("status", rec.status),
		logx.Duration("dur", time.Since(start)),
	)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	b, err := fs.ReadFile(h.page, "index.html")
	if err != nil {
		h.log.Error("index page unavailable", logx.Err(err))
		writeText(w, http.StatusNotFound, "no index page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, err)
		return
	}
	id, desc, err := parseRegistration(body)
	if err != nil {
		h.fail(w, err)
		return
	}

	switch err := h.store.Insert(r.Context(), id, desc); {
	case errors.Is(err, storage.ErrConflict):
		h.log.Warn("already registered; ignoring", logx.String("id", id))
		writeText(w, http.StatusOK, "already registered")
	case err != nil:
		h.fail(w, err)
	default:
		h.log.Info("registered subscriber", logx.String("id", id))
		writeText(w, http.StatusCreated, "registering")
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.log.Error("could not process registration", logx.Err(err))
	writeText(w, http.StatusInternalServerError, "Error: "+err.Error())
}
