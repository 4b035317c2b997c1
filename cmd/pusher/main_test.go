package main

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	wp "github.com/SherClockHolmes/webpush-go"

	"pushfan/internal/storage"
	"pushfan/internal/webpush"
	logx "pushfan/pkg/logx"
)

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	if _, err := parseFlags([]string{"--ttl", "60"}, &stderr); err == nil {
		t.Fatal("expected --msg to be required")
	}
	f, err := parseFlags([]string{"-d", "--msg", "hi", "--topic", "scores", "--id", "ab"}, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	if !f.debug || f.msg != "hi" || f.ttl != 300 || !f.set["topic"] || f.set["ttl"] {
		t.Fatalf("flags = %+v", f)
	}
	if _, err := parseFlags([]string{"--gen-vapid"}, &stderr); err != nil {
		t.Fatalf("--gen-vapid without --msg: %v", err)
	}
}

func TestRun_GenVAPID(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--gen-vapid"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "vapid_public_key: ") || !strings.Contains(stdout.String(), "vapid_private_key: ") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func descriptor(t *testing.T, endpoint string) []byte {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	auth := make([]byte, 16)
	_, _ = rand.Read(auth)
	b, err := webpush.EncodeSubscription(&wp.Subscription{
		Endpoint: endpoint,
		Keys: wp.Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRun_DispatchPrunesAndReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusGone)
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	db := filepath.Join(dir, "users.db")
	st, err := storage.Open(storage.Config{Driver: "sqlite", Path: db}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for id, path := range map[string]string{"u-ok": "/ok", "u-gone": "/gone", "u-busy": "/busy"} {
		if err := st.Insert(ctx, id, descriptor(t, srv.URL+path)); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(dir, "push_server.yaml")
	body := fmt.Sprintf("webpush:\n  subscriber: mailto:ops@example.com\n  vapid_public_key: %s\n  vapid_private_key: %s\n", pub, priv)
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{"--config", cfg, "--db", db, "--msg", "hello"}, &stdout, &stderr)
	if code != exitFailures {
		t.Fatalf("exit %d, stderr: %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "attempted=3") || !strings.Contains(out, "failed=[u-busy]") || !strings.Contains(out, "pruned=[u-gone]") {
		t.Fatalf("summary = %q", out)
	}

	st, err = storage.Open(storage.Config{Driver: "sqlite", Path: db}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	left, err := st.Find(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 2 || left[0].ID != "u-busy" || left[1].ID != "u-ok" {
		t.Fatalf("left = %+v", left)
	}
}

func TestRun_BadTopicIsFatal(t *testing.T) {
	priv, pub, _ := webpush.GenerateVAPIDKeys()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "c.yaml")
	body := fmt.Sprintf("webpush:\n  vapid_public_key: %s\n  vapid_private_key: %s\n", pub, priv)
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	code := run([]string{"--config", cfg, "--db", filepath.Join(dir, "u.db"), "--msg", "m", "--topic", "bad topic"}, &stdout, &stderr)
	if code != 1 || !strings.Contains(stderr.String(), "topic") {
		t.Fatalf("exit %d stderr %q", code, stderr.String())
	}
}
