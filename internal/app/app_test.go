package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pushfan/internal/config"
	"pushfan/internal/webpush"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "push_server.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestMapStorageConfig(t *testing.T) {
	cases := []struct {
		name    string
		in      config.StorageConfig
		driver  string
		wantErr bool
	}{
		{name: "sqlite", in: config.StorageConfig{Driver: "sqlite3", Path: "users.db", BusyTimeout: "2s"}, driver: "sqlite"},
		{name: "sqlite needs path", in: config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "file", in: config.StorageConfig{Driver: "file", Path: "data/users"}, driver: "file"},
		{name: "postgres", in: config.StorageConfig{Driver: "pgx", DSN: "postgres://localhost/push"}, driver: "postgres"},
		{name: "postgres needs dsn", in: config.StorageConfig{Driver: "postgres"}, wantErr: true},
		{name: "bad busy timeout", in: config.StorageConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "soon"}, wantErr: true},
		{name: "unknown", in: config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc, err := mapStorageConfig(&config.Config{Storage: tc.in})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", sc)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if sc.Driver != tc.driver {
				t.Fatalf("driver = %q", sc.Driver)
			}
		})
	}
}

func TestNew_OverridesAndEngine(t *testing.T) {
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(`
logging:
  level: warn
storage:
  driver: sqlite
  path: %s
dispatch:
  topic: news
webpush:
  subscriber: mailto:ops@example.com
  vapid_public_key: %s
  vapid_private_key: %s
`, filepath.Join(dir, "ignored.db"), pub, priv))

	db := filepath.Join(dir, "override.db")
	a, err := New(Options{ConfigPath: path, DBPath: db})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Config().Storage.Path != db {
		t.Fatalf("db override not applied: %s", a.Config().Storage.Path)
	}
	if _, err := os.Stat(db); err != nil {
		t.Fatalf("store not created at override path: %v", err)
	}
	if _, err := a.Engine(); err != nil {
		t.Fatalf("Engine: %v", err)
	}
	req := a.Request([]byte("hi"), "ab")
	if req.TTL != 300 || req.Topic != "news" || req.IDFilter != "ab" {
		t.Fatalf("request = %+v", req)
	}
}

func TestEngine_RequiresVAPIDKeys(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf("storage:\n  driver: sqlite\n  path: %s\n", filepath.Join(t.TempDir(), "u.db")))
	a, err := New(Options{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if _, err := a.Engine(); err == nil {
		t.Fatal("expected error without vapid keys")
	}
}

func TestServe_RegistersAndStops(t *testing.T) {
	port := freePort(t)
	path := writeConfig(t, fmt.Sprintf(`
storage:
  driver: sqlite
  path: %s
server:
  host: 127.0.0.1
  port: %d
`, filepath.Join(t.TempDir(), "users.db"), port))

	a, err := New(Options{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	body := `{"id":"u1","endpoint":"https://push.example.net/abc","keys":{"p256dh":"k","auth":"a"}}`
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err = http.Post(url, "application/json", strings.NewReader(body))
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	recs, err := a.Store().Find(context.Background(), "u1")
	if err != nil || len(recs) != 1 {
		t.Fatalf("find = %v %v", recs, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
