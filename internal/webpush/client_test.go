package webpush

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	wp "github.com/SherClockHolmes/webpush-go"

	"pushfan/internal/dispatch"
	logx "pushfan/pkg/logx"
)

func testSubscription(t *testing.T, endpoint string) []byte {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatal(err)
	}
	b, err := EncodeSubscription(&wp.Subscription{
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

func testClient(t *testing.T) *Client {
	t.Helper()
	priv, pub, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(Config{Subscriber: "mailto:ops@example.com", VAPIDPublicKey: pub, VAPIDPrivateKey: priv}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSend_ReportsStatusAndHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(t)
	resp, err := c.Send(context.Background(), testSubscription(t, srv.URL+"/push/abc"), []byte("hello"),
		dispatch.Headers{TTL: 120, Topic: "scores", Urgency: "high"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != http.StatusCreated || string(resp.Body) != "ok" {
		t.Fatalf("resp = %d %q", resp.Status, resp.Body)
	}
	if got.Get("TTL") != "120" {
		t.Fatalf("TTL header = %q", got.Get("TTL"))
	}
	if got.Get("Topic") != "scores" {
		t.Fatalf("Topic header = %q", got.Get("Topic"))
	}
	if got.Get("Urgency") != "high" {
		t.Fatalf("Urgency header = %q", got.Get("Urgency"))
	}
	if got.Get("Content-Encoding") != "aes128gcm" {
		t.Fatalf("Content-Encoding = %q", got.Get("Content-Encoding"))
	}
	if !strings.HasPrefix(got.Get("Authorization"), "vapid ") {
		t.Fatalf("Authorization = %q", got.Get("Authorization"))
	}
}

func TestSend_GoneIsStatusNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"reason":"push subscription has unsubscribed or expired"}`))
	}))
	defer srv.Close()

	out := testClient(t).Deliver(context.Background(), testSubscription(t, srv.URL), []byte("m"), dispatch.Headers{TTL: 300})
	if out.Err != nil || out.Status != http.StatusGone {
		t.Fatalf("outcome = %+v", out)
	}
	if dispatch.Classify(out) != dispatch.PermanentlyInvalid {
		t.Fatalf("class = %v", dispatch.Classify(out))
	}
	if !strings.Contains(dispatch.Reason(out), "unsubscribed") {
		t.Fatalf("reason = %q", dispatch.Reason(out))
	}
}

func TestSend_BodyIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Repeat("x", 3*maxBodyBytes)))
	}))
	defer srv.Close()

	resp, err := testClient(t).Send(context.Background(), testSubscription(t, srv.URL), []byte("m"), dispatch.Headers{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != http.StatusServiceUnavailable || len(resp.Body) != maxBodyBytes {
		t.Fatalf("status=%d body=%d", resp.Status, len(resp.Body))
	}
}

func TestSend_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient(t).Send(context.Background(), testSubscription(t, url), []byte("m"), dispatch.Headers{})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	out := testClient(t).Deliver(context.Background(), testSubscription(t, url), []byte("m"), dispatch.Headers{})
	if out.Status != 0 || dispatch.Classify(out) != dispatch.TransientError {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestSend_BadDescriptorMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := testClient(t)
	for _, d := range []string{
		`not json`,
		`{"endpoint":""}`,
		`{"endpoint":"` + srv.URL + `","keys":{"auth":"x"}}`,
		`{"endpoint":"` + srv.URL + `","keys":{"p256dh":"x"}}`,
	} {
		_, err := c.Send(context.Background(), []byte(d), []byte("m"), dispatch.Headers{})
		if !errors.Is(err, ErrDescriptor) {
			t.Fatalf("%s: expected ErrDescriptor, got %v", d, err)
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("push service contacted %d times", hits.Load())
	}
}

func TestDecodeSubscription_RoundTrip(t *testing.T) {
	b := testSubscription(t, "https://push.example.net/wpush/v2/abcdefgh")
	s, err := DecodeSubscription(b)
	if err != nil {
		t.Fatal(err)
	}
	if s.Endpoint != "https://push.example.net/wpush/v2/abcdefgh" || s.Keys.Auth == "" || s.Keys.P256dh == "" {
		t.Fatalf("decoded = %+v", s)
	}
}

func TestNew_RequiresKeys(t *testing.T) {
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error without vapid keys")
	}
}
