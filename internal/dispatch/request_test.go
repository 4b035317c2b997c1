package dispatch

import (
	"errors"
	"testing"
)

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"ok", Request{Message: []byte("hi"), TTL: 300}, ""},
		{"ok with topic", Request{Message: []byte("hi"), Topic: "news-1"}, ""},
		{"zero ttl", Request{Message: []byte("hi"), TTL: 0}, ""},
		{"missing message", Request{TTL: 300}, "message"},
		{"negative ttl", Request{Message: []byte("hi"), TTL: -1}, "ttl"},
		{"space in topic", Request{Message: []byte("hi"), Topic: "bad topic"}, "topic"},
		{"tab in topic", Request{Message: []byte("hi"), Topic: "bad\ttopic"}, "topic"},
		{"double quote", Request{Message: []byte("hi"), Topic: `"news"`}, "topic"},
		{"single quote", Request{Message: []byte("hi"), Topic: "'news'"}, "topic"},
		{"urgency", Request{Message: []byte("hi"), Urgency: "urgent"}, "urgency"},
		{"urgency ok", Request{Message: []byte("hi"), Urgency: "very-low"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestHeadersCarryTopicOnlyWhenSet(t *testing.T) {
	h, err := Request{Message: []byte("m"), TTL: 60}.headers()
	if err != nil {
		t.Fatal(err)
	}
	if h.TTL != 60 || h.Topic != "" {
		t.Fatalf("headers = %+v", h)
	}
	h, err = Request{Message: []byte("m"), TTL: 60, Topic: "t1"}.headers()
	if err != nil {
		t.Fatal(err)
	}
	if h.Topic != "t1" {
		t.Fatalf("headers = %+v", h)
	}
}
