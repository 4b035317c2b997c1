package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrConfig marks a request that is invalid before any work starts.
var ErrConfig = errors.New("invalid dispatch request")

// ConfigError names the offending request field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfig.Error(), e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// Request is one dispatch invocation. Treat it as immutable once built.
type Request struct {
	Message []byte
	TTL     int
	// Topic groups replaceable messages; it may not contain whitespace or quotes.
	Topic   string
	Urgency string
	// IDFilter restricts candidates to IDs containing it; empty matches all.
	IDFilter string
}

var urgencies = map[string]bool{
	"":         true,
	"very-low": true,
	"low":      true,
	"normal":   true,
	"high":     true,
}

// Validate checks every precondition of a run.
func (r Request) Validate() error {
	_, err := r.headers()
	return err
}

func (r Request) headers() (Headers, error) {
	if len(r.Message) == 0 {
		return Headers{}, &ConfigError{Field: "message", Reason: "required"}
	}
	if r.TTL < 0 {
		return Headers{}, &ConfigError{Field: "ttl", Reason: "must be >= 0"}
	}
	if err := validateTopic(r.Topic); err != nil {
		return Headers{}, err
	}
	if !urgencies[r.Urgency] {
		return Headers{}, &ConfigError{Field: "urgency", Reason: fmt.Sprintf("%q is not one of very-low|low|normal|high", r.Urgency)}
	}
	return Headers{TTL: r.TTL, Topic: r.Topic, Urgency: r.Urgency}, nil
}

func validateTopic(topic string) error {
	if topic == "" {
		return nil
	}
	bad := strings.IndexFunc(topic, func(c rune) bool {
		return unicode.IsSpace(c) || c == '"' || c == '\'' || c == '`'
	})
	if bad >= 0 {
		return &ConfigError{Field: "topic", Reason: "don't use quotes or spaces in topics"}
	}
	return nil
}
