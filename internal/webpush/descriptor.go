package webpush

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	wp "github.com/SherClockHolmes/webpush-go"
)

// ErrDescriptor marks a stored subscription that cannot be used for delivery.
var ErrDescriptor = errors.New("invalid subscription descriptor")

// DecodeSubscription parses a stored descriptor. It requires an endpoint and
// both encryption keys.
func DecodeSubscription(b []byte) (*wp.Subscription, error) {
	var s wp.Subscription
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescriptor, err)
	}
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	switch {
	case s.Endpoint == "":
		return nil, fmt.Errorf("%w: missing endpoint", ErrDescriptor)
	case s.Keys.P256dh == "":
		return nil, fmt.Errorf("%w: missing keys.p256dh", ErrDescriptor)
	case s.Keys.Auth == "":
		return nil, fmt.Errorf("%w: missing keys.auth", ErrDescriptor)
	}
	return &s, nil
}

// EncodeSubscription is the inverse of DecodeSubscription.
func EncodeSubscription(s *wp.Subscription) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil subscription", ErrDescriptor)
	}
	return json.Marshal(s)
}

// GenerateVAPIDKeys returns a fresh base64url encoded key pair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return wp.GenerateVAPIDKeys()
}
