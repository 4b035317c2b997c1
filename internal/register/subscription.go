package register

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// derivedIDLen is how many trailing endpoint characters name a subscriber
// that did not send an id.
const derivedIDLen = 8

var errBody = errors.New("body not recognized")

// parseRegistration splits a registration body into the subscriber id and
// the descriptor to store (the body without its id).
func parseRegistration(body []byte) (string, []byte, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return "", nil, errBody
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return "", nil, errBody
	}

	var endpoint string
	if raw, ok := fields["endpoint"]; !ok || json.Unmarshal(raw, &endpoint) != nil || strings.TrimSpace(endpoint) == "" {
		return "", nil, fmt.Errorf("%w: endpoint required", errBody)
	}

	id, err := subscriberID(fields["id"], endpoint)
	if err != nil {
		return "", nil, err
	}
	delete(fields, "id")

	desc, err := json.Marshal(fields)
	if err != nil {
		return "", nil, err
	}
	return id, desc, nil
}

func subscriberID(raw json.RawMessage, endpoint string) (string, error) {
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s, nil
			}
			return fromEndpoint(endpoint), nil
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String(), nil
		}
		return "", fmt.Errorf("%w: id must be a string or number", errBody)
	}
	return fromEndpoint(endpoint), nil
}

func fromEndpoint(endpoint string) string {
	r := []rune(endpoint)
	if len(r) > derivedIDLen {
		r = r[len(r)-derivedIDLen:]
	}
	return string(r)
}
