package dispatch

import (
	"encoding/json"
	"strings"
)

// Class is the classification of a delivery outcome.
type Class int

const (
	Delivered Class = iota
	PermanentlyInvalid
	TransientError
)

func (c Class) String() string {
	switch c {
	case Delivered:
		return "delivered"
	case PermanentlyInvalid:
		return "permanently_invalid"
	default:
		return "transient_error"
	}
}

// Classify maps an outcome to exactly one Class.
//
// Only an explicit 404 or 410 status makes a subscription permanently
// invalid; the body is irrelevant. Transport errors are always transient.
func Classify(o Outcome) Class {
	if o.Err != nil {
		return TransientError
	}
	switch {
	case o.Status >= 100 && o.Status < 300:
		return Delivered
	case o.Status == 404 || o.Status == 410:
		return PermanentlyInvalid
	default:
		return TransientError
	}
}

const maxReasonLen = 200

// Reason extracts a short human-readable failure reason from an outcome.
func Reason(o Outcome) string {
	if o.Err != nil {
		return truncate(o.Err.Error(), maxReasonLen)
	}
	body := strings.TrimSpace(string(o.Body))
	if body == "" {
		return ""
	}
	// Push services (FCM, Mozilla autopush) answer with small JSON errors.
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err == nil {
		for _, k := range []string{"reason", "message", "error"} {
			if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
				return truncate(strings.TrimSpace(v), maxReasonLen)
			}
		}
	}
	return truncate(strings.Join(strings.Fields(body), " "), maxReasonLen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
