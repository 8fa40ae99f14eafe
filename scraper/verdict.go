package scraper

import (
	"encoding/json"
	"net/http"
)

// Verdict is the classified outcome of one HTTP exchange.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictAuthExpired
	VerdictRateLimited
	VerdictServerError
	VerdictTransportError
	VerdictMalformedBody
	// VerdictForbidden is only produced by a strict Classifier.
	VerdictForbidden
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictAuthExpired:
		return "auth_expired"
	case VerdictRateLimited:
		return "rate_limited"
	case VerdictServerError:
		return "server_error"
	case VerdictTransportError:
		return "transport_error"
	case VerdictMalformedBody:
		return "malformed_body"
	case VerdictForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// RenewsSession reports whether the verdict invalidates the session context.
func (v Verdict) RenewsSession() bool {
	return v == VerdictAuthExpired || v == VerdictRateLimited
}

// Retryable reports whether the same offset should be attempted again.
func (v Verdict) Retryable() bool {
	switch v {
	case VerdictAuthExpired, VerdictRateLimited, VerdictServerError, VerdictTransportError:
		return true
	default:
		return false
	}
}

// Classifier maps a status code and body onto a Verdict.
type Classifier struct {
	// StrictForbidden turns 403 into VerdictForbidden instead of
	// VerdictAuthExpired.
	StrictForbidden bool
}

// Classify returns the verdict for a response. A zero status means no
// response was received.
func (c Classifier) Classify(status int, body []byte) Verdict {
	switch {
	case status == 0:
		return VerdictTransportError
	case status >= 200 && status < 300:
		if json.Valid(body) {
			return VerdictOK
		}
		return VerdictMalformedBody
	case status == http.StatusUnauthorized:
		return VerdictAuthExpired
	case status == http.StatusForbidden:
		if c.StrictForbidden {
			return VerdictForbidden
		}
		return VerdictAuthExpired
	case status == http.StatusTooManyRequests:
		return VerdictRateLimited
	default:
		return VerdictServerError
	}
}
