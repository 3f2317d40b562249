package tasks

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/desertthunder/crmigrate/internal/services"
)

// ErrorClass is the write-attempt error taxonomy that drives the retry
// policy.
type ErrorClass int

const (
	// ClassNone: the write succeeded.
	ClassNone ErrorClass = iota
	// ClassTransient: expected to resolve on retry (429, 5xx, timeouts).
	ClassTransient
	// ClassBlocked: service-level block, pauses the whole engine.
	ClassBlocked
	// ClassDuplicate: the item already exists; not an error, no retry.
	ClassDuplicate
	// ClassTerminal: recorded as a failure, no retry.
	ClassTerminal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "ok"
	case ClassTransient:
		return "transient"
	case ClassBlocked:
		return "blocked"
	case ClassDuplicate:
		return "duplicate"
	case ClassTerminal:
		return "terminal"
	default:
		return ""
	}
}

// Classify maps a write attempt's error to its class. Context cancellation
// is terminal so a cancelled run stops instead of backing off.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTerminal
	}

	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Blocked:
			return ClassBlocked
		case apiErr.StatusCode == http.StatusConflict:
			return ClassDuplicate
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return ClassTransient
		case apiErr.StatusCode >= 500 && apiErr.StatusCode <= 504:
			return ClassTransient
		default:
			return ClassTerminal
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	return ClassTerminal
}
