package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrPaginatorUsed is yielded when Run is called on a paginator that
	// already ran.
	ErrPaginatorUsed = errors.New("scraper: paginator already used")

	// ErrAllCategoriesFailed is returned by Harvester.Run when no category
	// completed.
	ErrAllCategoriesFailed = errors.New("scraper: all categories failed")
)

// ErrBootstrapFailed indicates a navigation step of session bootstrap failed.
type ErrBootstrapFailed struct {
	Step   string
	URL    string
	Status int
	Err    error
}

func (e ErrBootstrapFailed) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("bootstrap %s (%s): status %d", e.Step, e.URL, e.Status)
	}
	return fmt.Errorf("bootstrap %s (%s): %w", e.Step, e.URL, e.Err).Error()
}

func (e ErrBootstrapFailed) Unwrap() error {
	return e.Err
}

// ErrSessionUnavailable indicates a category never obtained a usable session.
type ErrSessionUnavailable struct {
	Category string
	Err      error
}

func (e ErrSessionUnavailable) Error() string {
	return fmt.Errorf("session unavailable for %s: %w", e.Category, e.Err).Error()
}

func (e ErrSessionUnavailable) Unwrap() error {
	return e.Err
}

// ErrRetryBudgetExhausted indicates too many consecutive failures at one offset.
type ErrRetryBudgetExhausted struct {
	Category string
	Offset   int
	Attempts int
	Last     Verdict
}

func (e ErrRetryBudgetExhausted) Error() string {
	return fmt.Sprintf("retry budget exhausted for %s at offset %d after %d attempts (last verdict %s)", e.Category, e.Offset, e.Attempts, e.Last)
}

// ErrForbidden indicates a 403 under strict classification.
type ErrForbidden struct {
	Category string
	Offset   int
}

func (e ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s at offset %d", e.Category, e.Offset)
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// classifyTransportError wraps a no-response failure in its typed form.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var bootstrap ErrBootstrapFailed
	if errors.As(err, &bootstrap) {
		return "bootstrap_failed"
	}
	var budget ErrRetryBudgetExhausted
	if errors.As(err, &budget) {
		return "retry_budget_exhausted"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	return "other"
}
