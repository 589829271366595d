// Package remote talks to the checklist service REST API. The engine only
// sees the Client interface; transport details stay here.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/outbox"
)

// ErrNotFound is returned when the server has no matching resource.
var ErrNotFound = errors.New("remote: not found")

// Order is the slice of the marketplace order the engine needs: whether the
// order's lifecycle state calls for a checklist, and which service category
// selects the template.
type Order struct {
	ID                string `json:"id"`
	Category          string `json:"category"`
	Status            string `json:"status"`
	ChecklistRequired bool   `json:"checklist_required"`
}

// Client is the engine's view of the checklist service.
//
// FinalizeInstance must be idempotent under retry: replaying with the same
// idempotency key returns the already-finalized instance instead of
// finalizing twice.
type Client interface {
	FetchOrder(ctx context.Context, orderID string) (Order, error)
	FetchTemplate(ctx context.Context, category string) (checklist.Template, error)
	FetchInstanceByOrder(ctx context.Context, orderID string) (checklist.Instance, error)
	CreateInstance(ctx context.Context, orderID, templateID string) (checklist.Instance, error)
	UpdateState(ctx context.Context, instanceID string, kind outbox.Kind) (checklist.Instance, error)
	SubmitResponse(ctx context.Context, instanceID string, resp checklist.Response) (checklist.Response, error)
	FinalizeInstance(ctx context.Context, instanceID string, in checklist.FinalizeInput, idempotencyKey string) (checklist.Instance, error)
}

// UnavailableError marks a failure that the offline queue absorbs: network
// errors, timeouts, and server-side (5xx) responses. It is never surfaced to
// the operator as a hard failure.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("remote unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err represents a retriable connectivity or
// server failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// StatusError is a non-2xx response that is not retriable (4xx other than
// 404/408/429). These indicate a client-side bug or stale state and are not
// queued for replay.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d during %s: %s", e.Code, e.Op, e.Body)
}

// classify wraps a transport-level error for the given operation. Timeouts
// are treated identically to connection failures.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &UnavailableError{Op: op, Err: err}
	}
	// http.Client wraps dial and transport errors in *url.Error, which
	// implements net.Error for timeouts only; anything else reaching here
	// from Do() is still a connectivity problem, not a protocol one.
	return &UnavailableError{Op: op, Err: err}
}

// retriableStatus reports whether an HTTP status should be treated as
// temporary server unavailability.
func retriableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
