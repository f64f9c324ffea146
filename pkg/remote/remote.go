// Package remote defines the contract of the per-user, per-day remote task
// store and ships an in-process implementation. Backends live in
// subpackages.
package remote

import (
	"context"
	"errors"
	"sync/atomic"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// ErrUnavailable is returned by backends that cannot reach their store.
var ErrUnavailable = errors.New("remote: store unavailable")

// Client reads and writes the remote collection of tasks for one user and
// day. Calls block until the store answers; callers that want asynchrony run
// them in their own goroutines. Errors are surfaced as-is, never retried.
type Client interface {
	// Fetch returns every task stored for the user on day.
	Fetch(ctx context.Context, userID string, day timeutil.Day) ([]task.Task, error)
	// Save writes t under day. Saving the same id twice overwrites.
	Save(ctx context.Context, userID string, t task.Task, day timeutil.Day) error
	// Delete removes taskID from day. Deleting a missing id succeeds.
	Delete(ctx context.Context, userID, taskID string, day timeutil.Day) error
	// Listen subscribes to day. onUpdate receives the full current set once
	// after subscribing and again after every change. It is never called
	// from inside Listen itself, and calls for one handle are serialized.
	Listen(ctx context.Context, userID string, day timeutil.Day, onUpdate func([]task.Task)) (Handle, error)
	// StopListening cancels a subscription. It does not wait for a callback
	// that is already running.
	StopListening(h Handle)
}

// Handle identifies a listener subscription.
type Handle struct {
	ID     uint64
	UserID string
	Day    timeutil.Day
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.ID == 0
}

var handleSeq atomic.Uint64

// NewHandle allocates a process-unique handle for a subscription.
func NewHandle(userID string, day timeutil.Day) Handle {
	return Handle{ID: handleSeq.Add(1), UserID: userID, Day: day}
}
