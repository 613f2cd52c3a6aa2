// Package svcmgr is the boundary to the host's service manager: enumerate
// every service, query or stop one by name, and wait for a target status.
package svcmgr

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Status is the coarse state of a host service.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	// StatusOther covers pending, paused, failed and unknown states.
	StatusOther Status = "other"
)

// Snapshot is a point-in-time read of one service.
type Snapshot struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// IsRunning reports whether the service was running when read.
func (s Snapshot) IsRunning() bool {
	return s.Status == StatusRunning
}

// Manager is implemented per platform.
type Manager interface {
	// Enumerate returns every service on the host. Failures are *HostQueryError.
	Enumerate(ctx context.Context) ([]Snapshot, error)

	// Query returns the current status of one service. A missing service
	// fails with an *OperationError of kind ErrNotFound.
	Query(ctx context.Context, name string) (Status, error)

	// Stop requests a stop and returns without waiting for it to complete.
	// Failures are *OperationError of kind ErrNotFound, ErrAccessDenied or ErrStopRejected.
	Stop(ctx context.Context, name string) error

	// AwaitStatus polls until the service reaches target or timeout elapses
	// and returns the last status observed. It never fails; a timeout shows
	// up as a status other than target.
	AwaitStatus(ctx context.Context, name string, target Status, timeout time.Duration) Status
}

// DefaultPollInterval is how often AwaitStatus re-queries the host.
const DefaultPollInterval = 250 * time.Millisecond

// DefaultCommandTimeout bounds a single call into the service manager.
const DefaultCommandTimeout = 30 * time.Second

// Options configures a platform Manager.
type Options struct {
	PollInterval   time.Duration
	CommandTimeout time.Duration
	Clock          clock.Clock
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}
