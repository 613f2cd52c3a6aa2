//go:build !linux && !windows

package svcmgr

import (
	"context"
	"errors"
	"runtime"
	"time"
)

var errUnsupported = errors.New("service management is not supported on " + runtime.GOOS)

// New returns a Manager whose every operation fails.
func New(opts Options) Manager {
	return unsupportedManager{}
}

type unsupportedManager struct{}

func (unsupportedManager) Enumerate(ctx context.Context) ([]Snapshot, error) {
	return nil, &HostQueryError{Err: errUnsupported}
}

func (unsupportedManager) Query(ctx context.Context, name string) (Status, error) {
	return StatusOther, opError("query", name, ErrStopRejected, errUnsupported)
}

func (unsupportedManager) Stop(ctx context.Context, name string) error {
	return opError("stop", name, ErrStopRejected, errUnsupported)
}

func (unsupportedManager) AwaitStatus(ctx context.Context, name string, target Status, timeout time.Duration) Status {
	return StatusOther
}
