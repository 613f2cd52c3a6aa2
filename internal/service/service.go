// Package service hosts the keeper under the platform's service manager:
// the Windows SCM, or systemd and an interactive console through signals.
package service

import (
	"context"
	"time"
)

// Name is the service and event source name.
const Name = "ServiceKeeper"

// DefaultStopTimeout bounds how long a stop request waits for RunFunc to return.
const DefaultStopTimeout = 30 * time.Second

// Service runs a RunFunc until the host asks it to stop.
type Service interface {
	// Run blocks until RunFunc returns or a stop is requested.
	Run(ctx context.Context) error

	// Stop cancels the context given to RunFunc.
	Stop() error

	// IsService reports whether the process was started by the service manager.
	IsService() bool
}

// RunFunc is the keeper's main loop. It must return once ctx is cancelled.
type RunFunc func(ctx context.Context) error

// Options configures NewService.
type Options struct {
	Name        string
	StopTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = Name
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	return o
}
