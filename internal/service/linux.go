//go:build !windows

package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// posixService runs under systemd or an interactive shell.
type posixService struct {
	runFunc RunFunc
	opts    Options
	c       canceller
}

// NewService creates the platform service host.
func NewService(runFunc RunFunc, opts Options) Service {
	return &posixService{runFunc: runFunc, opts: opts.withDefaults()}
}

// Run handles SIGINT and SIGTERM for graceful shutdown.
func (s *posixService) Run(ctx context.Context) error {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	return supervise(ctx, &s.c, s.runFunc, sigChan, s.opts.StopTimeout)
}

func (s *posixService) Stop() error {
	s.c.stop()
	return nil
}

// IsService treats a non-terminal stdin as a systemd start.
func (s *posixService) IsService() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}

// ReportStartupError is a no-op outside Windows; see WriteStartupError.
func ReportStartupError(name string, err error) {}
