//go:build windows

package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/windows/svc"

	"svckeeper/internal/logger"
)

// windowsService answers the Service Control Manager.
type windowsService struct {
	runFunc RunFunc
	opts    Options
	c       canceller
	parent  context.Context
}

// NewService creates the platform service host.
func NewService(runFunc RunFunc, opts Options) Service {
	return &windowsService{runFunc: runFunc, opts: opts.withDefaults()}
}

// Run hands control to the SCM, or runs fn directly when started from a console.
func (s *windowsService) Run(ctx context.Context) error {
	if !s.IsService() {
		sigChan := make(chan os.Signal, 2)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		return supervise(ctx, &s.c, s.runFunc, sigChan, s.opts.StopTimeout)
	}
	s.parent = ctx
	return svc.Run(s.opts.Name, s)
}

func (s *windowsService) Stop() error {
	s.c.stop()
	return nil
}

func (s *windowsService) IsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isService
}

// Execute implements svc.Handler.
func (s *windowsService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (svcSpecificEC bool, exitCode uint32) {
	log := logger.WithComponent("windows-service")

	const accepted = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	parent := s.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	s.c.set(cancel)

	done := make(chan error, 1)
	go func() {
		done <- s.runFunc(ctx)
	}()

	changes <- svc.Status{State: svc.Running, Accepts: accepted}
	log.Info().Str("service", s.opts.Name).Msg("Windows service started")

	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
				time.Sleep(100 * time.Millisecond)
				changes <- c.CurrentStatus

			case svc.Stop, svc.Shutdown:
				log.Info().Msg("Received stop request from service control manager")
				changes <- svc.Status{State: svc.StopPending, WaitHint: uint32(s.opts.StopTimeout / time.Millisecond)}
				s.Stop()

				select {
				case <-done:
				case <-time.After(s.opts.StopTimeout):
					log.Warn().Dur("timeout", s.opts.StopTimeout).Msg("Timeout waiting for keeper to stop")
				}

				changes <- svc.Status{State: svc.Stopped}
				return false, 0

			default:
				log.Warn().Int("cmd", int(c.Cmd)).Msg("Unexpected service control command")
			}

		case err := <-done:
			changes <- svc.Status{State: svc.Stopped}
			if err != nil {
				log.Error().Err(err).Msg("Keeper exited with error")
				return true, 1
			}
			return false, 0
		}
	}
}
