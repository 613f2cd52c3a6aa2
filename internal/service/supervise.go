package service

import (
	"context"
	"os"
	"sync"
	"time"

	"svckeeper/internal/logger"
)

// canceller cancels a run context at most once.
type canceller struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

func (c *canceller) set(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = cancel
	if c.stopped {
		cancel()
	}
}

func (c *canceller) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
}

// supervise runs fn and returns its error. The first value on signals
// cancels fn; a second one, or stopTimeout elapsing, returns without waiting.
func supervise(ctx context.Context, c *canceller, fn RunFunc, signals <-chan os.Signal, stopTimeout time.Duration) error {
	log := logger.WithComponent("service")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.set(cancel)

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case sig := <-signals:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		c.stop()
	case <-ctx.Done():
	}

	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case sig := <-signals:
		log.Warn().Str("signal", sig.String()).Msg("Received second signal, forcing exit")
		return nil
	case <-timer.C:
		log.Warn().Dur("timeout", stopTimeout).Msg("Timeout waiting for keeper to stop")
		return nil
	}
}
