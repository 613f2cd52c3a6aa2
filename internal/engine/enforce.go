package engine

import (
	"context"

	"svckeeper/internal/journal"
	"svckeeper/internal/logger"
	"svckeeper/internal/metrics"
	"svckeeper/internal/svcmgr"
)

// Outcome is the result of one stop attempt: either the service reached
// Stopped, or Err says why not.
type Outcome struct {
	Status svcmgr.Status
	Err    error
}

// Stopped reports whether the attempt succeeded.
func (o Outcome) Stopped() bool {
	return o.Err == nil && o.Status == svcmgr.StatusStopped
}

// Reason describes a failed outcome.
func (o Outcome) Reason() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if o.Status != svcmgr.StatusStopped {
		return "status " + string(o.Status)
	}
	return ""
}

// enforce stops name and waits up to the stop timeout for it to report Stopped.
func (e *Engine) enforce(ctx context.Context, name string) Outcome {
	log := logger.WithComponent("engine")
	log.Info().Str("service", name).Msg("Stopping service")

	outcome := e.stop(ctx, name)
	if outcome.Stopped() {
		metrics.IncStopAttempt(metrics.ResultStopped)
		log.Info().Str("service", name).Msg("Service stopped")
		e.journal.Record(journal.Event{
			Time:    e.clk.Now(),
			Kind:    journal.KindEnforced,
			Service: name,
			Status:  string(outcome.Status),
		})
		return outcome
	}

	// a stop cut short by shutdown says nothing about the service
	if ctx.Err() != nil {
		log.Debug().Str("service", name).Msg("Stop attempt interrupted")
		return outcome
	}

	metrics.IncStopAttempt(metrics.ResultFailed)
	log.Warn().
		Str("service", name).
		Str("status", string(outcome.Status)).
		AnErr("reason", outcome.Err).
		Msg("Failed to stop service")
	return outcome
}

func (e *Engine) stop(ctx context.Context, name string) Outcome {
	if err := e.mgr.Stop(ctx, name); err != nil {
		return Outcome{Status: svcmgr.StatusOther, Err: err}
	}

	st := e.mgr.AwaitStatus(ctx, name, svcmgr.StatusStopped, e.stopTimeout)
	if st != svcmgr.StatusStopped {
		return Outcome{
			Status: st,
			Err: &svcmgr.OperationError{
				Op:      "await",
				Service: name,
				Kind:    svcmgr.ErrTimeout,
			},
		}
	}
	return Outcome{Status: st}
}
