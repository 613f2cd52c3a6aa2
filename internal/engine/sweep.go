package engine

import (
	"context"

	"svckeeper/internal/logger"
	"svckeeper/internal/metrics"
	"svckeeper/internal/svcmgr"
)

// Sweep makes one pass over the targets file before the steady-state loop.
// Running targets are stopped; any target that cannot be queried or stopped
// is removed from the file. Only a failure to read the file is returned.
func (e *Engine) Sweep(ctx context.Context) error {
	log := logger.WithComponent("sweep")

	names, err := e.store.ReadAll()
	if err != nil {
		return err
	}
	log.Info().Strs("services", names).Msg("Startup sweep")

	for _, name := range names {
		if ctx.Err() != nil {
			return nil
		}

		st, err := e.mgr.Query(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("service", name).Msg("Failed to query service")
			e.disqualify(name, Outcome{Status: svcmgr.StatusOther, Err: err}, metrics.PhaseSweep)
			continue
		}

		if st != svcmgr.StatusRunning {
			e.history.Set(name, st)
			continue
		}

		outcome := e.enforce(ctx, name)
		if ctx.Err() != nil {
			return nil
		}
		if !outcome.Stopped() {
			e.disqualify(name, outcome, metrics.PhaseSweep)
			continue
		}
		e.history.Set(name, svcmgr.StatusStopped)
	}
	return nil
}
