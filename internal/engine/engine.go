// Package engine keeps the services listed in the targets file stopped and
// records services that stop on their own into that file.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"svckeeper/internal/journal"
	"svckeeper/internal/logger"
	"svckeeper/internal/metrics"
	"svckeeper/internal/store"
	"svckeeper/internal/svcmgr"
	"svckeeper/internal/tracker"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultInterval    = 5 * time.Second
	DefaultStopTimeout = 10 * time.Second
)

// TargetStore is the subset of *store.TargetStore used by the engine.
type TargetStore interface {
	ReadAll() ([]string, error)
	AppendMissing(candidates []string) ([]string, error)
	RemoveOne(name string) (bool, error)
}

// Options configures an Engine.
type Options struct {
	Interval    time.Duration
	StopTimeout time.Duration
	Clock       clock.Clock
	Journal     journal.Recorder
}

// Engine owns the status history and drives reconciliation cycles. Cycles
// never overlap; Run is the only goroutine that touches the history.
type Engine struct {
	store       TargetStore
	mgr         svcmgr.Manager
	history     *tracker.History
	clk         clock.Clock
	interval    time.Duration
	stopTimeout time.Duration
	journal     journal.Recorder
	trigger     chan struct{}
}

// New creates an Engine.
func New(st TargetStore, mgr svcmgr.Manager, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	return &Engine{
		store:       st,
		mgr:         mgr,
		history:     tracker.New(),
		clk:         opts.Clock,
		interval:    opts.Interval,
		stopTimeout: opts.StopTimeout,
		journal:     opts.Journal,
		trigger:     make(chan struct{}, 1),
	}
}

// Trigger requests a cycle before the interval elapses. Requests made while
// one is already pending are coalesced.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run performs the startup sweep, then runs a cycle every interval until ctx
// is cancelled. Cycle failures are logged and never end the loop.
func (e *Engine) Run(ctx context.Context) error {
	log := logger.WithComponent("engine")
	log.Info().
		Dur("interval", e.interval).
		Dur("stop_timeout", e.stopTimeout).
		Msg("Reconciliation engine starting")

	if err := e.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("Startup sweep failed")
	}

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Reconciliation engine stopped")
			return nil
		}

		if err := e.RunCycle(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Reconciliation cycle failed")
		}

		timer := e.clk.Timer(e.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Reconciliation engine stopped")
			return nil
		case <-timer.C:
		case <-e.trigger:
			timer.Stop()
			log.Debug().Msg("Cycle triggered early")
		}
	}
}

// RunCycle runs one reconciliation cycle. The order is fixed: read targets,
// enumerate, detect edges, update history, record edges, then enforce against
// the targets read at the start of the cycle. A returned error means the cycle
// was aborted before enforcement.
func (e *Engine) RunCycle(ctx context.Context) error {
	log := logger.WithComponent("engine")
	start := e.clk.Now()
	metrics.IncCycle()
	defer func() { metrics.ObserveCycleDuration(e.clk.Since(start)) }()

	targets, err := e.store.ReadAll()
	if err != nil {
		return e.cycleError(err)
	}
	metrics.SetTargets(len(targets))

	snaps, err := e.mgr.Enumerate(ctx)
	if err != nil {
		return e.cycleError(err)
	}

	stopped := e.history.Stopped(snaps)
	e.history.Record(snaps)
	e.recordDrift(stopped)

	targetSet := store.NewNameSet(targets)
	attempted := store.NewNameSet(nil)
	for _, s := range snaps {
		if !s.IsRunning() || !targetSet.Has(s.Name) || !attempted.Add(s.Name) {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		outcome := e.enforce(ctx, s.Name)
		if ctx.Err() != nil {
			// interrupted waits say nothing about the service
			return ctx.Err()
		}
		if !outcome.Stopped() {
			e.disqualify(s.Name, outcome, metrics.PhaseCycle)
		}
	}

	log.Debug().
		Int("targets", len(targets)).
		Int("services", len(snaps)).
		Int("drift", len(stopped)).
		Int("enforced", len(attempted)).
		Int("tracked", e.history.Len()).
		Msg("Reconciliation cycle complete")
	return nil
}

func (e *Engine) cycleError(err error) error {
	metrics.IncCycleError()
	e.journal.Record(journal.Event{
		Time:   e.clk.Now(),
		Kind:   journal.KindCycleError,
		Reason: err.Error(),
	})
	return err
}

// recordDrift appends newly stopped services to the targets file. A write
// failure is logged; enforcement still runs.
func (e *Engine) recordDrift(stopped []string) {
	if len(stopped) == 0 {
		return
	}
	log := logger.WithComponent("engine")
	metrics.AddDrift(len(stopped))

	now := e.clk.Now()
	for _, name := range stopped {
		st, _ := e.history.Get(name)
		log.Info().Str("service", name).Str("status", string(st)).Msg("Service stopped outside of enforcement")
		e.journal.Record(journal.Event{Time: now, Kind: journal.KindDrift, Service: name, Status: string(st)})
	}

	added, err := e.store.AppendMissing(stopped)
	if err != nil {
		log.Error().Err(err).Strs("services", stopped).Msg("Failed to record stopped services")
		return
	}
	for _, name := range added {
		log.Info().Str("service", name).Msg("Added service to targets file")
		e.journal.Record(journal.Event{Time: now, Kind: journal.KindRecorded, Service: name})
	}
}

// disqualify removes a service whose stop failed from the targets file.
func (e *Engine) disqualify(name string, outcome Outcome, phase string) {
	log := logger.WithComponent("engine")
	metrics.IncDisqualified(phase)

	removed, err := e.store.RemoveOne(name)
	if err != nil {
		log.Error().Err(err).Str("service", name).Msg("Failed to remove service from targets file")
		return
	}
	log.Warn().
		Str("service", name).
		Str("phase", phase).
		Str("status", string(outcome.Status)).
		Str("kind", errorKind(outcome.Err)).
		AnErr("reason", outcome.Err).
		Bool("removed", removed).
		Msg("Service could not be stopped, removed from targets")
	e.journal.Record(journal.Event{
		Time:    e.clk.Now(),
		Kind:    journal.KindDisqualified,
		Service: name,
		Status:  string(outcome.Status),
		Reason:  outcome.Reason(),
	})
}

// errorKind names the svcmgr failure kind of err.
func errorKind(err error) string {
	for _, kind := range []error{svcmgr.ErrNotFound, svcmgr.ErrAccessDenied, svcmgr.ErrStopRejected, svcmgr.ErrTimeout} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "unknown"
}
