package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/grievance-desk/sla-service/internal/escalation"
	"github.com/grievance-desk/sla-service/internal/sla"
	"github.com/grievance-desk/sla-service/pkg/util"
)

// ErrCycleInProgress is returned when a cycle is requested while another one
// holds the guard, in this process or, with a lease, in another replica.
var ErrCycleInProgress = errors.New("escalation cycle already in progress")

const releaseTimeout = 5 * time.Second

// CycleRunner computes the mutations of one cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) ([]escalation.Mutation, error)
}

// MutationApplier persists one mutation.
type MutationApplier interface {
	ApplyMutation(ctx context.Context, m escalation.Mutation, at time.Time) error
}

// CycleLock is a cross-process lock taken for the duration of a cycle.
type CycleLock interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

// CycleRecorder receives cycle metrics.
type CycleRecorder interface {
	RecordCycle(outcome string, at time.Time, duration time.Duration)
	RecordCycleSkipped()
	RecordMutations(applied, failed int)
}

// EscalationWorkerConfig controls cadence and bounds of the cycle.
type EscalationWorkerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	At        time.Time     `json:"at"`
	Mutations int           `json:"mutations"`
	Applied   int           `json:"applied"`
	Conflicts int           `json:"conflicts"`
	Failed    int           `json:"failed"`
	Partial   bool          `json:"partial"`
	Duration  time.Duration `json:"duration"`
}

// EscalationWorker runs the escalation cycle on a ticker and on demand.
type EscalationWorker struct {
	cfg      EscalationWorkerConfig
	runner   CycleRunner
	applier  MutationApplier
	lock     CycleLock
	recorder CycleRecorder
	clock    sla.Clock
	logger   *zap.Logger

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// EscalationWorkerDependencies bundles collaborators. Lock and Recorder are
// optional.
type EscalationWorkerDependencies struct {
	Runner   CycleRunner
	Applier  MutationApplier
	Lock     CycleLock
	Recorder CycleRecorder
	Clock    sla.Clock
	Logger   *zap.Logger
}

// NewEscalationWorker creates the worker.
func NewEscalationWorker(cfg EscalationWorkerConfig, deps EscalationWorkerDependencies) *EscalationWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 || cfg.Timeout > cfg.Interval {
		cfg.Timeout = cfg.Interval
	}
	if deps.Clock == nil {
		deps.Clock = sla.SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &EscalationWorker{
		cfg:      cfg,
		runner:   deps.Runner,
		applier:  deps.Applier,
		lock:     deps.Lock,
		recorder: deps.Recorder,
		clock:    deps.Clock,
		logger:   deps.Logger.Named("escalation"),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the ticker loop.
func (w *EscalationWorker) Start(ctx context.Context) {
	w.logger.Info("starting escalation worker",
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("timeout", w.cfg.Timeout))

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the ticker loop and waits for a running cycle to finish.
func (w *EscalationWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.logger.Info("escalation worker stopped")
}

func (w *EscalationWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
				w.logger.Warn("escalation cycle incomplete", zap.Error(err))
			}
		}
	}
}

// RunOnce runs a single cycle: evaluate at the current instant, then apply
// every returned mutation. Mutations computed before a storage failure or
// timeout are still applied. Failed applies are left for the next cycle.
func (w *EscalationWorker) RunOnce(ctx context.Context) (CycleReport, error) {
	if !w.running.CompareAndSwap(false, true) {
		w.skipped()
		return CycleReport{}, ErrCycleInProgress
	}
	defer w.running.Store(false)

	if w.lock != nil {
		unlock, ok, err := w.lock.TryLock(ctx)
		switch {
		case err != nil:
			// Writes are compare-and-swap, so running without the lease is safe.
			w.logger.Warn("cycle lease unavailable; running unguarded", zap.Error(err))
		case !ok:
			w.skipped()
			return CycleReport{}, ErrCycleInProgress
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
				defer cancel()
				if err := unlock(releaseCtx); err != nil {
					w.logger.Warn("release cycle lease", zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	now := w.clock()
	report := CycleReport{At: now}

	cycleCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	mutations, cycleErr := w.runner.RunCycle(cycleCtx, now)
	cancel()

	report.Mutations = len(mutations)
	report.Partial = cycleErr != nil

	for i, m := range mutations {
		if ctx.Err() != nil {
			report.Failed += len(mutations) - i
			break
		}
		err := w.applier.ApplyMutation(ctx, m, now)
		switch {
		case err == nil:
			report.Applied++
		case isConflict(err):
			report.Conflicts++
			w.logger.Info("issue changed during cycle; deferring", zap.String("issue_id", m.IssueID))
		default:
			report.Failed++
			w.logger.Warn("apply mutation", zap.String("issue_id", m.IssueID), zap.Error(err))
		}
	}
	report.Duration = time.Since(start)

	outcome := "ok"
	switch {
	case cycleErr != nil && len(mutations) == 0:
		outcome = "failed"
	case cycleErr != nil || report.Failed > 0:
		outcome = "partial"
	}
	if w.recorder != nil {
		w.recorder.RecordCycle(outcome, now, report.Duration)
		w.recorder.RecordMutations(report.Applied, report.Failed+report.Conflicts)
	}

	w.logger.Info("escalation cycle finished",
		zap.Time("at", now),
		zap.String("outcome", outcome),
		zap.Int("mutations", report.Mutations),
		zap.Int("applied", report.Applied),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))

	return report, cycleErr
}

func (w *EscalationWorker) skipped() {
	w.logger.Debug("escalation cycle skipped; another cycle in progress")
	if w.recorder != nil {
		w.recorder.RecordCycleSkipped()
	}
}

func isConflict(err error) bool {
	var de *util.DomainError
	return errors.As(err, &de) && de.Code == "CONFLICT"
}
