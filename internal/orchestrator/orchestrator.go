// Package orchestrator implements the Orchestrator: it
// drives the per-target pipeline (resolve → connect → run checks →
// evaluate rules → assemble prompt → call LLM → ingest) across a bounded
// worker pool, one goroutine per in-flight target, each running its own
// target strictly single-threaded.
package orchestrator

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/telemetry/metrics"
)

// DefaultConcurrency is the default worker pool size.
const DefaultConcurrency = 4

// PipelineFunc drives one target's entire pipeline and returns the Run it
// produced (even a partial one) alongside any error that compromised the
// run's integrity. A check-local or connector-local failure must already
// be folded into Run — it is not this error.
type PipelineFunc func(ctx context.Context, target domain.Target) (domain.Run, error)

// TargetResult is reported for every target — the Orchestrator "never
// silently drops a target".
type TargetResult struct {
	Target domain.Target
	Run    domain.Run
	Err    error
}

// Orchestrator runs PipelineFunc across many targets under a bounded
// worker pool.
type Orchestrator struct {
	Concurrency int
	Log         *logrus.Entry
	Metrics     *metrics.Metrics
}

// New constructs an Orchestrator; concurrency <= 0 uses DefaultConcurrency.
func New(concurrency int, log *logrus.Entry, m *metrics.Metrics) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{Concurrency: concurrency, Log: log, Metrics: m}
}

// Run drives pipeline for every target. A single cancellation on ctx
// aborts all in-flight and not-yet-started targets; each worker still returns a
// TargetResult for the target it was running so nothing is silently
// dropped.
func (o *Orchestrator) Run(ctx context.Context, targets []domain.Target, pipeline PipelineFunc) []TargetResult {
	results := make([]TargetResult, len(targets))

	group, gctx := errgroup.WithContext(detachCancelPropagation(ctx))
	group.SetLimit(o.Concurrency)

	var mu sync.Mutex
	if o.Metrics != nil {
		o.Metrics.TargetsInFlight.Set(0)
	}

	for i, target := range targets {
		i, target := i, target
		group.Go(func() error {
			if o.Metrics != nil {
				o.Metrics.TargetsInFlight.Inc()
				defer o.Metrics.TargetsInFlight.Dec()
			}

			run, err := pipeline(gctx, target)

			mu.Lock()
			results[i] = TargetResult{Target: target, Run: run, Err: err}
			mu.Unlock()

			if o.Log != nil {
				entry := o.Log.WithField("technology", string(target.Technology)).WithField("company_id", target.CompanyID)
				if err != nil {
					entry.WithError(err).Warn("target pipeline finished with an integrity-compromising error")
				} else {
					entry.Info("target pipeline finished")
				}
			}
			// A per-target error never aborts sibling targets: errors local
			// to one check or one target never propagate up. errgroup's ctx cancellation
			// is reserved for the caller's own cancellation, so this
			// goroutine always returns nil regardless of pipeline err.
			return nil
		})
	}

	_ = group.Wait()
	return results
}

// detachCancelPropagation returns ctx unchanged. errgroup.WithContext
// would otherwise cancel siblings on the first non-nil return from Go();
// since PipelineFunc errors are reported via TargetResult rather than
// returned from Go(), no such propagation happens — this wrapper exists
// only to make that design decision visible at the call site.
func detachCancelPropagation(ctx context.Context) context.Context { return ctx }
