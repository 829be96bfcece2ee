// Package runner implements the Check Runner: it drives one
// target's resolved action list against one Connector, isolates failures
// into status=error Findings, enforces per-check deadlines, and skips
// remaining checks once the Connector is judged persistently unavailable.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
	"github.com/dbhealthcheck/engine/internal/engine/store"
	"github.com/dbhealthcheck/engine/internal/errs"
	"github.com/dbhealthcheck/engine/internal/telemetry/metrics"
)

// Defaults for check and target execution budgets.
const (
	DefaultCheckTimeout = 30 * time.Second
	DefaultCheckBudget  = 60 * time.Second
	DefaultTargetBudget = 10 * time.Minute
	CancellationGrace   = 5 * time.Second
)

// EventKind mirrors domain.ActionKind for the pass-through stream the
// Report Writer consumes: static text/header actions never produce a
// Finding, but must still reach the report.
type EventKind = domain.ActionKind

// Event is one item of the ordered report stream: either a Finding-backed
// check result or a pass-through header/static-text action.
type Event struct {
	Kind    EventKind
	Ref     string // header/static-text name, or check_id
	Finding *domain.Finding
}

// Result is everything one target's check phase produced.
type Result struct {
	Store                  *store.Store
	Events                 []Event
	ChecksSkippedConnector int // counter: checks skipped because the connector went down or the target budget ran out
}

// Runner executes one target's resolved action list single-threaded,
// never running two checks for the same target concurrently.
type Runner struct {
	Conn         connector.Connector
	Plugin       *resolver.Plugin
	Settings     *config.Settings
	Log          *logrus.Entry
	Metrics      *metrics.Metrics
	CheckTimeout time.Duration
	TargetBudget time.Duration
}

// New constructs a Runner with sensible defaults for any zero-value
// duration fields.
func New(conn connector.Connector, plugin *resolver.Plugin, settings *config.Settings, log *logrus.Entry, m *metrics.Metrics) *Runner {
	return &Runner{
		Conn:         conn,
		Plugin:       plugin,
		Settings:     settings,
		Log:          log,
		Metrics:      m,
		CheckTimeout: DefaultCheckTimeout,
		TargetBudget: DefaultTargetBudget,
	}
}

// Run executes actions in order. ctx carries the
// per-target deadline and/or cancellation signal; Run itself never spawns
// concurrent checks.
func (r *Runner) Run(ctx context.Context, actions []domain.Action) *Result {
	st := store.New()
	res := &Result{Store: st}

	connectorDown := false
	var cumulative time.Duration

	for _, action := range actions {
		if !action.Guard.Evaluate(r.Settings) {
			continue
		}

		switch action.Kind {
		case domain.ActionHeader, domain.ActionStaticText:
			res.Events = append(res.Events, Event{Kind: action.Kind, Ref: action.Ref})
			continue
		case domain.ActionRunCheck:
			// fallthrough below
		default:
			continue
		}

		checkID := action.Ref

		if connectorDown || cumulative >= r.TargetBudget {
			f := r.skippedFinding(checkID)
			res.ChecksSkippedConnector++
			_ = st.Add(f)
			res.Events = append(res.Events, Event{Kind: domain.ActionRunCheck, Ref: checkID, Finding: &f})
			if r.Metrics != nil {
				r.Metrics.ChecksSkipped.WithLabelValues(r.Plugin.ID, "connector_unavailable").Inc()
			}
			continue
		}

		fn, ok := r.Plugin.Checks[checkID]
		if !ok {
			f := domain.Finding{
				CheckID:   checkID,
				Status:    domain.StatusError,
				StartedAt: time.Now(),
				Error:     &domain.FindingError{Kind: string(errs.CheckError), Message: fmt.Sprintf("no check registered for id %q", checkID)},
			}
			_ = st.Add(f)
			res.Events = append(res.Events, Event{Kind: domain.ActionRunCheck, Ref: checkID, Finding: &f})
			continue
		}

		f := r.runOne(ctx, checkID, fn)
		cumulative += time.Duration(f.DurationMS) * time.Millisecond
		_ = st.Add(f)
		res.Events = append(res.Events, Event{Kind: domain.ActionRunCheck, Ref: checkID, Finding: &f})

		if r.Metrics != nil {
			r.Metrics.RecordCheck(r.Plugin.ID, checkID, string(f.Status), time.Duration(f.DurationMS)*time.Millisecond)
		}

		if f.Status == domain.StatusError && isConnectorFatal(f.Error) {
			connectorDown = true
			if r.Log != nil {
				r.Log.WithField("check_id", checkID).Warn("connector judged persistently unavailable; skipping remaining checks")
			}
		}
	}

	st.Seal()
	return res
}

func (r *Runner) skippedFinding(checkID string) domain.Finding {
	return domain.Finding{
		CheckID:   checkID,
		Status:    domain.StatusSkipped,
		StartedAt: time.Now(),
	}
}

// isConnectorFatal reports whether a Finding's error represents a
// persistent connector problem that should short-circuit the rest of the
// report.
func isConnectorFatal(err *domain.FindingError) bool {
	if err == nil {
		return false
	}
	switch errs.Kind(err.Kind) {
	case errs.ConnectorAuth, errs.ConnectorConnect, errs.ConnectorUnavail:
		return true
	}
	return false
}

// runOne enforces the per-check deadline, recovers from panics, and
// honors cancellation with a grace period.
func (r *Runner) runOne(parent context.Context, checkID string, fn resolver.CheckFunc) domain.Finding {
	start := time.Now()
	timeout := r.checkTimeoutFor(checkID)
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	type outcome struct{ finding domain.Finding }
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{finding: domain.Finding{
					CheckID:    checkID,
					Status:     domain.StatusError,
					StartedAt:  start,
					DurationMS: time.Since(start).Milliseconds(),
					Error:      &domain.FindingError{Kind: string(errs.CheckError), Message: fmt.Sprintf("panic: %v", rec)},
				}}
			}
		}()
		f := fn(ctx, r.Conn, r.Settings)
		f.CheckID = checkID
		if f.StartedAt.IsZero() {
			f.StartedAt = start
		}
		f.DurationMS = time.Since(start).Milliseconds()
		done <- outcome{finding: f}
	}()

	select {
	case out := <-done:
		return out.finding
	case <-parent.Done():
		grace := time.NewTimer(CancellationGrace)
		defer grace.Stop()
		select {
		case out := <-done:
			return out.finding
		case <-grace.C:
			return domain.Finding{
				CheckID:    checkID,
				Status:     domain.StatusSkipped,
				StartedAt:  start,
				DurationMS: time.Since(start).Milliseconds(),
			}
		}
	case <-ctx.Done():
		return domain.Finding{
			CheckID:    checkID,
			Status:     domain.StatusError,
			StartedAt:  start,
			DurationMS: time.Since(start).Milliseconds(),
			Error:      &domain.FindingError{Kind: string(errs.ConnectorTimeout), Message: "check exceeded its deadline"},
		}
	}
}

func (r *Runner) checkTimeoutFor(checkID string) time.Duration {
	key := "check_timeout_" + checkID
	if r.Settings != nil {
		if v, ok := r.Settings.Lookup(key); ok {
			if ms, ok := v.(int); ok && ms > 0 {
				return time.Duration(ms) * time.Millisecond
			}
		}
	}
	if r.CheckTimeout > 0 {
		return r.CheckTimeout
	}
	return DefaultCheckTimeout
}
