// Command dbhealthcheck runs plugin-driven health checks against
// database and data-infrastructure targets, evaluates severity rules
// over the results, optionally narrates them through an LLM, and
// persists a trend record.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/llm"
	"github.com/dbhealthcheck/engine/internal/orchestrator"
	"github.com/dbhealthcheck/engine/internal/platform/database"
	"github.com/dbhealthcheck/engine/internal/telemetry/logging"
	"github.com/dbhealthcheck/engine/internal/telemetry/metrics"
	"github.com/dbhealthcheck/engine/internal/trend"
)

// exitError carries the exit code a failure should produce.
// Codes: 2 config error, 3 target error (every target failed), 4 partial
// success (some targets succeeded, some failed), 5 internal error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(5)
	}
}

func run(ctx context.Context, args []string) error {
	root := flag.NewFlagSet("dbhealthcheck", flag.ContinueOnError)
	root.SetOutput(io.Discard)
	if err := root.Parse(args); err != nil {
		return usageError(err)
	}

	remaining := root.Args()
	if len(remaining) == 0 {
		return usageError(errors.New("no command specified"))
	}

	switch remaining[0] {
	case "run":
		return handleRun(ctx, remaining[1:], false)
	case "generate-prompt-only":
		return handleRun(ctx, remaining[1:], true)
	case "list-reports":
		return handleListReports(remaining[1:])
	case "list-plugins":
		return handleListPlugins()
	case "replay-spool":
		return handleReplaySpool(ctx, remaining[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		return usageError(fmt.Errorf("unknown command %q", remaining[0]))
	}
}

func usageError(err error) error {
	printRootUsage()
	return &exitError{code: 2, err: err}
}

func printRootUsage() {
	fmt.Println(`dbhealthcheck — multi-technology database health check engine

Usage:
  dbhealthcheck <command> [flags]

Commands:
  run                    Run checks against every target in a targets file
  generate-prompt-only   Run checks and assemble the LLM prompt, but never call the LLM or ingest trend data
  list-reports           List the reports a plugin declares
  list-plugins           List every registered plugin
  replay-spool           Re-attempt trend ingest for every spooled run

Flags of run and generate-prompt-only:
  --targets <path>       JSON file describing the targets to run (required)
`)
}

func newLogger(cfg *config.Config) *logrus.Entry {
	return logging.New("dbhealthcheck", cfg.LogLevel, cfg.LogFormat).WithContext(context.Background())
}

func handleListPlugins() error {
	registry := buildRegistry()
	techs := registry.Technologies()
	names := make([]string, 0, len(techs))
	for _, t := range techs {
		names = append(names, string(t))
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func handleListReports(args []string) error {
	fs := flag.NewFlagSet("list-reports", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	techFlag := fs.String("technology", "", "technology to list reports for")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	if *techFlag == "" {
		return usageError(errors.New("list-reports requires --technology"))
	}
	registry := buildRegistry()
	plugin, ok := registry.Plugin(domain.Technology(*techFlag))
	if !ok {
		return &exitError{code: 2, err: fmt.Errorf("unknown technology %q", *techFlag)}
	}
	names := plugin.ReportNames()
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func handleReplaySpool(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("replay-spool", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	cfg, err := config.Load()
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	log := newLogger(cfg)

	spool, err := trend.NewSpool(cfg.SpoolDir)
	if err != nil {
		return &exitError{code: 5, err: err}
	}
	if cfg.TrendDBDSN == "" {
		return &exitError{code: 2, err: errors.New("replay-spool requires TREND_DB_DSN to be configured")}
	}
	db, err := database.Open(ctx, cfg.TrendDBDSN)
	if err != nil {
		return &exitError{code: 5, err: err}
	}
	defer db.Close()

	store := trend.NewStore(db, nil)
	replayed, err := trend.Replay(ctx, spool, store)
	if err != nil {
		return &exitError{code: 5, err: err}
	}
	log.WithField("count", len(replayed)).Info("replayed spooled runs")
	for _, id := range replayed {
		fmt.Println(id)
	}
	return nil
}

func handleRun(ctx context.Context, args []string, promptOnly bool) error {
	name := "run"
	if promptOnly {
		name = "generate-prompt-only"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	targetsFlag := fs.String("targets", "", "JSON file describing targets to run")
	concurrencyFlag := fs.Int("concurrency", 0, "worker pool size (default from config)")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	if *targetsFlag == "" {
		return usageError(errors.New(name + " requires --targets"))
	}

	cfg, err := config.Load()
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	log := newLogger(cfg)
	m := metrics.New()

	targetConfigs, err := loadTargetsFile(*targetsFlag)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	if err := rejectDuplicateTargets(targetConfigs); err != nil {
		return &exitError{code: 2, err: err}
	}

	registry := buildRegistry()

	var adapter *llm.Adapter
	if !promptOnly && cfg.LLMEnabled {
		adapter = llm.New(llm.AnthropicCompleter{})
	}

	deps := pipelineDeps{registry: registry, cfg: cfg, log: log, metrics: m, llmAdapter: adapter, promptOnly: promptOnly}

	byKey := make(map[string]targetConfig, len(targetConfigs))
	targets := make([]domain.Target, 0, len(targetConfigs))
	for _, tc := range targetConfigs {
		t := tc.toDomainTarget()
		byKey[targetKey(t)] = tc
		targets = append(targets, t)
	}

	concurrency := cfg.WorkerPoolSize
	if *concurrencyFlag > 0 {
		concurrency = *concurrencyFlag
	}
	orch := orchestrator.New(concurrency, log, m)

	outcomes := make(map[string]pipelineOutcome, len(targetConfigs))
	var outcomesMu sync.Mutex
	var pipelineErrs []error

	results := orch.Run(ctx, targets, func(pctx context.Context, target domain.Target) (domain.Run, error) {
		tc := byKey[targetKey(target)]
		outcome, err := runTargetPipeline(pctx, deps, tc)
		if err == nil {
			outcomesMu.Lock()
			outcomes[targetKey(target)] = outcome
			outcomesMu.Unlock()
		}
		return outcome.Run, err
	})

	var storeForIngest *trend.Store
	var spool *trend.Spool
	if !promptOnly && cfg.TrendDBDSN != "" {
		if db, dbErr := database.Open(ctx, cfg.TrendDBDSN); dbErr == nil {
			defer db.Close()
			storeForIngest = trend.NewStore(db, nil)
		} else {
			log.WithError(dbErr).Warn("trend database unavailable; runs will be spooled instead")
		}
	}
	if !promptOnly {
		if s, spoolErr := trend.NewSpool(cfg.SpoolDir); spoolErr == nil {
			spool = s
		}
	}

	succeeded, failed := 0, 0
	for _, res := range results {
		key := targetKey(res.Target)
		outcome := outcomes[key]
		if res.Err != nil {
			failed++
			pipelineErrs = append(pipelineErrs, fmt.Errorf("%s/%s: %w", res.Target.Technology, res.Target.ClusterName, res.Err))
			m.RunsTotal.WithLabelValues(string(res.Target.Technology), "error").Inc()
			continue
		}
		succeeded++
		m.RunsTotal.WithLabelValues(string(res.Target.Technology), "success").Inc()
		m.HealthScore.WithLabelValues(string(res.Target.Technology), res.Target.ClusterName).Set(float64(res.Run.HealthScore))

		if promptOnly {
			fmt.Println(outcome.PromptText)
			continue
		}

		fmt.Println(outcome.ReportText)

		if storeForIngest != nil {
			if err := storeForIngest.IngestRun(ctx, res.Run, nil); err != nil {
				log.WithError(err).Warn("trend ingest failed; spooling run for later replay")
				m.TrendIngestTotal.WithLabelValues("spooled").Inc()
				if spool != nil {
					if _, werr := spool.Write(res.Run); werr != nil {
						log.WithError(werr).Error("failed to spool run after trend ingest failure")
					}
				}
			} else {
				m.TrendIngestTotal.WithLabelValues("ingested").Inc()
			}
		} else if spool != nil {
			if _, werr := spool.Write(res.Run); werr != nil {
				log.WithError(werr).Error("failed to spool run")
			}
			m.TrendIngestTotal.WithLabelValues("spooled").Inc()
		}
	}

	switch {
	case failed == 0:
		return nil
	case succeeded == 0:
		return &exitError{code: 3, err: combineErrors(pipelineErrs)}
	default:
		return &exitError{code: 4, err: combineErrors(pipelineErrs)}
	}
}

func targetKey(t domain.Target) string {
	raw, _ := json.Marshal(struct {
		Technology  domain.Technology
		CompanyID   string
		ClusterName string
	}{t.Technology, t.CompanyID, t.ClusterName})
	return string(raw)
}

func rejectDuplicateTargets(targets []targetConfig) error {
	seen := make(map[string]bool, len(targets))
	for _, tc := range targets {
		key := targetKey(tc.toDomainTarget())
		if seen[key] {
			return fmt.Errorf("duplicate target for technology=%s company_id=%s cluster_name=%s", tc.Technology, tc.CompanyID, tc.ClusterName)
		}
		seen[key] = true
	}
	return nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d target(s) failed:", len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return errors.New(msg)
}

func getenvFallback(ref string) string {
	return os.Getenv(ref)
}
