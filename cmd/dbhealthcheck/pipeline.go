package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
	"github.com/dbhealthcheck/engine/internal/engine/runner"
	"github.com/dbhealthcheck/engine/internal/llm"
	"github.com/dbhealthcheck/engine/internal/prompt"
	"github.com/dbhealthcheck/engine/internal/report"
	"github.com/dbhealthcheck/engine/internal/rules"
	"github.com/dbhealthcheck/engine/internal/telemetry/logging"
	"github.com/dbhealthcheck/engine/internal/telemetry/metrics"
)

// pipelineDeps holds everything one target's pipeline run needs that is
// shared across targets (registry, metrics, logger, optional LLM adapter).
type pipelineDeps struct {
	registry   *resolver.Registry
	cfg        *config.Config
	log        *logrus.Entry
	metrics    *metrics.Metrics
	llmAdapter *llm.Adapter
	promptOnly bool
}

// pipelineOutcome is what one target's full run produced, beyond the
// domain.Run itself — the rendered report and (if requested) the prompt.
type pipelineOutcome struct {
	Run         domain.Run
	ReportText  string
	PromptText  string
	PromptAudit prompt.Audit
}

func runTargetPipeline(ctx context.Context, deps pipelineDeps, tc targetConfig) (pipelineOutcome, error) {
	plugin, reportDef, err := deps.registry.Resolve(tc.Technology, tc.Report)
	if err != nil {
		return pipelineOutcome{}, err
	}

	settings, err := config.Build(plugin.Schema, tc.Settings)
	if err != nil {
		return pipelineOutcome{}, fmt.Errorf("config: %w", err)
	}

	openCtx, cancelOpen := context.WithTimeout(ctx, deps.cfg.ConnectorOpenTimeout)
	conn, err := openConnector(openCtx, tc.Technology, tc.toConnectionInfo())
	cancelOpen()
	if err != nil {
		return pipelineOutcome{}, fmt.Errorf("connector: %w", err)
	}
	defer conn.Close(ctx)

	describeCtx, cancelDescribe := context.WithTimeout(ctx, deps.cfg.QueryTimeout)
	meta, err := conn.Describe(describeCtx)
	cancelDescribe()
	if err != nil {
		return pipelineOutcome{}, fmt.Errorf("describe: %w", err)
	}

	runID := uuid.NewString()
	started := time.Now()
	ctx = logging.WithRunID(ctx, runID)
	log := deps.log.WithField("run_id", runID).WithField("target", tc.ClusterName)

	r := runner.New(conn, plugin, settings, log, deps.metrics)
	result := r.Run(ctx, reportDef.Actions)

	evaluator, err := rules.Compile(plugin.RuleSet, log)
	if err != nil {
		return pipelineOutcome{}, fmt.Errorf("rules: %w", err)
	}
	triggered := evaluator.Evaluate(runID, result.Store.Order(), result.Store.All(), settingsToMap(settings, plugin.Schema))

	critical, high, medium, _, _ := domain.SeverityCounts(triggered)
	healthScore := domain.HealthScore(critical, high, medium)

	target := tc.toDomainTarget()
	version := domain.VersionMetadata{
		Version: meta.Version, Major: meta.Major, Minor: meta.Minor,
		Environment: meta.Environment, NodeCount: meta.NodeCount,
	}

	run := domain.Run{
		RunID: runID, CompanyID: tc.CompanyID, Target: target,
		StartedAt: started, EndedAt: time.Now(), Version: version,
		HealthScore: healthScore, Findings: result.Store.All(),
		Triggered: triggered, FindingsOrder: result.Store.Order(),
	}

	outcome := pipelineOutcome{Run: run}

	if deps.cfg.PromptTokenBudget > 0 {
		assembler, err := prompt.NewAssembler(nil)
		if err != nil {
			return outcome, fmt.Errorf("prompt: %w", err)
		}
		assembler.RowLimit = deps.cfg.DefaultRowLimit
		promptText, audit, err := assembler.Assemble("dba", target, version, meta.Environment, time.Now(),
			result.Store.Order(), result.Store.All(), triggered, deps.cfg.PromptTokenBudget)
		if err != nil {
			return outcome, fmt.Errorf("prompt: %w", err)
		}
		outcome.PromptText = promptText
		outcome.PromptAudit = audit
	}

	narrative := ""
	if !deps.promptOnly && deps.llmAdapter != nil && deps.cfg.LLMEnabled && outcome.PromptText != "" {
		llmCtx, cancel := context.WithTimeout(ctx, deps.cfg.LLMTimeout)
		defer cancel()
		resp, err := deps.llmAdapter.Complete(llmCtx, llm.Request{
			Endpoint:        deps.cfg.LLMEndpoint,
			Model:           deps.cfg.LLMModel,
			Auth:            resolveLLMAPIKey(deps.cfg),
			MaxOutputTokens: deps.cfg.LLMMaxTokens,
			Temperature:     deps.cfg.LLMTemperature,
			Prompt:          outcome.PromptText,
		})
		if err != nil {
			log.WithError(err).Warn("llm adapter call failed; report proceeds without a narrative")
		} else {
			narrative = resp.Text
		}
	}

	writer, err := report.New()
	if err != nil {
		return outcome, fmt.Errorf("report: %w", err)
	}
	reportInput := report.BuildInput(target, version, healthScore, time.Now(), result.Events, triggered, narrative)
	reportText, err := writer.Render(reportInput)
	if err != nil {
		return outcome, fmt.Errorf("report: %w", err)
	}
	outcome.ReportText = reportText

	return outcome, nil
}

// settingsToMap exposes a Settings snapshot as a plain map for the Rule
// Evaluator's `settings.*` namespace. config.Settings keeps its
// internal map unexported, so this walks the schema's declared keys.
func settingsToMap(settings *config.Settings, schema config.Schema) map[string]any {
	out := make(map[string]any, len(schema))
	for key := range schema {
		if v, ok := settings.Lookup(key); ok {
			out[key] = v
		}
	}
	return out
}

func resolveLLMAPIKey(cfg *config.Config) string {
	return getenvFallback(cfg.LLMAPIKeyRef)
}
