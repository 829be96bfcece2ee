// Package rules implements the Rule Evaluator: deterministic,
// sandboxed evaluation of per-metric severity rules over a run's
// Findings. It is the only consumer of internal/rules/expr — the rest of
// the engine never parses or evaluates an expression directly.
package rules

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/rules/expr"
)

// compiledRule caches the parsed AST for a rule's expression alongside the
// originating Rule, so a RuleSet is parsed once per run, not once per row.
type compiledRule struct {
	rule domain.Rule
	node expr.Node
}

// Evaluator applies a compiled RuleSet to a Findings Store.
type Evaluator struct {
	metrics map[string][]compiledRule
	log     *logrus.Entry
}

// Compile parses every rule's expression up front. A parse error at
// compile time is a configuration error (the rule set file is malformed);
// it is distinct from a rule_eval_error, which only happens per-row at
// evaluation time.
func Compile(ruleSet domain.RuleSet, log *logrus.Entry) (*Evaluator, error) {
	compiled := make(map[string][]compiledRule, len(ruleSet))
	for metric, ruleList := range ruleSet {
		entries := make([]compiledRule, 0, len(ruleList))
		for i, r := range ruleList {
			node, err := expr.Parse(r.Expression)
			if err != nil {
				return nil, fmt.Errorf("rules: metric %q rule %d: %w", metric, i, err)
			}
			entries = append(entries, compiledRule{rule: r, node: node})
		}
		compiled[metric] = entries
	}
	return &Evaluator{metrics: compiled, log: log}, nil
}

// Evaluate walks findings in declared order and, for each metric named by
// the rule set, evaluates that metric's rules against the finding's
// aggregate value or row-scoped section. Output order is
// (check_id, metric, row_index).
func (e *Evaluator) Evaluate(runID string, order []string, findings map[string]domain.Finding, settingsMap map[string]any) []domain.TriggeredRule {
	allFindings := buildAllFindingsView(findings)

	var triggered []domain.TriggeredRule
	for _, checkID := range order {
		finding, ok := findings[checkID]
		if !ok {
			continue
		}
		for _, metric := range e.relevantMetrics(finding) {
			rulesForMetric := e.metrics[metric]
			if len(rulesForMetric) == 0 {
				continue
			}
			scope := rulesForMetric[0].rule.Scope
			if scope == domain.ScopeAggregate {
				val, ok := finding.Metrics[metric]
				if !ok {
					continue
				}
				data := map[string]any{"value": val}
				if tr, matched := e.firstMatch(rulesForMetric, runID, checkID, metric, data, settingsMap, allFindings, nil); matched {
					triggered = append(triggered, tr)
				}
				continue
			}

			section := findSection(finding, metric)
			if section == nil {
				continue
			}
			for rowIdx, row := range section.Rows {
				data := zipRow(section.Columns, row)
				if tr, matched := e.firstMatch(rulesForMetric, runID, checkID, metric, data, settingsMap, allFindings, data); matched {
					triggered = append(triggered, tr)
				}
				_ = rowIdx // row index only affects output ordering, already guaranteed by loop order
			}
		}
	}
	return triggered
}

// relevantMetrics returns, in sorted order (for determinism — testable
// property #2), every rule-set metric name this finding could satisfy:
// either a Metrics key (aggregate) or a Section name (row-scoped).
func (e *Evaluator) relevantMetrics(f domain.Finding) []string {
	seen := make(map[string]bool)
	var names []string
	for k := range f.Metrics {
		if _, ok := e.metrics[k]; ok && !seen[k] {
			seen[k] = true
			names = append(names, k)
		}
	}
	for _, s := range f.Sections {
		if _, ok := e.metrics[s.Name]; ok && !seen[s.Name] {
			seen[s.Name] = true
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}

func findSection(f domain.Finding, name string) *domain.Section {
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i]
		}
	}
	return nil
}

func zipRow(columns []string, row []any) map[string]any {
	m := make(map[string]any, len(columns))
	for i, col := range columns {
		if i < len(row) {
			m[col] = row[i]
		} else {
			m[col] = nil
		}
	}
	return m
}

func buildAllFindingsView(findings map[string]domain.Finding) map[string]any {
	view := make(map[string]any, len(findings))
	for checkID, f := range findings {
		view[checkID] = map[string]any{
			"status":  string(f.Status),
			"metrics": f.Metrics,
		}
	}
	return view
}

// firstMatch evaluates rulesForMetric in declared order, returning the
// first match. An expression that raises is logged at debug and treated
// as "did not match" — evaluation simply
// continues to the next rule.
func (e *Evaluator) firstMatch(rulesForMetric []compiledRule, runID, checkID, metric string, data map[string]any, settingsMap map[string]any, allFindings map[string]any, triggeringRow map[string]any) (domain.TriggeredRule, bool) {
	env := expr.Env{Data: data, Settings: settingsMap, AllFindings: allFindings, Log: e.log}

	for _, cr := range rulesForMetric {
		result, err := expr.Eval(cr.node, env)
		if err != nil {
			if e.log != nil {
				e.log.WithField("metric", metric).WithField("check_id", checkID).
					Debugf("rule_eval_error: expression did not evaluate: %v", err)
			}
			continue
		}
		matched, ok := result.(bool)
		if !ok {
			if e.log != nil {
				e.log.WithField("metric", metric).WithField("check_id", checkID).
					Debug("rule_eval_error: expression did not evaluate to bool")
			}
			continue
		}
		if !matched {
			continue
		}
		return domain.TriggeredRule{
			RunID:           runID,
			CheckID:         checkID,
			MetricName:      metric,
			Severity:        cr.rule.Severity,
			Score:           cr.rule.Score,
			Reason:          renderReason(cr.rule.ReasonTemplate, data),
			Recommendations: append([]string(nil), cr.rule.Recommendations...),
			TriggeringRow:   triggeringRow,
		}, true
	}
	return domain.TriggeredRule{}, false
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// renderReason substitutes simple {{field}} placeholders over data. No
// arbitrary expressions are permitted in a reason_template.
func renderReason(tmpl string, data map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := data[name]
		if !ok || v == nil {
			return match
		}
		return fmt.Sprint(v)
	})
}
