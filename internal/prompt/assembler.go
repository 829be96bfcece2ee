// Package prompt implements the Prompt Assembler: it
// serializes "hot" checks fully, summarizes the rest, renders a named
// template, and demotes/truncates under a token budget B — never
// silently dropping a critical triggered rule.
package prompt

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"text/template"
	"time"

	"github.com/dbhealthcheck/engine/internal/domain"
)

// Audit is the bookkeeping record returned alongside the rendered prompt,
// extended with a severity breakdown so a report writer can render "12
// findings, 2 critical" without re-walking triggered rules.
type Audit struct {
	InputTokenEstimate int
	HotCheckIDs        []string
	DemotedCheckIDs    []string
	OmittedCheckIDs    []string
	SeverityCounts     map[domain.Severity]int
	Truncated          bool
}

// Assembler renders TemplateInput records into a final prompt string
// under a token budget.
type Assembler struct {
	Tokenizer Tokenizer
	Templates map[string]*template.Template
	RowLimit  int
}

// NewAssembler constructs an Assembler with the default named templates
// and the given tokenizer (CharApproxTokenizer by default; swap in a
// TiktokenTokenizer for exact counts).
func NewAssembler(tokenizer Tokenizer) (*Assembler, error) {
	if tokenizer == nil {
		tokenizer = CharApproxTokenizer{}
	}
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Assembler{Tokenizer: tokenizer, Templates: templates, RowLimit: 10}, nil
}

var severityRank = map[domain.Severity]int{
	domain.SeverityInfo:     0,
	domain.SeverityLow:      1,
	domain.SeverityMedium:   2,
	domain.SeverityHigh:     3,
	domain.SeverityCritical: 4,
}

func isHotSeverity(s domain.Severity) bool {
	return s == domain.SeverityCritical || s == domain.SeverityHigh
}

type checkAgg struct {
	checkID    string
	importance int
	hot        bool
	worst      domain.Severity
	triggered  []domain.TriggeredRule
}

// Assemble serializes hot checks, summarizes the rest, renders the named
// template, and demotes/truncates under the token budget.
func (a *Assembler) Assemble(templateName string, target domain.Target, version domain.VersionMetadata, environment string, generatedAt time.Time, order []string, findings map[string]domain.Finding, triggered []domain.TriggeredRule, budget int) (string, Audit, error) {
	tmpl, ok := a.Templates[templateName]
	if !ok {
		return "", Audit{}, fmt.Errorf("prompt: unknown template %q", templateName)
	}

	rowLimit := a.RowLimit
	if rowLimit <= 0 {
		rowLimit = 10
	}

	byCheck := make(map[string]*checkAgg, len(order))
	for _, id := range order {
		byCheck[id] = &checkAgg{checkID: id}
	}
	triggeredBySeverity := make(map[domain.Severity][]domain.TriggeredRule)
	severityCounts := make(map[domain.Severity]int)
	for _, t := range triggered {
		triggeredBySeverity[t.Severity] = append(triggeredBySeverity[t.Severity], t)
		severityCounts[t.Severity]++
		agg, ok := byCheck[t.CheckID]
		if !ok {
			agg = &checkAgg{checkID: t.CheckID}
			byCheck[t.CheckID] = agg
			order = append(order, t.CheckID)
		}
		if t.Score > agg.importance {
			agg.importance = t.Score
		}
		if severityRank[t.Severity] > severityRank[agg.worst] {
			agg.worst = t.Severity
		}
		agg.triggered = append(agg.triggered, t)
		if isHotSeverity(t.Severity) {
			agg.hot = true
		}
	}

	hotSet := make(map[string]bool)
	var hotIDs []string
	for _, id := range order {
		if byCheck[id].hot {
			hotSet[id] = true
			hotIDs = append(hotIDs, id)
		}
	}
	sort.Strings(hotIDs)

	demoted := make(map[string]bool)
	omitted := make(map[string]bool)

	render := func() (string, int, error) {
		input := a.buildInput(target, version, environment, generatedAt, order, findings, byCheck, hotSet, demoted, omitted, triggeredBySeverity, rowLimit)
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, input); err != nil {
			return "", 0, err
		}
		rendered := buf.String()
		return rendered, a.Tokenizer.Count(rendered), nil
	}

	rendered, tokens, err := render()
	if err != nil {
		return "", Audit{}, err
	}

	// Step 5a: demote the smallest hot check, repeat until under budget
	// or no hot checks remain.
	hotOrder := append([]string(nil), hotIDs...)
	sort.Slice(hotOrder, func(i, j int) bool {
		return byCheck[hotOrder[i]].importance < byCheck[hotOrder[j]].importance
	})
	for tokens > budget && len(hotOrder) > 0 {
		victim := hotOrder[0]
		hotOrder = hotOrder[1:]
		demoted[victim] = true
		delete(hotSet, victim)
		rendered, tokens, err = render()
		if err != nil {
			return "", Audit{}, err
		}
	}

	// Step 5b: truncate the summary list from lowest severity upward,
	// never touching a check that itself carries a critical trigger.
	if tokens > budget {
		var summaryCandidates []string
		for _, id := range order {
			if hotSet[id] || omitted[id] {
				continue
			}
			if byCheck[id].worst == domain.SeverityCritical {
				continue // never silently drop a critical trigger
			}
			summaryCandidates = append(summaryCandidates, id)
		}
		sort.Slice(summaryCandidates, func(i, j int) bool {
			return severityRank[byCheck[summaryCandidates[i]].worst] < severityRank[byCheck[summaryCandidates[j]].worst]
		})
		for tokens > budget && len(summaryCandidates) > 0 {
			victim := summaryCandidates[0]
			summaryCandidates = summaryCandidates[1:]
			omitted[victim] = true
			rendered, tokens, err = render()
			if err != nil {
				return "", Audit{}, err
			}
		}
	}

	truncated := false
	if tokens > budget {
		truncated = true
		rendered = fmt.Sprintf("%s\n\n[truncated: %d checks omitted]\n", rendered, len(omitted))
		tokens = a.Tokenizer.Count(rendered)
	}

	audit := Audit{
		InputTokenEstimate: tokens,
		HotCheckIDs:        sortedKeys(hotSet),
		DemotedCheckIDs:    sortedKeys(demoted),
		OmittedCheckIDs:    sortedKeys(omitted),
		SeverityCounts:     severityCounts,
		Truncated:          truncated,
	}
	return rendered, audit, nil
}

func (a *Assembler) buildInput(target domain.Target, version domain.VersionMetadata, environment string, generatedAt time.Time, order []string, findings map[string]domain.Finding, byCheck map[string]*checkAgg, hotSet map[string]bool, demoted, omitted map[string]bool, triggeredBySeverity map[domain.Severity][]domain.TriggeredRule, rowLimit int) TemplateInput {
	var full []CheckFull
	var summary []CheckSummary

	for _, id := range order {
		if omitted[id] {
			continue
		}
		f, ok := findings[id]
		if !ok {
			continue
		}
		if hotSet[id] && !demoted[id] {
			full = append(full, CheckFull{
				CheckID:        id,
				Status:         f.Status,
				Sections:       capRows(f.Sections, rowLimit),
				Metrics:        f.Metrics,
				ReportFragment: f.ReportFragment,
				DurationMS:     f.DurationMS,
				Error:          f.Error,
			})
			continue
		}
		summary = append(summary, CheckSummary{
			CheckID:             id,
			Status:              f.Status,
			RowCounts:           rowCounts(f.Sections),
			TopMetrics:          topMetrics(f.Metrics, 3),
			TriggeredSeverities: severitiesFor(byCheck[id]),
		})
	}

	return TemplateInput{
		VersionMetadata:     version,
		Target:              target,
		Environment:         environment,
		FindingsFull:        full,
		FindingsSummary:     summary,
		TriggeredBySeverity: triggeredBySeverity,
		Triggered:           orderedTriggeredBuckets(triggeredBySeverity),
		GenerationTime:      generatedAt,
	}
}

func severitiesFor(agg *checkAgg) []domain.Severity {
	if agg == nil {
		return nil
	}
	seen := make(map[domain.Severity]bool)
	var out []domain.Severity
	for _, t := range agg.triggered {
		if !seen[t.Severity] {
			seen[t.Severity] = true
			out = append(out, t.Severity)
		}
	}
	return out
}

func capRows(sections []domain.Section, limit int) []domain.Section {
	out := make([]domain.Section, len(sections))
	for i, s := range sections {
		out[i] = s
		if len(s.Rows) > limit {
			out[i].Rows = s.Rows[:limit]
		}
	}
	return out
}

func rowCounts(sections []domain.Section) map[string]int {
	out := make(map[string]int, len(sections))
	for _, s := range sections {
		out[s.Name] = len(s.Rows)
	}
	return out
}

func topMetrics(metrics map[string]any, n int) []MetricMagnitude {
	all := make([]MetricMagnitude, 0, len(metrics))
	for name, v := range metrics {
		if f, ok := toFloat(v); ok {
			all = append(all, MetricMagnitude{Name: name, Value: f})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return math.Abs(all[i].Value) > math.Abs(all[j].Value)
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
