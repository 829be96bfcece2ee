// Package report implements the Report Writer: the final human-readable
// artifact assembled from one target's ordered check/header/static-text
// stream, its triggered rules, and (if the LLM Adapter ran) the model's
// narrative response. It is the last stage before Trend Ingest in the
// pipeline diagram and never itself talks to a Connector, a
// rule expression, or the LLM — it only renders what upstream stages
// already produced.
package report

import (
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/runner"
)

// SeverityGroup is one severity's triggered-rule bucket, kept as an
// ordered slice (rather than the map the Rule Evaluator naturally
// produces) so the template renders critical-first instead of the
// alphabetical order text/template imposes when ranging over a map.
type SeverityGroup struct {
	Severity domain.Severity
	Rules    []domain.TriggeredRule
}

// Input is the fixed record the default template renders against.
type Input struct {
	Target          domain.Target
	VersionMetadata domain.VersionMetadata
	HealthScore     int
	GeneratedAt     time.Time
	Events          []runner.Event
	Severities      []SeverityGroup
	Narrative       string // the LLM Adapter's response text, if any
}

// BuildInput assembles an Input record from a run's raw pieces, ordering
// triggered rules by severity (critical first).
func BuildInput(target domain.Target, version domain.VersionMetadata, healthScore int, generatedAt time.Time, events []runner.Event, triggered []domain.TriggeredRule, narrative string) Input {
	grouped := GroupBySeverity(triggered)
	ordered := OrderedSeverities(grouped)
	severities := make([]SeverityGroup, 0, len(ordered))
	for _, sev := range ordered {
		severities = append(severities, SeverityGroup{Severity: sev, Rules: grouped[sev]})
	}
	return Input{
		Target: target, VersionMetadata: version, HealthScore: healthScore,
		GeneratedAt: generatedAt, Events: events, Severities: severities, Narrative: narrative,
	}
}

const defaultTemplateSource = `# {{.Target.Technology}} Health Report — {{.Target.ClusterName}}
Company: {{.Target.CompanyID}}
Health score: {{.HealthScore}}/100
Generated: {{.GeneratedAt.Format "2006-01-02T15:04:05Z07:00"}}

## Run Health
{{- range .Events}}
{{- if and .Finding .Finding.Error}}
- {{.Ref}}: {{.Finding.Error.Kind}} — {{.Finding.Error.Message}}
{{- end}}
{{- end}}

{{- range .Severities}}

## {{.Severity | print | upper}} ({{len .Rules}})
{{- range .Rules}}
- [{{.CheckID}}] {{.MetricName}}: {{.Reason}}
{{- range .Recommendations}}
  * {{.}}
{{- end}}
{{- end}}
{{- end}}

## Checks
{{- range .Events}}
{{- if eq .Kind "header"}}

### {{.Ref}}
{{- else if eq .Kind "include_static_text"}}
{{.Ref}}
{{- else if .Finding}}
- {{.Ref}} [{{.Finding.Status}}]: {{.Finding.ReportFragment}}
{{- end}}
{{- end}}

{{- if .Narrative}}

## Narrative
{{.Narrative}}
{{- end}}
`

// Writer renders Input into the final report text.
type Writer struct {
	tmpl *template.Template
}

// New compiles the default report template with sprig's func map, the
// same discipline internal/prompt uses for its templates.
func New() (*Writer, error) {
	t, err := template.New("report").Funcs(sprig.TxtFuncMap()).Parse(defaultTemplateSource)
	if err != nil {
		return nil, err
	}
	return &Writer{tmpl: t}, nil
}

// Render produces the final report text for one completed run.
func (w *Writer) Render(in Input) (string, error) {
	var b strings.Builder
	if err := w.tmpl.Execute(&b, in); err != nil {
		return "", err
	}
	return b.String(), nil
}

// GroupBySeverity buckets triggered rules by severity for the template's
// severity sections. The map carries no order; OrderedSeverities supplies
// the critical→info order.
func GroupBySeverity(triggered []domain.TriggeredRule) map[domain.Severity][]domain.TriggeredRule {
	out := make(map[domain.Severity][]domain.TriggeredRule)
	for _, t := range triggered {
		out[t.Severity] = append(out[t.Severity], t)
	}
	return out
}

// OrderedSeverities returns the severities present in grouped, critical first.
func OrderedSeverities(grouped map[domain.Severity][]domain.TriggeredRule) []domain.Severity {
	rank := map[domain.Severity]int{
		domain.SeverityCritical: 0, domain.SeverityHigh: 1, domain.SeverityMedium: 2,
		domain.SeverityLow: 3, domain.SeverityInfo: 4,
	}
	out := make([]domain.Severity, 0, len(grouped))
	for sev := range grouped {
		out = append(out, sev)
	}
	sort.Slice(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}
