package prompt

import (
	"sort"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/dbhealthcheck/engine/internal/domain"
)

// CheckFull is the fully-serialized view of one "hot" check: its
// sections verbatim, capped at row_limit rows each.
type CheckFull struct {
	CheckID        string
	Status         domain.Status
	Sections       []domain.Section
	Metrics        map[string]any
	ReportFragment string
	DurationMS     int64
	Error          *domain.FindingError
}

// MetricMagnitude is one entry of a summary's "top 3 metrics by magnitude".
type MetricMagnitude struct {
	Name  string
	Value float64
}

// CheckSummary is the compact view of a non-hot check.
type CheckSummary struct {
	CheckID             string
	Status              domain.Status
	RowCounts           map[string]int
	TopMetrics          []MetricMagnitude
	TriggeredSeverities []domain.Severity
}

// TriggeredBucket is one severity's triggered-rule bucket, kept as an
// ordered slice rather than a map so templates render critical-first
// instead of the alphabetical order text/template imposes when ranging
// over a map keyed by severity.
type TriggeredBucket struct {
	Severity domain.Severity
	Rules    []domain.TriggeredRule
}

// TemplateInput is the exact fixed record every named template renders
// from — templates may reference no other fields.
type TemplateInput struct {
	VersionMetadata     domain.VersionMetadata
	Target              domain.Target
	Environment         string
	FindingsFull        []CheckFull
	FindingsSummary     []CheckSummary
	TriggeredBySeverity map[domain.Severity][]domain.TriggeredRule
	Triggered           []TriggeredBucket
	GenerationTime      time.Time
}

var severityOrderRank = map[domain.Severity]int{
	domain.SeverityCritical: 0, domain.SeverityHigh: 1, domain.SeverityMedium: 2,
	domain.SeverityLow: 3, domain.SeverityInfo: 4,
}

// orderedTriggeredBuckets turns a severity-keyed map into a
// critical-first ordered slice for template ranging.
func orderedTriggeredBuckets(bySeverity map[domain.Severity][]domain.TriggeredRule) []TriggeredBucket {
	out := make([]TriggeredBucket, 0, len(bySeverity))
	for sev, rules := range bySeverity {
		out = append(out, TriggeredBucket{Severity: sev, Rules: rules})
	}
	sort.Slice(out, func(i, j int) bool { return severityOrderRank[out[i].Severity] < severityOrderRank[out[j].Severity] })
	return out
}

// defaultTemplateSource holds the named templates shipped with the engine.
// Additional named variants (executive, dba, security-auditor) reuse the
// same TemplateInput record: the same findings can be reused to build
// executive, DBA, or security-auditor prompts without rerunning checks.
var defaultTemplateSource = map[string]string{
	"dba": `# Database Health Report — {{.Target.Technology}} ({{.Target.ClusterName}})
Environment: {{.Environment}}
Version: {{.VersionMetadata.Version}} (major {{.VersionMetadata.Major}}, minor {{.VersionMetadata.Minor}})
Generated: {{.GenerationTime.Format "2006-01-02T15:04:05Z07:00"}}

{{- range .Triggered}}
## {{.Severity | print | upper}} triggers ({{len .Rules}})
{{- range .Rules}}
- [{{.CheckID}}] {{.MetricName}}: {{.Reason}}
{{- range .Recommendations}}
  * {{.}}
{{- end}}
{{- end}}
{{- end}}

{{- range .FindingsFull}}
## {{.CheckID}} (full — status={{.Status}})
{{.ReportFragment}}
{{- range .Sections}}
### {{.Name}}
{{- range .Rows}}
{{. | join ", "}}
{{- end}}
{{- end}}
{{- end}}

{{- range .FindingsSummary}}
- {{.CheckID}}: status={{.Status}}{{if .TriggeredSeverities}}, triggered={{.TriggeredSeverities}}{{end}}
{{- end}}
`,
	"executive": `# Executive Summary — {{.Target.Technology}} {{.Target.ClusterName}}
Environment: {{.Environment}} | Generated: {{.GenerationTime.Format "2006-01-02"}}

{{- range .Triggered}}
{{.Severity | print | upper}}: {{len .Rules}} issue(s)
{{- end}}

{{range .FindingsFull}}{{.CheckID}}: {{.ReportFragment}}
{{end}}
{{- range .FindingsSummary}}{{.CheckID}}: {{.Status}}
{{end}}
`,
	"security-auditor": `# Security Review — {{.Target.Technology}} {{.Target.ClusterName}}
{{- range .Triggered}}
{{- range .Rules}}
[{{.Severity}}] {{.CheckID}}/{{.MetricName}}: {{.Reason}}
{{- end}}
{{- end}}

{{range .FindingsFull}}## {{.CheckID}}
{{.ReportFragment}}
{{end}}
`,
}

// loadTemplates compiles every default template with sprig's func map,
// the template helper library used throughout this module.
func loadTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(defaultTemplateSource))
	for name, src := range defaultTemplateSource {
		t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(src)
		if err != nil {
			return nil, err
		}
		out[name] = t
	}
	return out, nil
}
