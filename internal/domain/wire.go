package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// The types below mirror the stable Findings JSON wire format
// exactly. Run's in-memory shape is richer (full Target, FindingsOrder
// for deterministic replay) than what crosses the wire, so Run
// implements json.Marshaler/Unmarshaler against these wire types rather
// than relying on struct-tag serialization of the in-memory shape.

type wireTarget struct {
	Technology  Technology `json:"technology"`
	Host        string     `json:"host"`
	Port        string     `json:"port,omitempty"`
	ClusterName string     `json:"cluster_name,omitempty"`
	Company     string     `json:"company"`
}

type wireVersionMetadata struct {
	Version     string `json:"version"`
	Major       int    `json:"major"`
	Minor       int    `json:"minor"`
	Environment string `json:"environment"`
	NodeCount   int    `json:"node_count,omitempty"`
}

type wireSection struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

type wireFindingError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type wireFinding struct {
	Status         Status            `json:"status"`
	Sections       []wireSection     `json:"sections,omitempty"`
	Metrics        map[string]any    `json:"metrics,omitempty"`
	ReportFragment string            `json:"report_fragment"`
	StartedAt      time.Time         `json:"started_at"`
	DurationMS     int64             `json:"duration_ms"`
	Error          *wireFindingError `json:"error,omitempty"`
}

type wireTriggeredRule struct {
	CheckID         string         `json:"check_id"`
	MetricName      string         `json:"metric_name"`
	Severity        Severity       `json:"severity"`
	Score           int            `json:"score"`
	Reason          string         `json:"reason"`
	Recommendations []string       `json:"recommendations"`
	TriggeringRow   map[string]any `json:"triggering_row,omitempty"`
}

type wireRun struct {
	RunID           string                 `json:"run_id"`
	Target          wireTarget             `json:"target"`
	VersionMetadata wireVersionMetadata    `json:"version_metadata"`
	StartedAt       time.Time              `json:"started_at"`
	EndedAt         time.Time              `json:"ended_at"`
	Findings        map[string]wireFinding `json:"findings"`
	TriggeredRules  []wireTriggeredRule    `json:"triggered_rules"`
	HealthScore     int                    `json:"health_score"`
}

func splitHostPort(endpoint string) (string, string) {
	if idx := strings.LastIndex(endpoint, ":"); idx >= 0 {
		return endpoint[:idx], endpoint[idx+1:]
	}
	return endpoint, ""
}

// MarshalJSON renders Run into the stable wire format.
func (r Run) MarshalJSON() ([]byte, error) {
	host, port := "", ""
	if len(r.Target.Endpoints) > 0 {
		host, port = splitHostPort(r.Target.Endpoints[0])
	}

	wt := wireTarget{
		Technology:  r.Target.Technology,
		Host:        host,
		Port:        port,
		ClusterName: r.Target.ClusterName,
		Company:     r.CompanyID,
	}

	wireFindings := make(map[string]wireFinding, len(r.Findings))
	for checkID, f := range r.Findings {
		sections := make([]wireSection, len(f.Sections))
		for i, s := range f.Sections {
			sections[i] = wireSection{Name: s.Name, Columns: s.Columns, Rows: s.Rows, Summary: s.Summary}
		}
		var werr *wireFindingError
		if f.Error != nil {
			werr = &wireFindingError{Kind: f.Error.Kind, Message: f.Error.Message}
		}
		wireFindings[checkID] = wireFinding{
			Status:         f.Status,
			Sections:       sections,
			Metrics:        f.Metrics,
			ReportFragment: f.ReportFragment,
			StartedAt:      f.StartedAt,
			DurationMS:     f.DurationMS,
			Error:          werr,
		}
	}

	triggered := make([]wireTriggeredRule, len(r.Triggered))
	for i, t := range r.Triggered {
		triggered[i] = wireTriggeredRule{
			CheckID:         t.CheckID,
			MetricName:      t.MetricName,
			Severity:        t.Severity,
			Score:           t.Score,
			Reason:          t.Reason,
			Recommendations: t.Recommendations,
			TriggeringRow:   t.TriggeringRow,
		}
	}

	return json.Marshal(wireRun{
		RunID:  r.RunID,
		Target: wt,
		VersionMetadata: wireVersionMetadata{
			Version: r.Version.Version, Major: r.Version.Major, Minor: r.Version.Minor,
			Environment: r.Version.Environment, NodeCount: r.Version.NodeCount,
		},
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		Findings:       wireFindings,
		TriggeredRules: triggered,
		HealthScore:    r.HealthScore,
	})
}

// UnmarshalJSON reconstructs Run from the wire format. JSON objects are
// inherently unordered, so FindingsOrder is rebuilt alphabetically by
// check_id rather than recovered from wire data — round-trip equality
// is defined over map content, not
// original declared-report insertion order, which the wire format never
// carried in the first place.
func (r *Run) UnmarshalJSON(data []byte) error {
	var w wireRun
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	endpoint := w.Target.Host
	if w.Target.Port != "" {
		endpoint += ":" + w.Target.Port
	}

	r.RunID = w.RunID
	r.CompanyID = w.Target.Company
	r.Target = Target{
		Technology:  w.Target.Technology,
		Endpoints:   []string{endpoint},
		CompanyID:   w.Target.Company,
		ClusterName: w.Target.ClusterName,
	}
	r.Version = VersionMetadata{
		Version: w.VersionMetadata.Version, Major: w.VersionMetadata.Major, Minor: w.VersionMetadata.Minor,
		Environment: w.VersionMetadata.Environment, NodeCount: w.VersionMetadata.NodeCount,
	}
	r.StartedAt = w.StartedAt
	r.EndedAt = w.EndedAt
	r.HealthScore = w.HealthScore

	r.Findings = make(map[string]Finding, len(w.Findings))
	order := make([]string, 0, len(w.Findings))
	for checkID, wf := range w.Findings {
		sections := make([]Section, len(wf.Sections))
		for i, s := range wf.Sections {
			sections[i] = Section{Name: s.Name, Columns: s.Columns, Rows: s.Rows, Summary: s.Summary}
		}
		var ferr *FindingError
		if wf.Error != nil {
			ferr = &FindingError{Kind: wf.Error.Kind, Message: wf.Error.Message}
		}
		r.Findings[checkID] = Finding{
			CheckID:        checkID,
			Status:         wf.Status,
			Sections:       sections,
			Metrics:        wf.Metrics,
			ReportFragment: wf.ReportFragment,
			StartedAt:      wf.StartedAt,
			DurationMS:     wf.DurationMS,
			Error:          ferr,
		}
		order = append(order, checkID)
	}
	sort.Strings(order)
	r.FindingsOrder = order

	r.Triggered = make([]TriggeredRule, len(w.TriggeredRules))
	for i, t := range w.TriggeredRules {
		r.Triggered[i] = TriggeredRule{
			RunID:           r.RunID,
			CheckID:         t.CheckID,
			MetricName:      t.MetricName,
			Severity:        t.Severity,
			Score:           t.Score,
			Reason:          t.Reason,
			Recommendations: t.Recommendations,
			TriggeringRow:   t.TriggeringRow,
		}
	}
	return nil
}
