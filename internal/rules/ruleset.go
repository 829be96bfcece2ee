package rules

import (
	"encoding/json"
	"fmt"

	"github.com/dbhealthcheck/engine/internal/domain"
)

// ruleRecord mirrors the stable rule-set wire format: each
// metric maps to an ordered array of rule records.
type ruleRecord struct {
	Scope           domain.Scope    `json:"scope"`
	Severity        domain.Severity `json:"severity"`
	Score           int             `json:"score"`
	Expression      string          `json:"expression"`
	Reasoning       string          `json:"reasoning"`
	Recommendations []string        `json:"recommendations"`
}

// LoadRuleSetJSON parses the on-disk rule-set wire format into a domain.RuleSet.
// Scope defaults to "row" when omitted, matching the common case of a
// tabular section evaluated per-row.
func LoadRuleSetJSON(raw []byte) (domain.RuleSet, error) {
	var wire map[string][]ruleRecord
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("rules: invalid rule set JSON: %w", err)
	}

	out := make(domain.RuleSet, len(wire))
	for metric, records := range wire {
		ruleList := make([]domain.Rule, 0, len(records))
		for _, r := range records {
			scope := r.Scope
			if scope == "" {
				scope = domain.ScopeRow
			}
			ruleList = append(ruleList, domain.Rule{
				Scope:           scope,
				Expression:      r.Expression,
				Severity:        r.Severity,
				Score:           r.Score,
				ReasonTemplate:  r.Reasoning,
				Recommendations: r.Recommendations,
			})
		}
		out[metric] = ruleList
	}
	return out, nil
}

// MarshalRuleSetJSON renders a RuleSet back to the same wire format, used by
// `list-reports`/debugging tooling and round-trip tests.
func MarshalRuleSetJSON(rs domain.RuleSet) ([]byte, error) {
	wire := make(map[string][]ruleRecord, len(rs))
	for metric, ruleList := range rs {
		records := make([]ruleRecord, 0, len(ruleList))
		for _, r := range ruleList {
			records = append(records, ruleRecord{
				Scope:           r.Scope,
				Severity:        r.Severity,
				Score:           r.Score,
				Expression:      r.Expression,
				Reasoning:       r.ReasonTemplate,
				Recommendations: r.Recommendations,
			})
		}
		wire[metric] = records
	}
	return json.MarshalIndent(wire, "", "  ")
}
