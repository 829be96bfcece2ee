package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_JSONRoundTripPreservesFindingAndTriggeredRuleContent(t *testing.T) {
	started := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	ended := started.Add(2 * time.Second)

	original := Run{
		RunID:     "run-123",
		CompanyID: "acme",
		Target: Target{
			Technology:  TechPostgres,
			Endpoints:   []string{"db.acme.internal:5432"},
			CompanyID:   "acme",
			ClusterName: "primary",
		},
		StartedAt:   started,
		EndedAt:     ended,
		Version:     VersionMetadata{Version: "16.2", Major: 16, Minor: 2, Environment: "prod", NodeCount: 3},
		HealthScore: 80,
		Findings: map[string]Finding{
			"cache_hit_ratio": {
				CheckID: "cache_hit_ratio",
				Status:  StatusWarning,
				Sections: []Section{
					{Name: "rows", Columns: []string{"a"}, Rows: [][]any{{1.0}}},
				},
				Metrics:        map[string]any{"cache_hit_ratio_percent": 80.0},
				ReportFragment: "hit ratio is low",
				StartedAt:      started,
				DurationMS:     12,
			},
		},
		Triggered: []TriggeredRule{
			{
				RunID: "run-123", CheckID: "cache_hit_ratio", MetricName: "cache_hit_ratio_percent",
				Severity: SeverityCritical, Score: 20, Reason: "buffer cache hit ratio is 80%",
				Recommendations: []string{"review shared_buffers"},
			},
		},
		FindingsOrder: []string{"cache_hit_ratio"},
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Run
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, original.RunID, decoded.RunID)
	assert.Equal(t, original.CompanyID, decoded.CompanyID)
	assert.Equal(t, original.Target.Technology, decoded.Target.Technology)
	assert.Equal(t, original.Target.ClusterName, decoded.Target.ClusterName)
	assert.Equal(t, original.HealthScore, decoded.HealthScore)
	assert.Equal(t, original.Version, decoded.Version)
	assert.Equal(t, original.Findings["cache_hit_ratio"].Status, decoded.Findings["cache_hit_ratio"].Status)
	assert.Equal(t, original.Findings["cache_hit_ratio"].Metrics, decoded.Findings["cache_hit_ratio"].Metrics)
	require.Len(t, decoded.Triggered, 1)
	assert.Equal(t, original.Triggered[0].Severity, decoded.Triggered[0].Severity)
	assert.Equal(t, original.Triggered[0].Reason, decoded.Triggered[0].Reason)
}

func TestHealthScore_FlooredAtZero(t *testing.T) {
	assert.Equal(t, 100, HealthScore(0, 0, 0))
	assert.Equal(t, 80, HealthScore(1, 0, 0))
	assert.Equal(t, 0, HealthScore(10, 0, 0))
}

func TestSeverityCounts_TalliesEachBucket(t *testing.T) {
	triggered := []TriggeredRule{
		{Severity: SeverityCritical}, {Severity: SeverityCritical}, {Severity: SeverityHigh},
		{Severity: SeverityMedium}, {Severity: SeverityLow}, {Severity: SeverityInfo},
	}
	critical, high, medium, low, info := SeverityCounts(triggered)
	assert.Equal(t, 2, critical)
	assert.Equal(t, 1, high)
	assert.Equal(t, 1, medium)
	assert.Equal(t, 1, low)
	assert.Equal(t, 1, info)
}

func TestGuard_UnknownSettingKeyEvaluatesFalse(t *testing.T) {
	g := &Guard{SettingKey: "missing", Equals: true}
	assert.False(t, g.Evaluate(fakeSettings{}))
}

func TestGuard_NilGuardAlwaysPasses(t *testing.T) {
	var g *Guard
	assert.True(t, g.Evaluate(fakeSettings{}))
}

type fakeSettings struct{}

func (fakeSettings) Lookup(key string) (any, bool) { return nil, false }
