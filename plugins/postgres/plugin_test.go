package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type scriptedConnector struct {
	results map[string]connector.Result
	errs    map[string]error
}

func (c scriptedConnector) Describe(ctx context.Context) (connector.Metadata, error) {
	return connector.Metadata{}, nil
}

func (c scriptedConnector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	for key, res := range c.results {
		if containsSubstr(q.Text, key) {
			return res, c.errs[key]
		}
	}
	return connector.Result{}, nil
}

func (c scriptedConnector) Close(ctx context.Context) error { return nil }
func (c scriptedConnector) AdvertisesConcurrency() bool     { return false }

func containsSubstr(haystack, needle string) bool {
	return len(needle) > 0 && (len(haystack) >= len(needle)) && (indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestNew_RegistersExpectedChecksAndRuleMetrics(t *testing.T) {
	p := New()
	assert.Equal(t, PluginID, p.ID)
	assert.Contains(t, p.Checks, "connection_utilization")
	assert.Contains(t, p.Checks, "cache_hit_ratio")
	assert.Contains(t, p.Checks, "replication_lag")
	assert.Contains(t, p.RuleSet, "cache_hit_ratio_percent")
	assert.Contains(t, p.RuleSet, "connection_utilization_percent")
	assert.Contains(t, p.RuleSet, "replication_lag_bytes")
}

func TestCheckConnectionUtilization_ComputesPercentAndFlagsWarningAboveThreshold(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"pg_stat_activity": {Columns: []string{"active", "max_conn"}, Rows: [][]any{{int64(95), int64(100)}}},
	}}
	f := checkConnectionUtilization(context.Background(), conn, nil)
	require.Equal(t, "warning", string(f.Status))
	assert.InDelta(t, 95.0, f.Metrics["connection_utilization_percent"], 0.01)
}

func TestCheckConnectionUtilization_OKBelowThreshold(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"pg_stat_activity": {Columns: []string{"active", "max_conn"}, Rows: [][]any{{int64(10), int64(100)}}},
	}}
	f := checkConnectionUtilization(context.Background(), conn, nil)
	assert.Equal(t, "ok", string(f.Status))
}

func TestCheckConnectionUtilization_NoRowsIsNotApplicable(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"pg_stat_activity": {Rows: [][]any{}},
	}}
	f := checkConnectionUtilization(context.Background(), conn, nil)
	assert.Equal(t, "not_applicable", string(f.Status))
}

func TestCheckConnectionUtilization_QueryErrorProducesClassifiedErrorFinding(t *testing.T) {
	conn := scriptedConnector{
		results: map[string]connector.Result{"pg_stat_activity": {Err: errs.New(errs.ConnectorAuth, "bad password")}},
	}
	f := checkConnectionUtilization(context.Background(), conn, nil)
	assert.Equal(t, "error", string(f.Status))
	require.NotNil(t, f.Error)
	assert.Equal(t, string(errs.ConnectorAuth), f.Error.Kind)
}

func TestCheckCacheHitRatio_WarnsBelowNinetyFivePercent(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"pg_statio_user_tables": {Rows: [][]any{{float64(80), float64(100)}}},
	}}
	f := checkCacheHitRatio(context.Background(), conn, nil)
	assert.Equal(t, "warning", string(f.Status))
	assert.InDelta(t, 80.0, f.Metrics["cache_hit_ratio_percent"], 0.01)
}

func TestCheckReplicationLag_NoReplicasIsNotApplicable(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"pg_stat_replication": {Rows: [][]any{}},
	}}
	f := checkReplicationLag(context.Background(), conn, nil)
	assert.Equal(t, "not_applicable", string(f.Status))
}

func TestCheckReplicationLag_ReportsPerReplicaRows(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"pg_stat_replication": {Rows: [][]any{{"replica-a", int64(200000000)}}},
	}}
	f := checkReplicationLag(context.Background(), conn, nil)
	assert.Equal(t, "ok", string(f.Status))
	require.Len(t, f.Sections, 1)
	assert.Equal(t, "replica-a", f.Sections[0].Rows[0][0])
	assert.Equal(t, 200000000, f.Sections[0].Rows[0][1])
}

func TestCheckReplicationLag_ParsesByteSliceLagFromPgWalLsnDiff(t *testing.T) {
	// lib/pq returns pg_wal_lsn_diff's numeric result as []byte, not int64.
	conn := scriptedConnector{results: map[string]connector.Result{
		"pg_stat_replication": {Rows: [][]any{{"replica-b", []byte("104857600")}}},
	}}
	f := checkReplicationLag(context.Background(), conn, nil)
	assert.Equal(t, "ok", string(f.Status))
	assert.Equal(t, 104857600, f.Sections[0].Rows[0][1])
}
