package mysql

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
}

func (c scriptedConnector) Describe(ctx context.Context) (connector.Metadata, error) {
	return connector.Metadata{}, nil
}

func (c scriptedConnector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	for key, res := range c.results {
		if containsSubstr(q.Text, key) {
			return res, nil
		}
	}
	return connector.Result{}, nil
}

func (c scriptedConnector) Close(ctx context.Context) error { return nil }
func (c scriptedConnector) AdvertisesConcurrency() bool     { return false }

func containsSubstr(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestNew_RegistersConnectionUtilizationCheckAndRule(t *testing.T) {
	p := New()
	assert.Equal(t, PluginID, p.ID)
	assert.Contains(t, p.Checks, "connection_utilization")
	assert.Contains(t, p.RuleSet, "connection_utilization_percent")
}

func TestCheckConnectionUtilization_ComputesPercentFromShowStatus(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"max_connections":   {Rows: [][]any{{"max_connections", int64(100)}}},
		"Threads_connected": {Rows: [][]any{{"Threads_connected", int64(95)}}},
	}}
	f := checkConnectionUtilization(context.Background(), conn, nil)
	require.Equal(t, "warning", string(f.Status))
	assert.InDelta(t, 95.0, f.Metrics["connection_utilization_percent"], 0.01)
}

func TestCheckConnectionUtilization_OKBelowThreshold(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"max_connections":   {Rows: [][]any{{"max_connections", int64(100)}}},
		"Threads_connected": {Rows: [][]any{{"Threads_connected", int64(10)}}},
	}}
	f := checkConnectionUtilization(context.Background(), conn, nil)
	assert.Equal(t, "ok", string(f.Status))
}

func TestCheckConnectionUtilization_MissingMaxConnectionsRowProducesErrorFinding(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"max_connections": {Rows: [][]any{}},
	}}
	f := checkConnectionUtilization(context.Background(), conn, nil)
	assert.Equal(t, "error", string(f.Status))
}

func TestCheckConnectionUtilization_QueryErrorProducesClassifiedErrorFinding(t *testing.T) {
	conn := scriptedConnector{results: map[string]connector.Result{
		"max_connections": {Err: errs.New(errs.ConnectorAuth, "access denied")},
	}}
	f := checkConnectionUtilization(context.Background(), conn, nil)
	assert.Equal(t, "error", string(f.Status))
	require.NotNil(t, f.Error)
	assert.Equal(t, string(errs.ConnectorAuth), f.Error.Kind)
}

func TestToInt_ParsesByteSliceAndStringForms(t *testing.T) {
	assert.Equal(t, 42, toInt([]byte("42")))
	assert.Equal(t, 42, toInt("42"))
	assert.Equal(t, 42, toInt(int64(42)))
	assert.Equal(t, 42, toInt(float64(42)))
}
