package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type fakeConnector struct {
	result connector.Result
	err    *errs.Error
}

func (c fakeConnector) Describe(ctx context.Context) (connector.Metadata, error) {
	return connector.Metadata{}, nil
}

func (c fakeConnector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	if c.err != nil {
		return connector.Result{Err: c.err}, nil
	}
	return c.result, nil
}

func (c fakeConnector) Close(ctx context.Context) error { return nil }
func (c fakeConnector) AdvertisesConcurrency() bool     { return false }

func TestNew_RegistersBrokerCountCheckAndRule(t *testing.T) {
	p := New()
	assert.Equal(t, PluginID, p.ID)
	assert.Contains(t, p.Checks, "broker_count")
	assert.Contains(t, p.RuleSet, "broker_count")
}

func TestCheckBrokerCount_CountsRowsFromBrokerList(t *testing.T) {
	conn := fakeConnector{result: connector.Result{
		Columns: []string{"broker_id"},
		Rows:    [][]any{{1}, {2}, {3}},
	}}
	f := checkBrokerCount(context.Background(), conn, nil)
	assert.Equal(t, "ok", string(f.Status))
	assert.Equal(t, 3, f.Metrics["broker_count"])
}

func TestCheckBrokerCount_WarnsBelowReplicationFactorThree(t *testing.T) {
	conn := fakeConnector{result: connector.Result{
		Rows: [][]any{{1}, {2}},
	}}
	f := checkBrokerCount(context.Background(), conn, nil)
	assert.Equal(t, "warning", string(f.Status))
}

func TestCheckBrokerCount_ConnectorErrorProducesClassifiedErrorFinding(t *testing.T) {
	conn := fakeConnector{err: errs.New(errs.ConnectorConnect, "no brokers reachable")}
	f := checkBrokerCount(context.Background(), conn, nil)
	assert.Equal(t, "error", string(f.Status))
	require.NotNil(t, f.Error)
	assert.Equal(t, string(errs.ConnectorConnect), f.Error.Kind)
}
