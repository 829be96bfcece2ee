package clickhouse

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

func TestNew_RegistersReplicationQueueCheckAndRule(t *testing.T) {
	p := New()
	assert.Equal(t, PluginID, p.ID)
	assert.Contains(t, p.Checks, "replication_queue")
	assert.Contains(t, p.RuleSet, "replication_queue_size")
}

func TestCheckReplicationQueue_OKBelowThreshold(t *testing.T) {
	conn := fakeConnector{result: connector.Result{Rows: [][]any{{int64(5)}}}}
	f := checkReplicationQueue(context.Background(), conn, nil)
	assert.Equal(t, "ok", string(f.Status))
	assert.Equal(t, 5, f.Metrics["replication_queue_size"])
}

func TestCheckReplicationQueue_WarnsAboveFifty(t *testing.T) {
	conn := fakeConnector{result: connector.Result{Rows: [][]any{{int64(51)}}}}
	f := checkReplicationQueue(context.Background(), conn, nil)
	assert.Equal(t, "warning", string(f.Status))
}

func TestCheckReplicationQueue_NoRowsProducesErrorFinding(t *testing.T) {
	conn := fakeConnector{result: connector.Result{Rows: [][]any{}}}
	f := checkReplicationQueue(context.Background(), conn, nil)
	assert.Equal(t, "error", string(f.Status))
}

func TestCheckReplicationQueue_ConnectorErrorProducesClassifiedErrorFinding(t *testing.T) {
	conn := fakeConnector{err: errs.New(errs.ConnectorTimeout, "query timed out")}
	f := checkReplicationQueue(context.Background(), conn, nil)
	assert.Equal(t, "error", string(f.Status))
	require.NotNil(t, f.Error)
	assert.Equal(t, string(errs.ConnectorTimeout), f.Error.Kind)
}
