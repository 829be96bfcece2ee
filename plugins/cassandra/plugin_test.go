package cassandra

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

func TestNew_RegistersPeerCountCheckAndRule(t *testing.T) {
	p := New()
	assert.Equal(t, PluginID, p.ID)
	assert.Contains(t, p.Checks, "peer_count")
	assert.Contains(t, p.RuleSet, "cluster_peer_count")
}

func TestCheckPeerCount_OKWithTwoOrMorePeers(t *testing.T) {
	conn := fakeConnector{result: connector.Result{Rows: [][]any{{"10.0.0.1"}, {"10.0.0.2"}}}}
	f := checkPeerCount(context.Background(), conn, nil)
	assert.Equal(t, "ok", string(f.Status))
	assert.Equal(t, 2, f.Metrics["cluster_peer_count"])
}

func TestCheckPeerCount_WarnsWithFewerThanTwoPeers(t *testing.T) {
	conn := fakeConnector{result: connector.Result{Rows: [][]any{{"10.0.0.1"}}}}
	f := checkPeerCount(context.Background(), conn, nil)
	assert.Equal(t, "warning", string(f.Status))
}

func TestCheckPeerCount_ConnectorErrorProducesClassifiedErrorFinding(t *testing.T) {
	conn := fakeConnector{err: errs.New(errs.ConnectorConnect, "gossip unreachable")}
	f := checkPeerCount(context.Background(), conn, nil)
	assert.Equal(t, "error", string(f.Status))
	require.NotNil(t, f.Error)
	assert.Equal(t, string(errs.ConnectorConnect), f.Error.Kind)
}
