package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type fakeConnector struct{}

func (fakeConnector) Describe(ctx context.Context) (connector.Metadata, error) {
	return connector.Metadata{}, nil
}
func (fakeConnector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	return connector.Result{}, nil
}
func (fakeConnector) Close(ctx context.Context) error { return nil }
func (fakeConnector) AdvertisesConcurrency() bool     { return false }

func pluginWith(checks map[string]resolver.CheckFunc) *resolver.Plugin {
	return &resolver.Plugin{ID: "postgres", Checks: checks}
}

func actions(ids ...string) []domain.Action {
	out := make([]domain.Action, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Action{Kind: domain.ActionRunCheck, Ref: id})
	}
	return out
}

func TestRun_HappyPathProducesOneFindingPerCheckInOrder(t *testing.T) {
	plugin := pluginWith(map[string]resolver.CheckFunc{
		"a": func(ctx context.Context, c connector.Connector, s *config.Settings) domain.Finding {
			return domain.Finding{Status: domain.StatusOK}
		},
		"b": func(ctx context.Context, c connector.Connector, s *config.Settings) domain.Finding {
			return domain.Finding{Status: domain.StatusWarning}
		},
	})
	r := New(fakeConnector{}, plugin, nil, nil, nil)

	res := r.Run(context.Background(), actions("a", "b"))
	require.Len(t, res.Events, 2)
	assert.Equal(t, "a", res.Events[0].Ref)
	assert.Equal(t, domain.StatusOK, res.Events[0].Finding.Status)
	assert.Equal(t, "b", res.Events[1].Ref)
	assert.Equal(t, domain.StatusWarning, res.Events[1].Finding.Status)
	assert.Zero(t, res.ChecksSkippedConnector)
}

func TestRun_HeaderAndStaticTextActionsPassThroughWithoutAFinding(t *testing.T) {
	plugin := pluginWith(nil)
	r := New(fakeConnector{}, plugin, nil, nil, nil)

	acts := []domain.Action{
		{Kind: domain.ActionHeader, Ref: "Connections"},
		{Kind: domain.ActionStaticText, Ref: "intro blurb"},
	}
	res := r.Run(context.Background(), acts)
	require.Len(t, res.Events, 2)
	assert.Nil(t, res.Events[0].Finding)
	assert.Equal(t, domain.ActionHeader, res.Events[0].Kind)
	assert.Nil(t, res.Events[1].Finding)
	assert.Equal(t, domain.ActionStaticText, res.Events[1].Kind)
}

func TestRun_GuardFalseSkipsActionEntirely(t *testing.T) {
	plugin := pluginWith(map[string]resolver.CheckFunc{
		"a": func(ctx context.Context, c connector.Connector, s *config.Settings) domain.Finding {
			return domain.Finding{Status: domain.StatusOK}
		},
	})
	r := New(fakeConnector{}, plugin, nil, nil, nil)

	acts := []domain.Action{
		{Kind: domain.ActionRunCheck, Ref: "a", Guard: &domain.Guard{SettingKey: "feature_enabled", Equals: true}},
	}
	res := r.Run(context.Background(), acts)
	assert.Empty(t, res.Events)
}

func TestRun_UnregisteredCheckIDProducesErrorFinding(t *testing.T) {
	plugin := pluginWith(map[string]resolver.CheckFunc{})
	r := New(fakeConnector{}, plugin, nil, nil, nil)

	res := r.Run(context.Background(), actions("missing"))
	require.Len(t, res.Events, 1)
	require.NotNil(t, res.Events[0].Finding)
	assert.Equal(t, domain.StatusError, res.Events[0].Finding.Status)
	assert.Equal(t, string(errs.CheckError), res.Events[0].Finding.Error.Kind)
}

func TestRun_PanicInCheckIsRecoveredAsErrorFinding(t *testing.T) {
	plugin := pluginWith(map[string]resolver.CheckFunc{
		"boom": func(ctx context.Context, c connector.Connector, s *config.Settings) domain.Finding {
			panic("unexpected nil map access")
		},
	})
	r := New(fakeConnector{}, plugin, nil, nil, nil)

	res := r.Run(context.Background(), actions("boom"))
	require.Len(t, res.Events, 1)
	f := res.Events[0].Finding
	require.NotNil(t, f)
	assert.Equal(t, domain.StatusError, f.Status)
	assert.Contains(t, f.Error.Message, "panic")
}

func TestRun_CheckExceedingItsTimeoutIsMarkedError(t *testing.T) {
	plugin := pluginWith(map[string]resolver.CheckFunc{
		"slow": func(ctx context.Context, c connector.Connector, s *config.Settings) domain.Finding {
			<-ctx.Done()
			return domain.Finding{Status: domain.StatusOK}
		},
	})
	r := New(fakeConnector{}, plugin, nil, nil, nil)
	r.CheckTimeout = 10 * time.Millisecond

	res := r.Run(context.Background(), actions("slow"))
	require.Len(t, res.Events, 1)
	f := res.Events[0].Finding
	require.NotNil(t, f)
	assert.Equal(t, domain.StatusError, f.Status)
	assert.Equal(t, string(errs.ConnectorTimeout), f.Error.Kind)
}

func TestRun_ConnectorFatalErrorSkipsRemainingChecks(t *testing.T) {
	plugin := pluginWith(map[string]resolver.CheckFunc{
		"first": func(ctx context.Context, c connector.Connector, s *config.Settings) domain.Finding {
			return domain.Finding{Status: domain.StatusError, Error: &domain.FindingError{Kind: string(errs.ConnectorConnect), Message: "refused"}}
		},
		"second": func(ctx context.Context, c connector.Connector, s *config.Settings) domain.Finding {
			return domain.Finding{Status: domain.StatusOK}
		},
	})
	r := New(fakeConnector{}, plugin, nil, nil, nil)

	res := r.Run(context.Background(), actions("first", "second"))
	require.Len(t, res.Events, 2)
	assert.Equal(t, domain.StatusError, res.Events[0].Finding.Status)
	assert.Equal(t, domain.StatusSkipped, res.Events[1].Finding.Status)
	assert.Equal(t, 1, res.ChecksSkippedConnector)
}

func TestRun_CancellationDuringCheckIsGracedThenSkipped(t *testing.T) {
	started := make(chan struct{})
	plugin := pluginWith(map[string]resolver.CheckFunc{
		"never-returns": func(ctx context.Context, c connector.Connector, s *config.Settings) domain.Finding {
			close(started)
			<-make(chan struct{}) // blocks forever; outlives the grace period
			return domain.Finding{}
		},
	})
	r := New(fakeConnector{}, plugin, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	start := time.Now()
	res := r.Run(ctx, actions("never-returns"))
	elapsed := time.Since(start)

	require.Len(t, res.Events, 1)
	assert.Equal(t, domain.StatusSkipped, res.Events[0].Finding.Status)
	assert.GreaterOrEqual(t, elapsed, CancellationGrace)
}
