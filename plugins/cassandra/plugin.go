// Package cassandra registers the Cassandra plugin.
package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
)

const PluginID = "cassandra"

func New() *resolver.Plugin {
	return &resolver.Plugin{
		ID: PluginID,
		Checks: map[string]resolver.CheckFunc{
			"peer_count": checkPeerCount,
		},
		CheckMetrics: map[string][]string{
			"peer_count": {"cluster_peer_count"},
		},
		Reports: map[string]domain.ReportDefinition{
			"standard": {
				Plugin: PluginID,
				Report: "standard",
				Actions: []domain.Action{
					{Kind: domain.ActionHeader, Ref: "topology"},
					{Kind: domain.ActionRunCheck, Ref: "peer_count"},
				},
			},
		},
		RuleSet: domain.RuleSet{
			"cluster_peer_count": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value < 2",
					Severity:       domain.SeverityHigh,
					Score:          15,
					ReasonTemplate: "only {{value}} peer(s) visible; replication factor cannot be satisfied across nodes",
					Recommendations: []string{
						"verify gossip connectivity between nodes",
					},
				},
			},
		},
		Schema: config.Schema{},
	}
}

func checkPeerCount(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()
	result, err := conn.Query(ctx, connector.SQL("SELECT peer FROM system.peers"))
	if err != nil || result.IsError() {
		classified := result.Err
		if classified == nil {
			classified = connector.Classify(err)
		}
		return domain.Finding{
			Status: domain.StatusError, StartedAt: started,
			Error: &domain.FindingError{Kind: string(classified.Kind), Message: classified.Message},
		}
	}

	count := len(result.Rows)
	status := domain.StatusOK
	if count < 2 {
		status = domain.StatusWarning
	}

	return domain.Finding{
		Status:         status,
		Metrics:        map[string]any{"cluster_peer_count": count},
		ReportFragment: fmt.Sprintf("%d peer(s) visible via gossip.", count),
		StartedAt:      started,
	}
}
