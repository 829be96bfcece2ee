// Package clickhouse registers the ClickHouse plugin.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
)

const PluginID = "clickhouse"

func New() *resolver.Plugin {
	return &resolver.Plugin{
		ID: PluginID,
		Checks: map[string]resolver.CheckFunc{
			"replication_queue": checkReplicationQueue,
		},
		CheckMetrics: map[string][]string{
			"replication_queue": {"replication_queue_size"},
		},
		Reports: map[string]domain.ReportDefinition{
			"standard": {
				Plugin: PluginID,
				Report: "standard",
				Actions: []domain.Action{
					{Kind: domain.ActionHeader, Ref: "replication"},
					{Kind: domain.ActionRunCheck, Ref: "replication_queue"},
				},
			},
		},
		RuleSet: domain.RuleSet{
			"replication_queue_size": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value > 50",
					Severity:       domain.SeverityMedium,
					Score:          10,
					ReasonTemplate: "replication queue depth is {{value}}, indicating replicas are falling behind",
					Recommendations: []string{
						"check merges and network throughput between replicas",
					},
				},
			},
		},
		Schema: config.Schema{},
	}
}

func checkReplicationQueue(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()
	result, err := conn.Query(ctx, connector.SQL("SELECT count(*) FROM system.replication_queue"))
	if err != nil || result.IsError() || len(result.Rows) == 0 {
		classified := result.Err
		if classified == nil {
			classified = connector.Classify(err)
		}
		return domain.Finding{
			Status: domain.StatusError, StartedAt: started,
			Error: &domain.FindingError{Kind: string(classified.Kind), Message: classified.Message},
		}
	}

	size := toInt(result.Rows[0][0])
	status := domain.StatusOK
	if size > 50 {
		status = domain.StatusWarning
	}

	return domain.Finding{
		Status:         status,
		Metrics:        map[string]any{"replication_queue_size": size},
		ReportFragment: fmt.Sprintf("Replication queue depth: %d", size),
		StartedAt:      started,
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
