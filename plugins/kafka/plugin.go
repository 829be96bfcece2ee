// Package kafka registers the Kafka plugin.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
)

const PluginID = "kafka"

func New() *resolver.Plugin {
	return &resolver.Plugin{
		ID: PluginID,
		Checks: map[string]resolver.CheckFunc{
			"broker_count": checkBrokerCount,
		},
		CheckMetrics: map[string][]string{
			"broker_count": {"broker_count"},
		},
		Reports: map[string]domain.ReportDefinition{
			"standard": {
				Plugin: PluginID,
				Report: "standard",
				Actions: []domain.Action{
					{Kind: domain.ActionHeader, Ref: "brokers"},
					{Kind: domain.ActionRunCheck, Ref: "broker_count"},
				},
			},
		},
		RuleSet: domain.RuleSet{
			"broker_count": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value < 3",
					Severity:       domain.SeverityMedium,
					Score:          10,
					ReasonTemplate: "only {{value}} broker(s) in the cluster; replication factor 3 cannot be honored",
					Recommendations: []string{
						"add brokers or lower the configured replication factor",
					},
				},
			},
		},
		Schema: config.Schema{},
	}
}

func checkBrokerCount(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()
	result, err := conn.Query(ctx, connector.Op("broker_list", nil))
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
	if count < 3 {
		status = domain.StatusWarning
	}

	return domain.Finding{
		Status: status,
		Sections: []domain.Section{
			{Name: "brokers", Columns: result.Columns, Rows: result.Rows},
		},
		Metrics:        map[string]any{"broker_count": count},
		ReportFragment: fmt.Sprintf("%d broker(s) in cluster.", count),
		StartedAt:      started,
	}
}
