// Package opensearch registers the OpenSearch plugin.
package opensearch

import (
	"context"
	"fmt"
	"time"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
)

const PluginID = "opensearch"

func New() *resolver.Plugin {
	return &resolver.Plugin{
		ID: PluginID,
		Checks: map[string]resolver.CheckFunc{
			"cluster_health": checkClusterHealth,
		},
		CheckMetrics: map[string][]string{
			"cluster_health": {"cluster_status_code", "unassigned_shards"},
		},
		Reports: map[string]domain.ReportDefinition{
			"standard": {
				Plugin: PluginID,
				Report: "standard",
				Actions: []domain.Action{
					{Kind: domain.ActionHeader, Ref: "cluster"},
					{Kind: domain.ActionRunCheck, Ref: "cluster_health"},
				},
			},
		},
		RuleSet: domain.RuleSet{
			"cluster_status_code": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value == 2",
					Severity:       domain.SeverityCritical,
					Score:          25,
					ReasonTemplate: "cluster status is red",
					Recommendations: []string{
						"investigate unassigned primary shards immediately",
					},
				},
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value == 1",
					Severity:       domain.SeverityMedium,
					Score:          10,
					ReasonTemplate: "cluster status is yellow",
					Recommendations: []string{
						"check replica allocation and disk watermark settings",
					},
				},
			},
			"unassigned_shards": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value > 0",
					Severity:       domain.SeverityHigh,
					Score:          15,
					ReasonTemplate: "{{value}} unassigned shard(s)",
					Recommendations: []string{
						"check allocation explain output for the blocking reason",
					},
				},
			},
		},
		Schema: config.Schema{},
	}
}

// statusCode maps OpenSearch's traffic-light status string onto a closed
// numeric scale the rule language can compare against (green=0, yellow=1,
// red=2) — rules never match on raw strings; the restricted rule AST
// supports equality/relational ops uniformly over numbers.
func statusCode(status string) int {
	switch status {
	case "red":
		return 2
	case "yellow":
		return 1
	default:
		return 0
	}
}

func checkClusterHealth(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()
	result, err := conn.Query(ctx, connector.Op("cluster_health", nil))
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

	doc, _ := result.Document.(map[string]any)
	statusStr, _ := doc["status"].(string)
	unassigned := toInt(doc["unassigned_shards"])

	status := domain.StatusOK
	switch statusStr {
	case "red":
		status = domain.StatusError
	case "yellow":
		status = domain.StatusWarning
	}

	return domain.Finding{
		Status: status,
		Metrics: map[string]any{
			"cluster_status_code": statusCode(statusStr),
			"unassigned_shards":   unassigned,
		},
		ReportFragment: fmt.Sprintf("Cluster status: %s, unassigned shards: %d", statusStr, unassigned),
		StartedAt:      started,
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
