// Package mongodb registers the MongoDB plugin.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
	"go.mongodb.org/mongo-driver/bson"
)

const PluginID = "mongodb"

func New() *resolver.Plugin {
	return &resolver.Plugin{
		ID: PluginID,
		Checks: map[string]resolver.CheckFunc{
			"connection_count": checkConnectionCount,
		},
		CheckMetrics: map[string][]string{
			"connection_count": {"connection_current"},
		},
		Reports: map[string]domain.ReportDefinition{
			"standard": {
				Plugin: PluginID,
				Report: "standard",
				Actions: []domain.Action{
					{Kind: domain.ActionHeader, Ref: "connections"},
					{Kind: domain.ActionRunCheck, Ref: "connection_count"},
				},
			},
		},
		RuleSet: domain.RuleSet{
			"connection_current": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value > 10000",
					Severity:       domain.SeverityMedium,
					Score:          10,
					ReasonTemplate: "{{value}} current connections is approaching typical driver-side pool exhaustion",
					Recommendations: []string{
						"audit application connection pool sizes",
					},
				},
			},
		},
		Schema: config.Schema{},
	}
}

func checkConnectionCount(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()
	result, err := conn.Query(ctx, connector.Op("serverStatus", nil))
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
	connections, _ := doc["connections"].(bson.M)
	current := toInt(connections["current"])

	status := domain.StatusOK
	if current > 10000 {
		status = domain.StatusWarning
	}

	return domain.Finding{
		Status:         status,
		Metrics:        map[string]any{"connection_current": current},
		ReportFragment: fmt.Sprintf("Current connections: %d", current),
		StartedAt:      started,
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}
