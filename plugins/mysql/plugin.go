// Package mysql registers the MySQL/MariaDB plugin.
package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
	"github.com/dbhealthcheck/engine/internal/errs"
)

const PluginID = "mysql"

func New() *resolver.Plugin {
	return &resolver.Plugin{
		ID: PluginID,
		Checks: map[string]resolver.CheckFunc{
			"connection_utilization": checkConnectionUtilization,
		},
		CheckMetrics: map[string][]string{
			"connection_utilization": {"connection_utilization_percent"},
		},
		Reports: map[string]domain.ReportDefinition{
			"standard": {
				Plugin: PluginID,
				Report: "standard",
				Actions: []domain.Action{
					{Kind: domain.ActionHeader, Ref: "connections"},
					{Kind: domain.ActionRunCheck, Ref: "connection_utilization"},
				},
			},
		},
		RuleSet: domain.RuleSet{
			"connection_utilization_percent": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value >= 90",
					Severity:       domain.SeverityCritical,
					Score:          20,
					ReasonTemplate: "connection utilization at {{value}}% of max_connections",
					Recommendations: []string{
						"add a connection pooler in front of this instance",
					},
				},
			},
		},
		Schema: config.Schema{},
	}
}

func checkConnectionUtilization(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()

	maxResult, err := conn.Query(ctx, connector.SQL("SHOW VARIABLES LIKE 'max_connections'"))
	if err != nil || maxResult.IsError() || len(maxResult.Rows) == 0 {
		return errorFinding(started, err, maxResult.Err)
	}
	cur, err := conn.Query(ctx, connector.SQL("SHOW STATUS LIKE 'Threads_connected'"))
	if err != nil || cur.IsError() || len(cur.Rows) == 0 {
		return errorFinding(started, err, cur.Err)
	}

	maxConn := toInt(maxResult.Rows[0][1])
	active := toInt(cur.Rows[0][1])
	pct := 0.0
	if maxConn > 0 {
		pct = float64(active) / float64(maxConn) * 100
	}

	status := domain.StatusOK
	if pct >= 90 {
		status = domain.StatusWarning
	}

	return domain.Finding{
		Status: status,
		Sections: []domain.Section{
			{Name: "connections", Columns: []string{"active", "max_connections"}, Rows: [][]any{{active, maxConn}}},
		},
		Metrics:        map[string]any{"connection_utilization_percent": pct},
		ReportFragment: fmt.Sprintf("Active threads: %d / %d (%.1f%%)", active, maxConn, pct),
		StartedAt:      started,
	}
}

func errorFinding(started time.Time, err error, classified *errs.Error) domain.Finding {
	if classified == nil {
		classified = connector.Classify(err)
	}
	return domain.Finding{
		Status:    domain.StatusError,
		StartedAt: started,
		Error:     &domain.FindingError{Kind: string(classified.Kind), Message: classified.Message},
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case []byte:
		var out int
		fmt.Sscanf(string(n), "%d", &out)
		return out
	case string:
		var out int
		fmt.Sscanf(n, "%d", &out)
		return out
	}
	return 0
}
