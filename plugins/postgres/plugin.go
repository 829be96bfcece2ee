// Package postgres registers the PostgreSQL plugin: its checks, default
// reports, rule set, and settings schema. This is the
// thorough reference plugin the other seven technologies' registrations
// follow the shape of.
package postgres

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

// PluginID is the registration key, matching domain.TechPostgres.
const PluginID = "postgres"

// New assembles the static Plugin — never discovered by a file scan.
func New() *resolver.Plugin {
	schema := config.Schema{
		"postgres.max_connection_utilization_warn_percent": {
			Key: "postgres.max_connection_utilization_warn_percent", Type: config.TypeFloat, Default: 80.0,
		},
		"postgres.include_replication_section": {
			Key: "postgres.include_replication_section", Type: config.TypeBool, Default: true,
		},
	}

	return &resolver.Plugin{
		ID: PluginID,
		Checks: map[string]resolver.CheckFunc{
			"connection_utilization": checkConnectionUtilization,
			"cache_hit_ratio":        checkCacheHitRatio,
			"replication_lag":        checkReplicationLag,
		},
		CheckMetrics: map[string][]string{
			"connection_utilization": {"connection_utilization_percent"},
			"cache_hit_ratio":        {"cache_hit_ratio_percent"},
			"replication_lag":        {"replication_lag_bytes"},
		},
		Reports: map[string]domain.ReportDefinition{
			"standard": {
				Plugin: PluginID,
				Report: "standard",
				Actions: []domain.Action{
					{Kind: domain.ActionHeader, Ref: "connections"},
					{Kind: domain.ActionRunCheck, Ref: "connection_utilization"},
					{Kind: domain.ActionRunCheck, Ref: "cache_hit_ratio"},
					{
						Kind: domain.ActionRunCheck, Ref: "replication_lag",
						Guard: &domain.Guard{SettingKey: "postgres.include_replication_section", Equals: true},
					},
				},
			},
		},
		RuleSet: domain.RuleSet{
			"cache_hit_ratio_percent": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value < 90",
					Severity:       domain.SeverityCritical,
					Score:          20,
					ReasonTemplate: "buffer cache hit ratio is {{value}}%, well below the 90% floor",
					Recommendations: []string{
						"review shared_buffers sizing against working-set size",
						"look for sequential scans on large tables forcing cold reads",
					},
				},
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value < 95",
					Severity:       domain.SeverityHigh,
					Score:          10,
					ReasonTemplate: "buffer cache hit ratio is {{value}}%, below the 95% target",
					Recommendations: []string{
						"review shared_buffers sizing against working-set size",
					},
				},
			},
			"connection_utilization_percent": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value >= 90",
					Severity:       domain.SeverityCritical,
					Score:          20,
					ReasonTemplate: "connection utilization at {{value}}% of max_connections",
					Recommendations: []string{
						"add a connection pooler (pgbouncer) in front of this instance",
						"audit long-lived idle connections",
					},
				},
			},
			"replication_lag_bytes": {
				{
					Scope:          domain.ScopeRow,
					Expression:     "data.lag_bytes > 104857600",
					Severity:       domain.SeverityHigh,
					Score:          10,
					ReasonTemplate: "replica {{application_name}} is {{lag_bytes}} bytes behind",
					Recommendations: []string{
						"check replica I/O and network throughput",
					},
				},
			},
		},
		Schema: schema,
	}
}

func checkConnectionUtilization(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()
	result, err := conn.Query(ctx, connector.SQL(`
		SELECT count(*) AS active, (SELECT setting::int FROM pg_settings WHERE name = 'max_connections') AS max_conn
		FROM pg_stat_activity
	`))
	if err != nil || result.IsError() {
		return errorFinding("connection_utilization", started, err, result.Err)
	}

	if len(result.Rows) == 0 {
		return domain.Finding{Status: domain.StatusNotApplicable, StartedAt: started}
	}

	active := toInt(result.Rows[0][0])
	maxConn := toInt(result.Rows[0][1])
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
		ReportFragment: fmt.Sprintf("Active connections: %d / %d (%.1f%%)", active, maxConn, pct),
		StartedAt:      started,
	}
}

func checkCacheHitRatio(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()
	result, err := conn.Query(ctx, connector.SQL(`
		SELECT sum(heap_blks_hit), sum(heap_blks_hit) + sum(heap_blks_read)
		FROM pg_statio_user_tables
	`))
	if err != nil || result.IsError() {
		return errorFinding("cache_hit_ratio", started, err, result.Err)
	}
	if len(result.Rows) == 0 {
		return domain.Finding{Status: domain.StatusNotApplicable, StartedAt: started}
	}

	hits := toFloat(result.Rows[0][0])
	total := toFloat(result.Rows[0][1])
	ratio := 100.0
	if total > 0 {
		ratio = hits / total * 100
	}

	status := domain.StatusOK
	if ratio < 95 {
		status = domain.StatusWarning
	}

	return domain.Finding{
		Status:         status,
		Metrics:        map[string]any{"cache_hit_ratio_percent": ratio},
		ReportFragment: fmt.Sprintf("Buffer cache hit ratio: %.1f%%", ratio),
		StartedAt:      started,
	}
}

func checkReplicationLag(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()
	result, err := conn.Query(ctx, connector.SQL(`
		SELECT application_name, pg_wal_lsn_diff(pg_current_wal_lsn(), replay_lsn) AS lag_bytes
		FROM pg_stat_replication
	`))
	if err != nil || result.IsError() {
		return errorFinding("replication_lag", started, err, result.Err)
	}

	if len(result.Rows) == 0 {
		return domain.Finding{
			Status:         domain.StatusNotApplicable,
			StartedAt:      started,
			ReportFragment: "No replicas attached.",
		}
	}

	rows := make([][]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, []any{row[0], toInt(row[1])})
	}

	return domain.Finding{
		Status: domain.StatusOK,
		Sections: []domain.Section{
			{Name: "replication_lag_bytes", Columns: []string{"application_name", "lag_bytes"}, Rows: rows},
		},
		ReportFragment: fmt.Sprintf("%d replica(s) reporting.", len(rows)),
		StartedAt:      started,
	}
}

func errorFinding(checkID string, started time.Time, err error, classified *errs.Error) domain.Finding {
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

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
