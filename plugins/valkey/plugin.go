// Package valkey registers the Valkey/Redis plugin.
package valkey

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
)

const PluginID = "valkey"

func New() *resolver.Plugin {
	return &resolver.Plugin{
		ID: PluginID,
		Checks: map[string]resolver.CheckFunc{
			"memory_fragmentation": checkMemoryFragmentation,
		},
		CheckMetrics: map[string][]string{
			"memory_fragmentation": {"mem_fragmentation_ratio"},
		},
		Reports: map[string]domain.ReportDefinition{
			"standard": {
				Plugin: PluginID,
				Report: "standard",
				Actions: []domain.Action{
					{Kind: domain.ActionHeader, Ref: "memory"},
					{Kind: domain.ActionRunCheck, Ref: "memory_fragmentation"},
				},
			},
		},
		RuleSet: domain.RuleSet{
			"mem_fragmentation_ratio": {
				{
					Scope:          domain.ScopeAggregate,
					Expression:     "data.value > 1.5",
					Severity:       domain.SeverityMedium,
					Score:          10,
					ReasonTemplate: "memory fragmentation ratio is {{value}}, indicating the allocator is holding unusable memory",
					Recommendations: []string{
						"schedule a rolling restart during a maintenance window to compact memory",
					},
				},
			},
		},
		Schema: config.Schema{},
	}
}

func checkMemoryFragmentation(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding {
	started := time.Now()
	result, err := conn.Query(ctx, connector.Command("INFO memory"))
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

	ratio := 1.0
	if doc, ok := result.Document.(string); ok {
		ratio = parseFragmentationRatio(doc)
	} else {
		for _, row := range result.Rows {
			if len(row) == 2 && fmt.Sprint(row[0]) == "mem_fragmentation_ratio" {
				ratio, _ = strconv.ParseFloat(fmt.Sprint(row[1]), 64)
			}
		}
	}

	status := domain.StatusOK
	if ratio > 1.5 {
		status = domain.StatusWarning
	}

	return domain.Finding{
		Status:         status,
		Metrics:        map[string]any{"mem_fragmentation_ratio": ratio},
		ReportFragment: fmt.Sprintf("Memory fragmentation ratio: %.2f", ratio),
		StartedAt:      started,
	}
}

func parseFragmentationRatio(info string) float64 {
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, "mem_fragmentation_ratio:") {
			v, _ := strconv.ParseFloat(strings.TrimPrefix(line, "mem_fragmentation_ratio:"), 64)
			return v
		}
	}
	return 1.0
}
