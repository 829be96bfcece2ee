package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/runner"
)

func TestBuildInput_OrdersSeveritiesCriticalFirstRegardlessOfInputOrder(t *testing.T) {
	triggered := []domain.TriggeredRule{
		{CheckID: "a", Severity: domain.SeverityLow, Reason: "low thing"},
		{CheckID: "b", Severity: domain.SeverityCritical, Reason: "critical thing"},
		{CheckID: "c", Severity: domain.SeverityMedium, Reason: "medium thing"},
	}
	in := BuildInput(domain.Target{Technology: domain.TechPostgres, ClusterName: "primary"},
		domain.VersionMetadata{}, 55, time.Now(), nil, triggered, "")

	require.Len(t, in.Severities, 3)
	assert.Equal(t, domain.SeverityCritical, in.Severities[0].Severity)
	assert.Equal(t, domain.SeverityMedium, in.Severities[1].Severity)
	assert.Equal(t, domain.SeverityLow, in.Severities[2].Severity)
}

func TestWriter_RenderProducesCriticalSectionBeforeLowSection(t *testing.T) {
	w, err := New()
	require.NoError(t, err)

	triggered := []domain.TriggeredRule{
		{CheckID: "a", Severity: domain.SeverityLow, Reason: "low thing"},
		{CheckID: "b", Severity: domain.SeverityCritical, Reason: "critical thing"},
	}
	events := []runner.Event{
		{Kind: domain.ActionHeader, Ref: "connections"},
		{Kind: domain.ActionRunCheck, Ref: "connection_utilization", Finding: &domain.Finding{
			Status: domain.StatusOK, ReportFragment: "68% of max_connections",
		}},
	}
	in := BuildInput(domain.Target{Technology: domain.TechPostgres, ClusterName: "primary", CompanyID: "acme"},
		domain.VersionMetadata{Version: "16.2"}, 70, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), events, triggered, "narrative text")

	out, err := w.Render(in)
	require.NoError(t, err)

	critIdx := indexOf(t, out, "CRITICAL")
	lowIdx := indexOf(t, out, "LOW")
	assert.Less(t, critIdx, lowIdx, "critical section must render before the low section")
	assert.Contains(t, out, "connection_utilization")
	assert.Contains(t, out, "narrative text")
	assert.Contains(t, out, "70/100")
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	t.Fatalf("expected %q to contain %q", haystack, needle)
	return -1
}
