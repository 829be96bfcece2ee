package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/errs"
)

func testPlugin(id string) *Plugin {
	return &Plugin{
		ID: id,
		Reports: map[string]domain.ReportDefinition{
			"standard": {Plugin: id, Report: "standard"},
		},
	}
}

func TestRegistry_ResolveReturnsPluginAndReport(t *testing.T) {
	r := NewRegistry(testPlugin("postgres"), testPlugin("mysql"))

	plugin, def, err := r.Resolve(domain.TechPostgres, "standard")
	require.NoError(t, err)
	assert.Equal(t, "postgres", plugin.ID)
	assert.Equal(t, "standard", def.Report)
}

func TestRegistry_ResolveUnknownPluginIsAConfigError(t *testing.T) {
	r := NewRegistry(testPlugin("postgres"))

	_, _, err := r.Resolve(domain.TechCassandra, "standard")
	require.Error(t, err)
	classified, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.Config, classified.Kind)
	assert.Contains(t, err.Error(), "unknown_plugin")
}

func TestRegistry_ResolveUnknownReportIsAConfigError(t *testing.T) {
	r := NewRegistry(testPlugin("postgres"))

	_, _, err := r.Resolve(domain.TechPostgres, "nonexistent")
	require.Error(t, err)
	classified, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.Config, classified.Kind)
	assert.Contains(t, err.Error(), "unknown_report")
}

func TestRegistry_TechnologiesListsEveryRegisteredPlugin(t *testing.T) {
	r := NewRegistry(testPlugin("postgres"), testPlugin("mysql"))
	techs := r.Technologies()
	assert.Len(t, techs, 2)
}

func TestPlugin_ReportNamesListsDeclaredReports(t *testing.T) {
	p := testPlugin("postgres")
	p.Reports["security"] = domain.ReportDefinition{Plugin: "postgres", Report: "security"}
	assert.ElementsMatch(t, []string{"standard", "security"}, p.ReportNames())
}
