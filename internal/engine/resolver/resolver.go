// Package resolver implements the Plugin & Report-config Resolver and the
// static plugin registration discipline used in place of runtime
// file-scan discovery: each plugin is assembled once at
// program start (see plugins/<tech>) and handed to NewRegistry explicitly.
package resolver

import (
	"context"

	"github.com/dbhealthcheck/engine/internal/config"
	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

// CheckFunc is the implementation a plugin registers for one check_id:
// given a Connector and a Settings snapshot, it produces a Finding. It
// must never panic across this boundary in spirit — the
// Check Runner recovers defensively regardless.
type CheckFunc func(ctx context.Context, conn connector.Connector, settings *config.Settings) domain.Finding

// Plugin is the static, explicitly-constructed registration unit a
// technology contributes — never discovered by a runtime file scan: its
// check registry, its default report definitions, its rule set, and the
// settings schema its checks read.
type Plugin struct {
	ID      string
	Checks  map[string]CheckFunc
	Reports map[string]domain.ReportDefinition
	RuleSet domain.RuleSet
	Schema  config.Schema

	// CheckMetrics declares, per check_id, the stable metrics.keys catalog
	// that check is allowed to emit (testable property #1). Optional —
	// an empty/nil catalog skips the check.
	CheckMetrics map[string][]string
}

// Registry is the static list of plugins assembled at program start.
type Registry struct {
	plugins map[domain.Technology]*Plugin
}

// NewRegistry builds a Registry from an explicit list of plugins — never
// from a file-scan.
func NewRegistry(plugins ...*Plugin) *Registry {
	r := &Registry{plugins: make(map[domain.Technology]*Plugin, len(plugins))}
	for _, p := range plugins {
		r.plugins[domain.Technology(p.ID)] = p
	}
	return r
}

// Plugin returns the registered plugin for tech, if any.
func (r *Registry) Plugin(tech domain.Technology) (*Plugin, bool) {
	p, ok := r.plugins[tech]
	return p, ok
}

// Technologies lists every registered technology, for `list-plugins`.
func (r *Registry) Technologies() []domain.Technology {
	out := make([]domain.Technology, 0, len(r.plugins))
	for tech := range r.plugins {
		out = append(out, tech)
	}
	return out
}

// Resolve translates (tech, report) into an ordered action list and rule
// set. It fails with errs.Config wrapping "unknown_plugin" or
// "unknown_report" — both are configuration errors, not runtime ones.
func (r *Registry) Resolve(tech domain.Technology, report string) (*Plugin, domain.ReportDefinition, error) {
	plugin, ok := r.plugins[tech]
	if !ok {
		return nil, domain.ReportDefinition{}, errs.New(errs.Config, "unknown_plugin: "+string(tech))
	}
	def, ok := plugin.Reports[report]
	if !ok {
		return nil, domain.ReportDefinition{}, errs.New(errs.Config, "unknown_report: "+report+" for plugin "+string(tech))
	}
	return plugin, def, nil
}

// ReportNames lists the report names a plugin declares, for `list-reports`.
func (p *Plugin) ReportNames() []string {
	names := make([]string, 0, len(p.Reports))
	for name := range p.Reports {
		names = append(names, name)
	}
	return names
}
