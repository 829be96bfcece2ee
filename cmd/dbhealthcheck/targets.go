package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
)

// targetConfig is the on-disk shape of one target entry in the JSON file
// passed via --targets. CLI config-file loading sits outside the core
// engine's scope; this is deliberately the thinnest
// structure that can construct a domain.Target and a connector.ConnectionInfo.
type targetConfig struct {
	Technology  domain.Technology `json:"technology"`
	Endpoints   []string          `json:"endpoints"`
	Username    string            `json:"username"`
	Password    string            `json:"password"`
	Token       string            `json:"token"`
	TLSEnabled  bool              `json:"tls_enabled"`
	CompanyID   string            `json:"company_id"`
	ClusterName string            `json:"cluster_name"`
	Report      string            `json:"report"`
	Settings    map[string]any    `json:"settings"`
}

func loadTargetsFile(path string) ([]targetConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	var targets []targetConfig
	if err := json.Unmarshal(raw, &targets); err != nil {
		return nil, fmt.Errorf("parse targets file: %w", err)
	}
	for i, t := range targets {
		if !domain.ValidTechnology(t.Technology) {
			return nil, fmt.Errorf("targets file entry %d: unknown technology %q", i, t.Technology)
		}
		if len(t.Endpoints) == 0 {
			return nil, fmt.Errorf("targets file entry %d: at least one endpoint is required", i)
		}
		if t.Report == "" {
			return nil, fmt.Errorf("targets file entry %d: report is required", i)
		}
	}
	return targets, nil
}

func (t targetConfig) toDomainTarget() domain.Target {
	return domain.Target{
		Technology:  t.Technology,
		Endpoints:   t.Endpoints,
		CompanyID:   t.CompanyID,
		ClusterName: t.ClusterName,
	}
}

func (t targetConfig) toConnectionInfo() connector.ConnectionInfo {
	return connector.ConnectionInfo{
		Endpoints:  t.Endpoints,
		TLSEnabled: t.TLSEnabled,
		Credential: connector.Credential{Username: t.Username, Password: t.Password, Token: t.Token},
	}
}
