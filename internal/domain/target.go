// Package domain holds the engine's core data model: Target,
// Connector result shapes, Check/Finding, Report Definition, Rule Set,
// Triggered Rule, and Run. It has no dependency on any concrete
// technology adapter, rule expression engine, or storage backend —
// those consume these types, not the other way around.
package domain

import "time"

// Technology is the closed set of supported backend technologies.
type Technology string

const (
	TechPostgres   Technology = "postgres"
	TechMySQL      Technology = "mysql"
	TechCassandra  Technology = "cassandra"
	TechClickHouse Technology = "clickhouse"
	TechOpenSearch Technology = "opensearch"
	TechKafka      Technology = "kafka"
	TechMongoDB    Technology = "mongodb"
	TechValkey     Technology = "valkey"
)

// ValidTechnology reports whether tech is one of the closed set.
func ValidTechnology(tech Technology) bool {
	switch tech {
	case TechPostgres, TechMySQL, TechCassandra, TechClickHouse,
		TechOpenSearch, TechKafka, TechMongoDB, TechValkey:
		return true
	}
	return false
}

// SSHHost describes one node in an optional SSH topology used by checks
// that need shell access (e.g. filesystem/OS level metrics).
type SSHHost struct {
	Host        string
	User        string
	KeyRef      string // reference into a secrets provider, never a raw key
	PasswordRef string
	Port        int
}

// ProviderHints carries optional cloud/managed-service context that flows
// through to the trend DB's infrastructure_metadata_json column.
type ProviderHints struct {
	CloudRegion    string
	ManagedService bool
	ProviderName   string // e.g. "rds", "aiven", "self-managed"
}

// Target is immutable for the duration of one run.
type Target struct {
	Technology    Technology
	Endpoints     []string // host:port pairs; first is primary
	CredentialRef string   // reference into a secrets provider
	CompanyID     string
	ClusterName   string
	SSH           []SSHHost
	Provider      ProviderHints
}

// Status is the closed set of Finding statuses.
type Status string

const (
	StatusOK            Status = "ok"
	StatusWarning       Status = "warning"
	StatusError         Status = "error"
	StatusNotApplicable Status = "not_applicable"
	StatusSkipped       Status = "skipped"
)

// Section is one logical, ordered result within a Finding.
type Section struct {
	Name         string
	Columns      []string
	Rows         [][]any
	Summary      string
	SeverityHint string
}

// FindingError carries the classified failure that produced status=error.
type FindingError struct {
	Kind    string
	Message string
}

// Finding is the output of one Check. It is produced even on
// failure; it never lets a panic cross the Check Runner boundary.
type Finding struct {
	CheckID        string
	Status         Status
	Sections       []Section
	Metrics        map[string]any
	ReportFragment string
	StartedAt      time.Time
	DurationMS     int64
	Error          *FindingError
}
