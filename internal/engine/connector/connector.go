// Package connector defines the uniform session-holding adapter contract
// and per-technology implementations. The engine only ever
// talks to the Connector interface; it never knows which wire protocol a
// given technology actually uses underneath.
package connector

import (
	"context"

	"github.com/dbhealthcheck/engine/internal/errs"
)

// Metadata is the result of describe(): version, environment
// classification, node count, cluster name, feature flags.
type Metadata struct {
	Version      string
	Major        int
	Minor        int
	Environment  string
	NodeCount    int
	ClusterName  string
	FeatureFlags map[string]bool
}

// Query is one of the three accepted input shapes: a
// SQL/CQL-like string, a raw command string, or a structured
// operation descriptor for REST/command-oriented backends.
type Query struct {
	Text      string         // SQL/CQL string, or raw command string
	Operation string         // structured operation name, e.g. "cluster_health"
	Params    map[string]any // structured operation params
}

// SQL builds a Query wrapping a SQL/CQL-like string.
func SQL(text string) Query { return Query{Text: text} }

// Command builds a Query wrapping a raw command string (key/value backends).
func Command(text string) Query { return Query{Text: text} }

// Op builds a Query wrapping a structured operation descriptor.
func Op(operation string, params map[string]any) Query {
	return Query{Operation: operation, Params: params}
}

// Result is the uniform shape every Connector.query call returns.
// Exactly one of Columns/Rows, Document, or Err is meaningful; Err
// indicates the call failed and Columns/Rows/Document are empty.
type Result struct {
	Columns  []string
	Rows     [][]any
	Document any // for REST/document-shaped responses
	Err      *errs.Error
}

// IsError reports whether the Result represents a failed query.
func (r Result) IsError() bool { return r.Err != nil }

// ShellResult is the output of an optional shell() call.
type ShellResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Connector is the session-holding adapter every technology implements.
// A Connector is not required to be safe for concurrent use;
// the Check Runner serializes access per instance unless AdvertisesConcurrency
// returns true.
type Connector interface {
	Describe(ctx context.Context) (Metadata, error)
	Query(ctx context.Context, q Query) (Result, error)
	Close(ctx context.Context) error

	// AdvertisesConcurrency reports whether this Connector's underlying
	// client is safe to call concurrently from multiple goroutines. The
	// Check Runner serializes access unless this returns true.
	AdvertisesConcurrency() bool
}

// ShellCapable is implemented by Connectors that were configured with an
// SSH topology. Connectors without SSH configured
// simply don't implement this interface; callers use a type assertion.
type ShellCapable interface {
	Shell(ctx context.Context, cmd string, host string) (ShellResult, error)
}

// Opener constructs and opens a Connector for one Target. Each technology
// package's Open function has this shape; cmd/dbhealthcheck's
// openConnector dispatches to them by technology.
type Opener func(ctx context.Context, target ConnectionInfo) (Connector, error)

// ConnectionInfo is the subset of domain.Target a Connector opener needs,
// kept separate from domain.Target so connector implementations don't
// import the domain package's full surface (endpoints + resolved
// credential, not the reference).
type ConnectionInfo struct {
	Endpoints  []string
	Credential Credential
	TLSEnabled bool
}

// Credential is a resolved (not referenced) credential handed to a
// Connector at open time. Resolution from a CredentialRef happens
// upstream of the connector package, which never sees secret stores.
type Credential struct {
	Username string
	Password string
	Token    string
}
