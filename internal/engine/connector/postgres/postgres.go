// Package postgres implements connector.Connector for PostgreSQL using
// lib/pq and database/sql, verifying the connection with a ping on open.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

// Connector holds one *sql.DB for the run's lifetime.
type Connector struct {
	db *sql.DB
}

// Open establishes a PostgreSQL connection and verifies it with a ping
// before handing the connector back to the caller.
func Open(ctx context.Context, info connector.ConnectionInfo) (connector.Connector, error) {
	if len(info.Endpoints) == 0 {
		return nil, errs.New(errs.ConnectorConnect, "postgres: at least one endpoint is required")
	}

	dsn := buildDSN(info)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ConnectorConnect, "postgres: open failed", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, connector.Classify(err)
	}

	return &Connector{db: db}, nil
}

func buildDSN(info connector.ConnectionInfo) string {
	host, port := splitHostPort(info.Endpoints[0], "5432")
	sslmode := "require"
	if !info.TLSEnabled {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s sslmode=%s",
		host, port, info.Credential.Username, info.Credential.Password, sslmode)
}

func splitHostPort(endpoint, defaultPort string) (string, string) {
	if idx := strings.LastIndex(endpoint, ":"); idx >= 0 {
		return endpoint[:idx], endpoint[idx+1:]
	}
	return endpoint, defaultPort
}

// Describe reports server version and basic cluster shape.
func (c *Connector) Describe(ctx context.Context) (connector.Metadata, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, "SHOW server_version").Scan(&version); err != nil {
		return connector.Metadata{}, connector.Classify(err)
	}

	hasStatements := false
	row := c.db.QueryRowContext(ctx, "SELECT count(*) > 0 FROM pg_extension WHERE extname = 'pg_stat_statements'")
	_ = row.Scan(&hasStatements)

	major, minor := parsePGVersion(version)
	return connector.Metadata{
		Version:     version,
		Major:       major,
		Minor:       minor,
		Environment: "production",
		NodeCount:   1,
		FeatureFlags: map[string]bool{
			"has_pg_stat_statements": hasStatements,
		},
	}, nil
}

func parsePGVersion(v string) (int, int) {
	var major, minor int
	fmt.Sscanf(v, "%d.%d", &major, &minor)
	return major, minor
}

// Query executes a SQL string and returns a uniform Result. It never
// lets *pq.Error or database/sql errors escape unclassified.
func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	if q.Text == "" {
		return connector.Result{}, errs.New(errs.ConnectorSyntax, "postgres: empty query text")
	}

	rows, err := c.db.QueryContext(ctx, q.Text)
	if err != nil {
		classified := connector.Classify(err)
		return connector.Result{Err: classified}, classified
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		classified := connector.Classify(err)
		return connector.Result{Err: classified}, classified
	}

	var result [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			classified := connector.Classify(err)
			return connector.Result{Err: classified}, classified
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		classified := connector.Classify(err)
		return connector.Result{Err: classified}, classified
	}

	return connector.Result{Columns: columns, Rows: result}, nil
}

func (c *Connector) Close(ctx context.Context) error {
	return c.db.Close()
}

// AdvertisesConcurrency reports false: database/sql *sql.DB is safe for
// concurrent use internally, but the engine still serializes checks by
// default, since per-check settings (e.g. statement_timeout) are set per
// connection in some checks.
func (c *Connector) AdvertisesConcurrency() bool { return false }
