// Package clickhouse implements connector.Connector for ClickHouse via
// github.com/ClickHouse/clickhouse-go/v2's database/sql driver.
package clickhouse

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type Connector struct {
	db *sql.DB
}

func Open(ctx context.Context, info connector.ConnectionInfo) (connector.Connector, error) {
	if len(info.Endpoints) == 0 {
		return nil, errs.New(errs.ConnectorConnect, "clickhouse: at least one endpoint is required")
	}

	opts := &clickhouse.Options{
		Addr: info.Endpoints,
		Auth: clickhouse.Auth{
			Username: info.Credential.Username,
			Password: info.Credential.Password,
		},
	}
	if info.TLSEnabled {
		opts.TLS = &tls.Config{} // rely on system cert pool; explicit tls.Config wiring is deployment-specific
	}

	db := clickhouse.OpenDB(opts)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, connector.Classify(err)
	}
	return &Connector{db: db}, nil
}

func (c *Connector) Describe(ctx context.Context) (connector.Metadata, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return connector.Metadata{}, connector.Classify(err)
	}

	var nodeCount int
	_ = c.db.QueryRowContext(ctx, "SELECT count(*) FROM system.clusters").Scan(&nodeCount)
	if nodeCount == 0 {
		nodeCount = 1
	}

	var major, minor int
	fmt.Sscanf(version, "%d.%d", &major, &minor)

	return connector.Metadata{
		Version:     version,
		Major:       major,
		Minor:       minor,
		Environment: "production",
		NodeCount:   nodeCount,
	}, nil
}

func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	if q.Text == "" {
		return connector.Result{}, errs.New(errs.ConnectorSyntax, "clickhouse: empty query text")
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

func (c *Connector) Close(ctx context.Context) error { return c.db.Close() }

func (c *Connector) AdvertisesConcurrency() bool { return false }
