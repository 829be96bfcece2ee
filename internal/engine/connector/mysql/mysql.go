// Package mysql implements connector.Connector for MySQL/MariaDB via
// github.com/go-sql-driver/mysql, following the same database/sql
// discipline as the postgres adapter.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type Connector struct {
	db *sql.DB
}

func Open(ctx context.Context, info connector.ConnectionInfo) (connector.Connector, error) {
	if len(info.Endpoints) == 0 {
		return nil, errs.New(errs.ConnectorConnect, "mysql: at least one endpoint is required")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s)/?timeout=10s", info.Credential.Username, info.Credential.Password, info.Endpoints[0])
	if info.TLSEnabled {
		dsn += "&tls=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ConnectorConnect, "mysql: open failed", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, connector.Classify(err)
	}
	return &Connector{db: db}, nil
}

func (c *Connector) Describe(ctx context.Context) (connector.Metadata, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return connector.Metadata{}, connector.Classify(err)
	}

	replicas := 1
	rows, err := c.db.QueryContext(ctx, "SHOW REPLICAS")
	if err == nil {
		for rows.Next() {
			replicas++
		}
		rows.Close()
	}

	major, minor := parseVersion(version)
	return connector.Metadata{
		Version:     version,
		Major:       major,
		Minor:       minor,
		Environment: "production",
		NodeCount:   replicas,
	}, nil
}

func parseVersion(v string) (int, int) {
	clean := strings.SplitN(v, "-", 2)[0]
	var major, minor int
	fmt.Sscanf(clean, "%d.%d", &major, &minor)
	return major, minor
}

func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	if q.Text == "" {
		return connector.Result{}, errs.New(errs.ConnectorSyntax, "mysql: empty query text")
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
