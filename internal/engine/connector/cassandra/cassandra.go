// Package cassandra implements connector.Connector for Apache Cassandra
// via github.com/gocql/gocql.
package cassandra

import (
	"context"
	"time"

	"github.com/gocql/gocql"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type Connector struct {
	session *gocql.Session
}

func Open(ctx context.Context, info connector.ConnectionInfo) (connector.Connector, error) {
	if len(info.Endpoints) == 0 {
		return nil, errs.New(errs.ConnectorConnect, "cassandra: at least one endpoint is required")
	}

	cluster := gocql.NewCluster(info.Endpoints...)
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	if info.Credential.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: info.Credential.Username,
			Password: info.Credential.Password,
		}
	}
	cluster.SslOpts = nil
	if info.TLSEnabled {
		cluster.SslOpts = &gocql.SslOptions{EnableHostVerification: false}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, connector.Classify(err)
	}
	return &Connector{session: session}, nil
}

func (c *Connector) Describe(ctx context.Context) (connector.Metadata, error) {
	iter := c.session.Query("SELECT release_version, cluster_name FROM system.local").WithContext(ctx).Iter()
	var version, clusterName string
	iter.Scan(&version, &clusterName)
	if err := iter.Close(); err != nil {
		return connector.Metadata{}, connector.Classify(err)
	}

	peerCount := 0
	peerIter := c.session.Query("SELECT peer FROM system.peers").WithContext(ctx).Iter()
	var peer string
	for peerIter.Scan(&peer) {
		peerCount++
	}
	peerIter.Close()

	return connector.Metadata{
		Version:     version,
		Environment: "production",
		NodeCount:   peerCount + 1,
		ClusterName: clusterName,
	}, nil
}

// Query executes a CQL string. Structured {operation, params} descriptors
// are not applicable to Cassandra; only Q.Text is honored.
func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	if q.Text == "" {
		return connector.Result{}, errs.New(errs.ConnectorSyntax, "cassandra: empty query text")
	}

	iter := c.session.Query(q.Text).WithContext(ctx).Iter()
	columns := make([]string, 0)
	for _, info := range iter.Columns() {
		columns = append(columns, info.Name)
	}

	var rowsOut [][]any
	for {
		row := make(map[string]interface{})
		if !iter.MapScan(row) {
			break
		}
		values := make([]any, len(columns))
		for i, col := range columns {
			values[i] = row[col]
		}
		rowsOut = append(rowsOut, values)
	}
	if err := iter.Close(); err != nil {
		classified := connector.Classify(err)
		return connector.Result{Err: classified}, classified
	}

	return connector.Result{Columns: columns, Rows: rowsOut}, nil
}

func (c *Connector) Close(ctx context.Context) error {
	c.session.Close()
	return nil
}

// AdvertisesConcurrency reports true: gocql.Session is explicitly
// documented as safe for concurrent use across goroutines.
func (c *Connector) AdvertisesConcurrency() bool { return true }
