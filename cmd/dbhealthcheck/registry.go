package main

import (
	"context"
	"fmt"

	"github.com/dbhealthcheck/engine/internal/domain"
	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/engine/connector/cassandra"
	"github.com/dbhealthcheck/engine/internal/engine/connector/clickhouse"
	"github.com/dbhealthcheck/engine/internal/engine/connector/kafka"
	"github.com/dbhealthcheck/engine/internal/engine/connector/mongodb"
	"github.com/dbhealthcheck/engine/internal/engine/connector/mysql"
	"github.com/dbhealthcheck/engine/internal/engine/connector/opensearch"
	"github.com/dbhealthcheck/engine/internal/engine/connector/postgres"
	"github.com/dbhealthcheck/engine/internal/engine/connector/valkey"
	"github.com/dbhealthcheck/engine/internal/engine/resolver"
	pluginCassandra "github.com/dbhealthcheck/engine/plugins/cassandra"
	pluginClickHouse "github.com/dbhealthcheck/engine/plugins/clickhouse"
	pluginKafka "github.com/dbhealthcheck/engine/plugins/kafka"
	pluginMongoDB "github.com/dbhealthcheck/engine/plugins/mongodb"
	pluginMySQL "github.com/dbhealthcheck/engine/plugins/mysql"
	pluginOpenSearch "github.com/dbhealthcheck/engine/plugins/opensearch"
	pluginPostgres "github.com/dbhealthcheck/engine/plugins/postgres"
	pluginValkey "github.com/dbhealthcheck/engine/plugins/valkey"
)

// buildRegistry assembles the static plugin registry — never a
// file-scan discovery mechanism.
func buildRegistry() *resolver.Registry {
	return resolver.NewRegistry(
		pluginPostgres.New(),
		pluginMySQL.New(),
		pluginCassandra.New(),
		pluginClickHouse.New(),
		pluginOpenSearch.New(),
		pluginKafka.New(),
		pluginMongoDB.New(),
		pluginValkey.New(),
	)
}

// openConnector dispatches to the technology-specific Opener. This switch
// is the one place the CLI binary knows about every concrete connector
// package; the rest of the engine only ever sees connector.Connector.
func openConnector(ctx context.Context, tech domain.Technology, info connector.ConnectionInfo) (connector.Connector, error) {
	switch tech {
	case domain.TechPostgres:
		return postgres.Open(ctx, info)
	case domain.TechMySQL:
		return mysql.Open(ctx, info)
	case domain.TechCassandra:
		return cassandra.Open(ctx, info)
	case domain.TechClickHouse:
		return clickhouse.Open(ctx, info)
	case domain.TechOpenSearch:
		return opensearch.Open(ctx, info)
	case domain.TechKafka:
		return kafka.Open(ctx, info)
	case domain.TechMongoDB:
		return mongodb.Open(ctx, info)
	case domain.TechValkey:
		return valkey.Open(ctx, info)
	default:
		return nil, fmt.Errorf("dbhealthcheck: unsupported technology %q", tech)
	}
}
