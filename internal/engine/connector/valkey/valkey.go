// Package valkey implements connector.Connector for Valkey/Redis via
// github.com/redis/go-redis/v9, the widely-used Redis-protocol client.
package valkey

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type Connector struct {
	client *redis.Client
}

func Open(ctx context.Context, info connector.ConnectionInfo) (connector.Connector, error) {
	if len(info.Endpoints) == 0 {
		return nil, errs.New(errs.ConnectorConnect, "valkey: at least one endpoint is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     info.Endpoints[0],
		Username: info.Credential.Username,
		Password: info.Credential.Password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, connector.Classify(err)
	}
	return &Connector{client: client}, nil
}

func (c *Connector) Describe(ctx context.Context) (connector.Metadata, error) {
	info, err := c.client.Info(ctx, "server", "replication").Result()
	if err != nil {
		return connector.Metadata{}, connector.Classify(err)
	}

	fields := parseInfo(info)
	nodeCount := 1
	if n, ok := fields["connected_slaves"]; ok {
		if count, err := strconv.Atoi(n); err == nil {
			nodeCount = count + 1
		}
	}

	return connector.Metadata{
		Version:     fields["redis_version"],
		Environment: "production",
		NodeCount:   nodeCount,
		FeatureFlags: map[string]bool{
			"is_valkey": strings.Contains(strings.ToLower(fields["redis_version"]), "valkey"),
		},
	}, nil
}

func parseInfo(raw string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(raw, "\r\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			fields[parts[0]] = parts[1]
		}
	}
	return fields
}

// Query accepts a raw command string (e.g. "INFO memory", "CONFIG GET
// maxmemory-policy") for key/value backends.
func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	if q.Text == "" {
		err := errs.New(errs.ConnectorSyntax, "valkey: empty command")
		return connector.Result{Err: err}, err
	}

	args := strings.Fields(q.Text)
	if len(args) == 0 {
		err := errs.New(errs.ConnectorSyntax, "valkey: empty command")
		return connector.Result{Err: err}, err
	}

	cmdArgs := make([]any, len(args))
	for i, a := range args {
		cmdArgs[i] = a
	}

	res, err := c.client.Do(ctx, cmdArgs...).Result()
	if err != nil {
		classified := connector.Classify(err)
		return connector.Result{Err: classified}, classified
	}

	switch v := res.(type) {
	case []any:
		columns := []string{"key", "value"}
		var rows [][]any
		for i := 0; i+1 < len(v); i += 2 {
			rows = append(rows, []any{fmt.Sprint(v[i]), fmt.Sprint(v[i+1])})
		}
		return connector.Result{Columns: columns, Rows: rows}, nil
	default:
		return connector.Result{Document: res}, nil
	}
}

func (c *Connector) Close(ctx context.Context) error { return c.client.Close() }

// AdvertisesConcurrency reports true: *redis.Client is safe for
// concurrent use across goroutines.
func (c *Connector) AdvertisesConcurrency() bool { return true }
