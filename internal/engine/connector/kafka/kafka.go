// Package kafka implements connector.Connector for Apache Kafka via
// github.com/segmentio/kafka-go, covering the broker and topic describe
// operations a health check plugin needs. Consumer-group operations are
// not supported.
package kafka

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type Connector struct {
	conn    *kafkago.Conn
	brokers []string
}

func Open(ctx context.Context, info connector.ConnectionInfo) (connector.Connector, error) {
	if len(info.Endpoints) == 0 {
		return nil, errs.New(errs.ConnectorConnect, "kafka: at least one endpoint is required")
	}

	dialer := &kafkago.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", info.Endpoints[0])
	if err != nil {
		return nil, connector.Classify(err)
	}
	return &Connector{conn: conn, brokers: info.Endpoints}, nil
}

func (c *Connector) Describe(ctx context.Context) (connector.Metadata, error) {
	brokers, err := c.conn.Brokers()
	if err != nil {
		return connector.Metadata{}, connector.Classify(err)
	}
	return connector.Metadata{
		Environment: "production",
		NodeCount:   len(brokers),
	}, nil
}

// Query accepts structured {operation, params} descriptors for broker
// and topic introspection: "list_topics" and "broker_list".
func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	switch q.Operation {
	case "list_topics":
		partitions, err := c.conn.ReadPartitions()
		if err != nil {
			classified := connector.Classify(err)
			return connector.Result{Err: classified}, classified
		}
		columns := []string{"topic", "partition", "leader"}
		var rows [][]any
		for _, p := range partitions {
			leader := ""
			if p.Leader.Host != "" {
				leader = fmt.Sprintf("%s:%d", p.Leader.Host, p.Leader.Port)
			}
			rows = append(rows, []any{p.Topic, p.ID, leader})
		}
		return connector.Result{Columns: columns, Rows: rows}, nil

	case "broker_list":
		brokers, err := c.conn.Brokers()
		if err != nil {
			classified := connector.Classify(err)
			return connector.Result{Err: classified}, classified
		}
		columns := []string{"id", "host", "port", "rack"}
		var rows [][]any
		for _, b := range brokers {
			rows = append(rows, []any{b.ID, b.Host, b.Port, b.Rack})
		}
		return connector.Result{Columns: columns, Rows: rows}, nil

	default:
		err := errs.New(errs.ConnectorSyntax, fmt.Sprintf("kafka: unsupported operation %q", q.Operation))
		return connector.Result{Err: err}, err
	}
}

func (c *Connector) Close(ctx context.Context) error { return c.conn.Close() }

func (c *Connector) AdvertisesConcurrency() bool { return false }
