// Package mongodb implements connector.Connector for MongoDB via
// go.mongodb.org/mongo-driver, issuing structured {operation, params}
// commands (serverStatus, replSetGetStatus, dbStats) rather than a
// SQL-like query string.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type Connector struct {
	client *mongo.Client
}

func Open(ctx context.Context, info connector.ConnectionInfo) (connector.Connector, error) {
	if len(info.Endpoints) == 0 {
		return nil, errs.New(errs.ConnectorConnect, "mongodb: at least one endpoint is required")
	}

	scheme := "mongodb"
	uri := fmt.Sprintf("%s://", scheme)
	if info.Credential.Username != "" {
		uri += fmt.Sprintf("%s:%s@", info.Credential.Username, info.Credential.Password)
	}
	for i, ep := range info.Endpoints {
		if i > 0 {
			uri += ","
		}
		uri += ep
	}

	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, connector.Classify(err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, connector.Classify(err)
	}
	return &Connector{client: client}, nil
}

func (c *Connector) Describe(ctx context.Context) (connector.Metadata, error) {
	var buildInfo bson.M
	if err := c.client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&buildInfo); err != nil {
		return connector.Metadata{}, connector.Classify(err)
	}

	version, _ := buildInfo["version"].(string)

	nodeCount := 1
	var replStatus bson.M
	if err := c.client.Database("admin").RunCommand(ctx, bson.D{{Key: "replSetGetStatus", Value: 1}}).Decode(&replStatus); err == nil {
		if members, ok := replStatus["members"].(bson.A); ok {
			nodeCount = len(members)
		}
	}

	return connector.Metadata{
		Version:     version,
		Environment: "production",
		NodeCount:   nodeCount,
	}, nil
}

// Query accepts a structured {operation, params} descriptor naming an
// admin command to run.
func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	if q.Operation == "" {
		err := errs.New(errs.ConnectorSyntax, "mongodb: query requires an operation")
		return connector.Result{Err: err}, err
	}

	cmd := bson.D{{Key: q.Operation, Value: 1}}
	for k, v := range q.Params {
		cmd = append(cmd, bson.E{Key: k, Value: v})
	}

	var doc bson.M
	if err := c.client.Database("admin").RunCommand(ctx, cmd).Decode(&doc); err != nil {
		classified := connector.Classify(err)
		return connector.Result{Err: classified}, classified
	}

	return connector.Result{Document: map[string]any(doc)}, nil
}

func (c *Connector) Close(ctx context.Context) error { return c.client.Disconnect(ctx) }

// AdvertisesConcurrency reports true: *mongo.Client is documented safe
// for concurrent use across goroutines.
func (c *Connector) AdvertisesConcurrency() bool { return true }
