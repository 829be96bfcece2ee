// Package opensearch implements connector.Connector for OpenSearch over
// its Elasticsearch-compatible REST API, using
// github.com/elastic/go-elasticsearch/v8 — no opensearch-go client
// appears anywhere in the retrieval pack, but OpenSearch's REST surface
// (_cluster/health, _cat/*) is Elasticsearch-compatible, so the elastic
// client's low-level Transport.Perform is used for structured operations.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/dbhealthcheck/engine/internal/engine/connector"
	"github.com/dbhealthcheck/engine/internal/errs"
)

type Connector struct {
	client *elasticsearch.Client
}

func Open(ctx context.Context, info connector.ConnectionInfo) (connector.Connector, error) {
	if len(info.Endpoints) == 0 {
		return nil, errs.New(errs.ConnectorConnect, "opensearch: at least one endpoint is required")
	}

	addresses := make([]string, len(info.Endpoints))
	scheme := "http"
	if info.TLSEnabled {
		scheme = "https"
	}
	for i, ep := range info.Endpoints {
		addresses[i] = fmt.Sprintf("%s://%s", scheme, ep)
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  info.Credential.Username,
		Password:  info.Credential.Password,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ConnectorConnect, "opensearch: client construction failed", err)
	}

	c := &Connector{client: client}
	if _, err := c.doRequest(ctx, http.MethodGet, "/", nil); err != nil {
		return nil, connector.Classify(err)
	}
	return c, nil
}

func (c *Connector) doRequest(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Perform(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("opensearch: %s returned status %d: %s", path, res.StatusCode, string(raw))
	}

	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, err
		}
	}
	return decoded, nil
}

func (c *Connector) Describe(ctx context.Context) (connector.Metadata, error) {
	root, err := c.doRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return connector.Metadata{}, connector.Classify(err)
	}

	version := ""
	if v, ok := root["version"].(map[string]any); ok {
		if num, ok := v["number"].(string); ok {
			version = num
		}
	}
	clusterName, _ := root["cluster_name"].(string)

	health, err := c.doRequest(ctx, http.MethodGet, "/_cluster/health", nil)
	nodeCount := 1
	if err == nil {
		if n, ok := health["number_of_nodes"].(float64); ok {
			nodeCount = int(n)
		}
	}

	return connector.Metadata{
		Version:     version,
		Environment: "production",
		NodeCount:   nodeCount,
		ClusterName: clusterName,
	}, nil
}

// Query accepts a structured {operation, params} descriptor; raw REST
// paths are supported via Q.Text for ad-hoc GETs.
func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	path, method, body := resolveOperation(q)
	if path == "" {
		err := errs.New(errs.ConnectorSyntax, "opensearch: unrecognized query")
		return connector.Result{Err: err}, err
	}

	doc, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		classified := connector.Classify(err)
		return connector.Result{Err: classified}, classified
	}

	return connector.Result{Document: doc}, nil
}

func resolveOperation(q connector.Query) (path, method string, body map[string]any) {
	if q.Operation != "" {
		switch q.Operation {
		case "cluster_health":
			return "/_cluster/health", http.MethodGet, nil
		case "cluster_stats":
			return "/_cluster/stats", http.MethodGet, nil
		case "node_stats":
			return "/_nodes/stats", http.MethodGet, nil
		case "cat_indices":
			return "/_cat/indices?format=json", http.MethodGet, nil
		case "index_settings":
			if name, ok := q.Params["index"].(string); ok {
				return "/" + name + "/_settings", http.MethodGet, nil
			}
		}
		return "", "", nil
	}
	if strings.HasPrefix(q.Text, "/") {
		return q.Text, http.MethodGet, nil
	}
	return "", "", nil
}

func (c *Connector) Close(ctx context.Context) error { return nil }

// AdvertisesConcurrency reports true: the elastic client's Transport is
// safe for concurrent use across goroutines.
func (c *Connector) AdvertisesConcurrency() bool { return true }
