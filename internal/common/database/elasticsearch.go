// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"net/http"

	"ai-junction/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// retryStatuses are the responses the audit client retries on.
var retryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// ElasticsearchClient is the client behind the dispatch audit sink.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(clientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

func clientConfig(cfg config.ElasticsearchConfig) elasticsearch.Config {
	esCfg := elasticsearch.Config{
		Addresses:     cfg.Hosts(),
		RetryOnStatus: retryStatuses,
		MaxRetries:    cfg.MaxRetries,
		DisableRetry:  cfg.MaxRetries < 0,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	return esCfg
}

// Ping doubles as the readiness check for the audit sink.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}
