package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "request_id":   {"type": "keyword"},
      "backend_id":   {"type": "keyword"},
      "backend_type": {"type": "keyword"},
      "intent":       {"type": "keyword"},
      "keywords":     {"type": "keyword"},
      "outcome":      {"type": "keyword"},
      "error_code":   {"type": "keyword"},
      "duration_ms":  {"type": "long"},
      "@timestamp":   {"type": "date"}
    }
  }
}`

type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSink(client *elasticsearch.Client, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

// EnsureIndex creates the audit index with its mapping when absent.
func (s *ElasticsearchSink) EnsureIndex(ctx context.Context) error {
	exists := esapi.IndicesExistsRequest{Index: []string{s.index}}
	res, err := exists.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("check index %s: %s", s.index, res.Status())
	}

	create := esapi.IndicesCreateRequest{
		Index: s.index,
		Body:  bytes.NewReader([]byte(indexMapping)),
	}
	res, err = create.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index %s: %s", s.index, res.String())
	}
	return nil
}

func (s *ElasticsearchSink) Record(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: rec.RequestID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index audit record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index audit record: %s", res.String())
	}
	return nil
}
