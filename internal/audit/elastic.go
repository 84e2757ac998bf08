package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultElasticIndex = "audit-logs"

// ElasticSink indexes entries into Elasticsearch, one document per entry keyed by entry ID.
type ElasticSink struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticSink creates a sink with a given Elasticsearch URL.
func NewElasticSink(url, index string) (*ElasticSink, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("audit: elasticsearch url is required")
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(index) == "" {
		index = DefaultElasticIndex
	}
	return &ElasticSink{client: client, index: index}, nil
}

func (s *ElasticSink) AppendAudit(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: e.ID,
		Body:       bytes.NewReader(data),
		OpType:     "create",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index audit entry: %s", res.String())
	}
	return nil
}
