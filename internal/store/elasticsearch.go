package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchConfig holds connection settings for the Elasticsearch backend.
type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
}

// Elasticsearch stores each collection as an index with a dense_vector field.
type Elasticsearch struct {
	client *es.Client
}

func NewElasticsearch(cfg ElasticsearchConfig) (*Elasticsearch, error) {
	addrs := make([]string, 0, len(cfg.Addresses))
	for _, a := range cfg.Addresses {
		addrs = append(addrs, normalizeURL(a))
	}
	if len(addrs) == 0 {
		addrs = append(addrs, normalizeURL(""))
	}

	clientConfig := es.Config{Addresses: addrs}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &Elasticsearch{client: client}, nil
}

func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

func (s *Elasticsearch) Name() string {
	return BackendElasticsearch
}

func (s *Elasticsearch) Prepare(ctx context.Context, collection string, dim int, recreate bool) error {
	if recreate {
		if err := s.deleteIndex(ctx, collection); err != nil {
			return err
		}
		return s.createIndex(ctx, collection, dim)
	}

	exists, err := s.indexExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.createIndex(ctx, collection, dim)
}

func indexMapping(dim int) map[string]any {
	keyword := map[string]any{"type": "keyword"}
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"doc_id":         keyword,
				"chunk_index":    map[string]any{"type": "integer"},
				"text":           map[string]any{"type": "text"},
				"article_number": keyword,
				"article_title":  map[string]any{"type": "text"},
				"chapter_number": keyword,
				"chapter_title":  map[string]any{"type": "text"},
				"upload_time":    map[string]any{"type": "date"},
				"vector": map[string]any{
					"type":       "dense_vector",
					"dims":       dim,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
}

func (s *Elasticsearch) createIndex(ctx context.Context, name string, dim int) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(indexMapping(dim)); err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}

	res, err := s.client.Indices.Create(
		name,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(&buf),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index %s: %s", name, res.String())
	}
	return nil
}

func (s *Elasticsearch) deleteIndex(ctx context.Context, name string) error {
	res, err := s.client.Indices.Delete(
		[]string{name},
		s.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete index %s: %w", name, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("error deleting index %s: %s", name, res.String())
	}
	return nil
}

func (s *Elasticsearch) indexExists(ctx context.Context, name string) (bool, error) {
	res, err := s.client.Indices.Exists([]string{name}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", name, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("error checking index %s: %s", name, res.String())
	}
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string          `json:"_id"`
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error"`
	} `json:"items"`
}

// Upsert sends all records in one bulk request. Chunk indexes are the
// document ids, so a repeated index replaces the stored record.
func (s *Elasticsearch) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		meta := map[string]any{
			"index": map[string]any{
				"_index": collection,
				"_id":    strconv.Itoa(r.ChunkIndex),
			},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to encode meta: %w", err)
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk indexing error: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("error decoding bulk response: %w", err)
	}
	if !br.Errors {
		return nil
	}
	failed := 0
	var first string
	for _, item := range br.Items {
		for _, op := range item {
			if op.Status >= 300 {
				if failed == 0 {
					first = fmt.Sprintf("id %s: status %d: %s", op.ID, op.Status, op.Error)
				}
				failed++
			}
		}
	}
	return fmt.Errorf("bulk indexing: %d of %d records failed, first %s", failed, len(records), first)
}

var _ Store = (*Elasticsearch)(nil)
