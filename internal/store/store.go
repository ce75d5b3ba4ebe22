// Package store persists embedded chunks into per-document collections.
package store

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// DefaultCollectionPrefix is prepended to the document id to name its collection.
const DefaultCollectionPrefix = "docs_"

// Backend names accepted by New.
const (
	BackendMemory        = "memory"
	BackendElasticsearch = "elasticsearch"
	BackendPathstore     = "pathstore"
)

// Record is one stored chunk with its vector.
type Record struct {
	DocID         string    `json:"doc_id"`
	ChunkIndex    int       `json:"chunk_index"`
	Text          string    `json:"text"`
	ArticleNumber string    `json:"article_number"`
	ArticleTitle  string    `json:"article_title"`
	ChapterNumber string    `json:"chapter_number"`
	ChapterTitle  string    `json:"chapter_title"`
	UploadTime    string    `json:"upload_time"`
	Vector        []float32 `json:"vector"`
}

// Store is the destination of committed chunks.
type Store interface {
	// Prepare makes sure the collection exists with the given vector
	// dimension. With recreate set, existing records are removed first.
	Prepare(ctx context.Context, collection string, dim int, recreate bool) error
	// Upsert writes records keyed by chunk index, replacing existing ones.
	Upsert(ctx context.Context, collection string, records []Record) error
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	Backend       string
	Elasticsearch ElasticsearchConfig
	Pathstore     PathstoreConfig
}

// New builds the configured backend. An empty backend means memory.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendElasticsearch:
		return NewElasticsearch(cfg.Elasticsearch)
	case BackendPathstore:
		return NewPathstore(cfg.Pathstore)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// CollectionName derives the collection for a document. The result is
// lower-case and free of characters Elasticsearch rejects in index names.
func CollectionName(prefix, docID string) string {
	name := strings.ToLower(prefix + docID)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(`\/*?"<>|,#:`, r) {
			return '_'
		}
		return r
	}, name)
}
