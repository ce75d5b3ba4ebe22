package store

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES serves the handful of index and bulk endpoints the store uses.
type fakeES struct {
	mu       sync.Mutex
	indices  map[string]map[string]Record
	mappings map[string]json.RawMessage
	requests []string
	failBulk bool
}

func newFakeES(t *testing.T) (*fakeES, *Elasticsearch) {
	t.Helper()
	f := &fakeES{
		indices:  make(map[string]map[string]Record),
		mappings: make(map[string]json.RawMessage),
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	s, err := NewElasticsearch(ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return f, s
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.URL.Path == "/_bulk" {
		f.bulk(w, r)
		return
	}

	name := strings.Trim(r.URL.Path, "/")
	_, exists := f.indices[name]
	switch r.Method {
	case http.MethodHead:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodDelete:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
			return
		}
		delete(f.indices, name)
		w.Write([]byte(`{"acknowledged":true}`))
	case http.MethodPut:
		if exists {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"},"status":400}`))
			return
		}
		var body json.RawMessage
		json.NewDecoder(r.Body).Decode(&body)
		f.mappings[name] = body
		f.indices[name] = make(map[string]Record)
		w.Write([]byte(`{"acknowledged":true}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeES) bulk(w http.ResponseWriter, r *http.Request) {
	type action struct {
		Index struct {
			Index string `json:"_index"`
			ID    string `json:"_id"`
		} `json:"index"`
	}
	var items []map[string]any
	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var a action
		json.Unmarshal(sc.Bytes(), &a)
		if !sc.Scan() {
			break
		}
		var rec Record
		json.Unmarshal(sc.Bytes(), &rec)

		status := http.StatusOK
		if idx, ok := f.indices[a.Index.Index]; ok && !f.failBulk {
			idx[a.Index.ID] = rec
		} else {
			status = http.StatusBadRequest
		}
		items = append(items, map[string]any{
			"index": map[string]any{"_id": a.Index.ID, "status": status},
		})
	}
	json.NewEncoder(w).Encode(map[string]any{
		"errors": f.failBulk,
		"items":  items,
	})
}

func TestElasticsearch_PrepareCreatesVectorMapping(t *testing.T) {
	f, s := newFakeES(t)

	require.NoError(t, s.Prepare(context.Background(), "docs_a", 4, false))
	require.Contains(t, f.mappings, "docs_a")

	var mapping struct {
		Mappings struct {
			Properties map[string]map[string]any `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(f.mappings["docs_a"], &mapping))
	vector := mapping.Mappings.Properties["vector"]
	assert.Equal(t, "dense_vector", vector["type"])
	assert.Equal(t, float64(4), vector["dims"])
	assert.Equal(t, "cosine", vector["similarity"])
}

func TestElasticsearch_EnsureKeepsExistingIndex(t *testing.T) {
	f, s := newFakeES(t)
	ctx := context.Background()
	require.NoError(t, s.Prepare(ctx, "docs_a", 2, false))
	require.NoError(t, s.Upsert(ctx, "docs_a", []Record{rec(0, "a", 2)}))

	require.NoError(t, s.Prepare(ctx, "docs_a", 2, false))
	assert.Len(t, f.indices["docs_a"], 1)
}

func TestElasticsearch_RecreateDropsRecords(t *testing.T) {
	f, s := newFakeES(t)
	ctx := context.Background()

	require.NoError(t, s.Prepare(ctx, "docs_a", 2, true), "missing index is fine")
	require.NoError(t, s.Upsert(ctx, "docs_a", []Record{rec(0, "a", 2)}))

	require.NoError(t, s.Prepare(ctx, "docs_a", 2, true))
	assert.Empty(t, f.indices["docs_a"])
	assert.Contains(t, f.requests, "DELETE /docs_a")
}

func TestElasticsearch_UpsertUsesChunkIndexAsID(t *testing.T) {
	f, s := newFakeES(t)
	ctx := context.Background()
	require.NoError(t, s.Prepare(ctx, "docs_a", 2, false))

	require.NoError(t, s.Upsert(ctx, "docs_a", []Record{rec(0, "a", 2), rec(1, "b", 2)}))
	require.NoError(t, s.Upsert(ctx, "docs_a", []Record{rec(1, "b longer", 2)}))

	docs := f.indices["docs_a"]
	require.Len(t, docs, 2)
	assert.Equal(t, "b longer", docs["1"].Text)
	assert.Equal(t, "doc", docs["0"].DocID)
}

func TestElasticsearch_UpsertEmptyMakesNoRequest(t *testing.T) {
	f, s := newFakeES(t)
	require.NoError(t, s.Upsert(context.Background(), "docs_a", nil))
	assert.Empty(t, f.requests)
}

func TestElasticsearch_BulkItemErrors(t *testing.T) {
	f, s := newFakeES(t)
	ctx := context.Background()
	require.NoError(t, s.Prepare(ctx, "docs_a", 2, false))
	f.failBulk = true

	err := s.Upsert(ctx, "docs_a", []Record{rec(0, "a", 2), rec(1, "b", 2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 records failed")
}
