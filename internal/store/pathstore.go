package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// PathstoreConfig holds settings for the pathstore backend.
type PathstoreConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Pathstore writes chunks as nodes of the pathstore HTTP KV service:
// collections/{name}/meta holds the dimension and
// collections/{name}/chunks/{index} holds one record each.
type Pathstore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewPathstore(cfg PathstoreConfig) (*Pathstore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("pathstore url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Pathstore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// nodeRequest is the body for PUT /kv/{key}.
type nodeRequest struct {
	Value     any    `json:"value"`
	MergeMode string `json:"merge_mode,omitempty"`
	Source    string `json:"source,omitempty"`
}

// nodeResponse is the response from GET /kv/{key}.
type nodeResponse struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

type collectionMeta struct {
	Dimension int    `json:"dimension"`
	CreatedAt string `json:"created_at"`
}

func collectionKey(name string) string {
	return "collections/" + name
}

func (p *Pathstore) Name() string {
	return BackendPathstore
}

func (p *Pathstore) Prepare(ctx context.Context, collection string, dim int, recreate bool) error {
	key := collectionKey(collection)
	if recreate {
		if err := p.deleteNode(ctx, key, true); err != nil {
			return err
		}
	} else {
		node, err := p.getNode(ctx, key+"/meta")
		if err != nil {
			return err
		}
		if node != nil {
			var meta collectionMeta
			if err := json.Unmarshal(node.Value, &meta); err != nil {
				return fmt.Errorf("decode collection meta: %w", err)
			}
			if meta.Dimension != dim {
				return fmt.Errorf("collection %s: dimension %d, want %d", collection, meta.Dimension, dim)
			}
			return nil
		}
	}
	return p.putNode(ctx, key+"/meta", nodeRequest{
		Value: collectionMeta{
			Dimension: dim,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
		Source: "pagegest",
	})
}

func (p *Pathstore) Upsert(ctx context.Context, collection string, records []Record) error {
	key := collectionKey(collection) + "/chunks/"
	for _, r := range records {
		err := p.putNode(ctx, key+strconv.Itoa(r.ChunkIndex), nodeRequest{
			Value:     r,
			MergeMode: "replace",
			Source:    "pagegest",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pathstore) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return req, nil
}

func (p *Pathstore) putNode(ctx context.Context, key string, node nodeRequest) error {
	body, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	req, err := p.newRequest(ctx, http.MethodPut, p.baseURL+"/kv/"+key, bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("put node %s: status %d: %s", key, resp.StatusCode, string(respBody))
	}
	return nil
}

// getNode returns nil without error when the key does not exist.
func (p *Pathstore) getNode(ctx context.Context, key string) (*nodeResponse, error) {
	req, err := p.newRequest(ctx, http.MethodGet, p.baseURL+"/kv/"+key, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("get node %s: status %d: %s", key, resp.StatusCode, string(respBody))
	}

	var node nodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &node, nil
}

// deleteNode removes a node; a missing node is not an error.
func (p *Pathstore) deleteNode(ctx context.Context, key string, recursive bool) error {
	u := p.baseURL + "/kv/" + key
	if recursive {
		u += "?children=true"
	}
	req, err := p.newRequest(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("delete node %s: status %d: %s", key, resp.StatusCode, string(respBody))
}

// Close releases idle connections.
func (p *Pathstore) Close() {
	p.httpClient.CloseIdleConnections()
}

var _ Store = (*Pathstore)(nil)
