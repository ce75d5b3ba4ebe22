package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/dgallion1/pagegest/internal/metrics"
)

// DefaultModel is the embedding model requested when none is configured.
const DefaultModel = "ai-forever/FRIDA"

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string // Empty uses the OpenAI API.
	Model     string
	Timeout   time.Duration
	Dimension int // Known vector size; zero probes the endpoint once.
}

// OpenAI calls the embeddings API of OpenAI or any compatible server.
type OpenAI struct {
	client  openai.Client
	model   string
	stats   *Stats
	backoff func(attempt int) time.Duration

	mu  sync.Mutex
	dim int
}

// NewOpenAI creates an embeddings client. stats may be nil.
func NewOpenAI(cfg OpenAIConfig, stats *Stats) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		stats:   stats,
		backoff: Backoff,
		dim:     cfg.Dimension,
	}
}

func (c *OpenAI) Name() string {
	return "openai"
}

// Embed embeds texts in a single request, retrying transient failures.
func (c *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	err := retry.Do(
		func() error {
			vecs, err := c.embedOnce(ctx, texts)
			if err != nil {
				return err
			}
			out = vecs
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(MaxRetries),
		retry.RetryIf(IsRetryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return c.backoff(int(n))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	return out, nil
}

func (c *OpenAI) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.model),
	})
	elapsed := time.Since(start)
	metrics.EmbedDuration.WithLabelValues(c.Name()).Observe(elapsed.Seconds())
	if c.stats != nil {
		c.stats.Record(len(texts), elapsed, err)
	}
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("embeddings response has invalid index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Dimension returns the configured vector size or probes the endpoint once.
func (c *OpenAI) Dimension(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dim > 0 {
		return c.dim, nil
	}
	vecs, err := c.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, fmt.Errorf("probe dimension: %w", err)
	}
	c.dim = len(vecs[0])
	return c.dim, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("embeddings api error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("embeddings api error (status %d)", apiErr.StatusCode)
	}
	return err
}

var _ Embedder = (*OpenAI)(nil)
