package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagegest/internal/crawl"
	"github.com/dgallion1/pagegest/internal/store"
)

func TestLoad_Defaults(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)
	cfg := Load(v)

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, ".reader_article_body", cfg.ContentSelector)
	assert.Equal(t, crawl.DefaultNextText, cfg.NextText)
	assert.Equal(t, 800*time.Millisecond, cfg.PaceMin)
	assert.Equal(t, 2*time.Second, cfg.PaceMax)
	assert.Equal(t, store.BackendMemory, cfg.Store)
	assert.Equal(t, "docs_", cfg.CollectionPrefix)
	assert.True(t, cfg.Recreate)
	assert.Equal(t, ProviderOpenAI, cfg.EmbeddingProvider)
	assert.Equal(t, "ai-forever/FRIDA", cfg.EmbeddingModel)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.NotEmpty(t, cfg.Patterns().Article)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PAGEGEST_STORE_BACKEND", "Elasticsearch")
	t.Setenv("PAGEGEST_STORE_ES_URLS", "http://es1:9200, http://es2:9200")
	t.Setenv("PAGEGEST_CRAWL_MAX_PAGES", "25")
	t.Setenv("PAGEGEST_WORKERS_COUNT", "-3")
	t.Setenv("PAGEGEST_CRAWL_PACE_MIN", "3s")

	v, err := New("")
	require.NoError(t, err)
	cfg := Load(v)

	assert.Equal(t, store.BackendElasticsearch, cfg.Store)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.ESURLs)
	assert.Equal(t, 25, cfg.MaxPages)
	assert.Equal(t, 4, cfg.WorkerCount, "non-positive falls back to default")
	assert.Equal(t, 3*time.Second, cfg.PaceMax, "max is raised to min")
	require.NoError(t, cfg.Validate())
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagegest.yaml")
	content := `
store:
  backend: pathstore
  pathstore_url: http://paths:8080
  recreate: false
embedding:
  provider: hash
  dimension: 64
chunk:
  article_regex: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := New(path)
	require.NoError(t, err)
	cfg := Load(v)

	assert.Equal(t, store.BackendPathstore, cfg.Store)
	assert.Equal(t, "http://paths:8080", cfg.PathstoreURL)
	assert.False(t, cfg.Recreate)
	assert.Equal(t, ProviderHash, cfg.EmbeddingProvider)
	assert.Equal(t, 64, cfg.EmbeddingDimension)
	assert.Empty(t, cfg.ArticleRegex)
	require.NoError(t, cfg.Validate())

	sc := cfg.StoreConfig()
	assert.Equal(t, "http://paths:8080", sc.Pathstore.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown store", func(c *Config) { c.Store = "qdrant" }, true},
		{"pathstore without url", func(c *Config) { c.Store = store.BackendPathstore }, true},
		{"elasticsearch without urls", func(c *Config) { c.Store = store.BackendElasticsearch; c.ESURLs = nil }, true},
		{"unknown provider", func(c *Config) { c.EmbeddingProvider = "local" }, true},
		{"openai without base url", func(c *Config) { c.EmbeddingBaseURL = "" }, true},
		{"hash provider", func(c *Config) { c.EmbeddingProvider = ProviderHash; c.EmbeddingBaseURL = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateServe_RequiresAPIKey(t *testing.T) {
	cfg := Defaults()
	assert.Error(t, cfg.ValidateServe())
	cfg.APIKey = "secret"
	assert.NoError(t, cfg.ValidateServe())
}

func TestCrawlConfig(t *testing.T) {
	cfg := Defaults()
	cfg.NextSelector = "a.next"
	cc := cfg.CrawlConfig()
	assert.Equal(t, "a.next", cc.NextSelector)
	assert.Equal(t, crawl.Pacer{Min: cfg.PaceMin, Max: cfg.PaceMax}, cc.Pacer)
	assert.Equal(t, time.Second, cc.SettleDelay)
}
