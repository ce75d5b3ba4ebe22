// Package config loads pagegest settings from defaults, an optional YAML
// file, PAGEGEST_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dgallion1/pagegest/internal/chunker"
	"github.com/dgallion1/pagegest/internal/crawl"
	"github.com/dgallion1/pagegest/internal/embed"
	"github.com/dgallion1/pagegest/internal/store"
)

// Viper keys. Environment names are PAGEGEST_ plus the key upper-cased with
// dots replaced by underscores, e.g. PAGEGEST_STORE_BACKEND.
const (
	KeyPort   = "port"
	KeyAPIKey = "api_key"

	KeyContentSelector = "crawl.content_selector"
	KeyNextSelector    = "crawl.next_selector"
	KeyNextText        = "crawl.next_text"
	KeyMaxPages        = "crawl.max_pages"
	KeyPaceMin         = "crawl.pace_min"
	KeyPaceMax         = "crawl.pace_max"
	KeySettleDelay     = "crawl.settle_delay"
	KeyNavTimeout      = "crawl.timeout"
	KeyUserAgent       = "crawl.user_agent"

	KeyChapterRegex       = "chunk.chapter_regex"
	KeyArticleRegex       = "chunk.article_regex"
	KeyArticleParserRegex = "chunk.article_parser_regex"
	KeyNoArticleGrouping  = "chunk.no_article_grouping"

	KeyStore            = "store.backend"
	KeyESURLs           = "store.es_urls"
	KeyESUsername       = "store.es_username"
	KeyESPassword       = "store.es_password"
	KeyESAPIKey         = "store.es_api_key"
	KeyPathstoreURL     = "store.pathstore_url"
	KeyPathstoreAPIKey  = "store.pathstore_api_key"
	KeyCollectionPrefix = "store.collection_prefix"
	KeyRecreate         = "store.recreate"

	KeyEmbeddingProvider  = "embedding.provider"
	KeyEmbeddingModel     = "embedding.model"
	KeyEmbeddingBaseURL   = "embedding.base_url"
	KeyEmbeddingAPIKey    = "embedding.api_key"
	KeyEmbeddingDimension = "embedding.dimension"
	KeyEmbeddingTimeout   = "embedding.timeout"

	KeyWorkerCount  = "workers.count"
	KeyMaxQueueSize = "workers.queue_size"
	KeyJobTTL       = "workers.job_ttl"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Crawl
	ContentSelector string
	NextSelector    string
	NextText        string
	MaxPages        int
	PaceMin         time.Duration
	PaceMax         time.Duration
	SettleDelay     time.Duration
	NavTimeout      time.Duration
	UserAgent       string

	// Chunking
	ChapterRegex       string
	ArticleRegex       string
	ArticleParserRegex string
	NoArticleGrouping  bool

	// Storage
	Store            string
	ESURLs           []string
	ESUsername       string
	ESPassword       string
	ESAPIKey         string
	PathstoreURL     string
	PathstoreAPIKey  string
	CollectionPrefix string
	Recreate         bool

	// Embeddings
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	EmbeddingDimension int
	EmbeddingTimeout   time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	p := chunker.DefaultPatterns()
	return Config{
		Port: "8090",

		ContentSelector: ".reader_article_body",
		NextText:        crawl.DefaultNextText,
		PaceMin:         800 * time.Millisecond,
		PaceMax:         2 * time.Second,
		SettleDelay:     time.Second,
		NavTimeout:      15 * time.Second,

		ChapterRegex:       p.Chapter,
		ArticleRegex:       p.Article,
		ArticleParserRegex: p.ArticleParser,

		Store:            store.BackendMemory,
		ESURLs:           []string{"http://localhost:9200"},
		CollectionPrefix: store.DefaultCollectionPrefix,
		Recreate:         true,

		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    embed.DefaultModel,
		EmbeddingBaseURL:  "https://api.openai.com/v1/",
		EmbeddingTimeout:  60 * time.Second,

		WorkerCount:  4,
		MaxQueueSize: 100,
		JobTTL:       time.Hour,
	}
}

// New returns a viper instance with defaults, environment binding and the
// optional config file loaded. Without cfgFile, ./pagegest.yaml and
// $HOME/.pagegest/pagegest.yaml are tried.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PAGEGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pagegest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pagegest")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyAPIKey, "")

	v.SetDefault(KeyContentSelector, d.ContentSelector)
	v.SetDefault(KeyNextSelector, d.NextSelector)
	v.SetDefault(KeyNextText, d.NextText)
	v.SetDefault(KeyMaxPages, d.MaxPages)
	v.SetDefault(KeyPaceMin, d.PaceMin)
	v.SetDefault(KeyPaceMax, d.PaceMax)
	v.SetDefault(KeySettleDelay, d.SettleDelay)
	v.SetDefault(KeyNavTimeout, d.NavTimeout)
	v.SetDefault(KeyUserAgent, "")

	v.SetDefault(KeyChapterRegex, d.ChapterRegex)
	v.SetDefault(KeyArticleRegex, d.ArticleRegex)
	v.SetDefault(KeyArticleParserRegex, d.ArticleParserRegex)
	v.SetDefault(KeyNoArticleGrouping, false)

	v.SetDefault(KeyStore, d.Store)
	v.SetDefault(KeyESURLs, d.ESURLs)
	v.SetDefault(KeyESUsername, "")
	v.SetDefault(KeyESPassword, "")
	v.SetDefault(KeyESAPIKey, "")
	v.SetDefault(KeyPathstoreURL, "")
	v.SetDefault(KeyPathstoreAPIKey, "")
	v.SetDefault(KeyCollectionPrefix, d.CollectionPrefix)
	v.SetDefault(KeyRecreate, d.Recreate)

	v.SetDefault(KeyEmbeddingProvider, d.EmbeddingProvider)
	v.SetDefault(KeyEmbeddingModel, d.EmbeddingModel)
	v.SetDefault(KeyEmbeddingBaseURL, d.EmbeddingBaseURL)
	v.SetDefault(KeyEmbeddingAPIKey, "")
	v.SetDefault(KeyEmbeddingDimension, 0)
	v.SetDefault(KeyEmbeddingTimeout, d.EmbeddingTimeout)

	v.SetDefault(KeyWorkerCount, d.WorkerCount)
	v.SetDefault(KeyMaxQueueSize, d.MaxQueueSize)
	v.SetDefault(KeyJobTTL, d.JobTTL)
}

// Load reads a Config from v, falling back to defaults for non-positive
// sizes and durations.
func Load(v *viper.Viper) Config {
	d := Defaults()
	cfg := Config{
		Port:   v.GetString(KeyPort),
		APIKey: v.GetString(KeyAPIKey),

		ContentSelector: v.GetString(KeyContentSelector),
		NextSelector:    v.GetString(KeyNextSelector),
		NextText:        v.GetString(KeyNextText),
		MaxPages:        v.GetInt(KeyMaxPages),
		PaceMin:         v.GetDuration(KeyPaceMin),
		PaceMax:         v.GetDuration(KeyPaceMax),
		SettleDelay:     v.GetDuration(KeySettleDelay),
		NavTimeout:      v.GetDuration(KeyNavTimeout),
		UserAgent:       v.GetString(KeyUserAgent),

		ChapterRegex:       v.GetString(KeyChapterRegex),
		ArticleRegex:       v.GetString(KeyArticleRegex),
		ArticleParserRegex: v.GetString(KeyArticleParserRegex),
		NoArticleGrouping:  v.GetBool(KeyNoArticleGrouping),

		Store:            strings.ToLower(v.GetString(KeyStore)),
		ESURLs:           splitList(v.GetStringSlice(KeyESURLs)),
		ESUsername:       v.GetString(KeyESUsername),
		ESPassword:       v.GetString(KeyESPassword),
		ESAPIKey:         v.GetString(KeyESAPIKey),
		PathstoreURL:     v.GetString(KeyPathstoreURL),
		PathstoreAPIKey:  v.GetString(KeyPathstoreAPIKey),
		CollectionPrefix: v.GetString(KeyCollectionPrefix),
		Recreate:         v.GetBool(KeyRecreate),

		EmbeddingProvider:  strings.ToLower(v.GetString(KeyEmbeddingProvider)),
		EmbeddingModel:     v.GetString(KeyEmbeddingModel),
		EmbeddingBaseURL:   v.GetString(KeyEmbeddingBaseURL),
		EmbeddingAPIKey:    v.GetString(KeyEmbeddingAPIKey),
		EmbeddingDimension: v.GetInt(KeyEmbeddingDimension),
		EmbeddingTimeout:   v.GetDuration(KeyEmbeddingTimeout),

		WorkerCount:  v.GetInt(KeyWorkerCount),
		MaxQueueSize: v.GetInt(KeyMaxQueueSize),
		JobTTL:       v.GetDuration(KeyJobTTL),
	}

	if cfg.Port == "" {
		cfg.Port = d.Port
	}
	if cfg.MaxPages < 0 {
		cfg.MaxPages = 0
	}
	if cfg.PaceMin < 0 {
		cfg.PaceMin = 0
	}
	if cfg.PaceMax < cfg.PaceMin {
		cfg.PaceMax = cfg.PaceMin
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = d.SettleDelay
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = d.NavTimeout
	}
	if cfg.Store == "" {
		cfg.Store = d.Store
	}
	if cfg.EmbeddingProvider == "" {
		cfg.EmbeddingProvider = d.EmbeddingProvider
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = d.EmbeddingModel
	}
	if cfg.EmbeddingTimeout <= 0 {
		cfg.EmbeddingTimeout = d.EmbeddingTimeout
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = d.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = d.MaxQueueSize
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = d.JobTTL
	}
	return cfg
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for part := range strings.SplitSeq(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	switch c.Store {
	case store.BackendMemory:
	case store.BackendElasticsearch:
		if len(c.ESURLs) == 0 {
			return fmt.Errorf("%s is required for the elasticsearch store", KeyESURLs)
		}
	case store.BackendPathstore:
		if c.PathstoreURL == "" {
			return fmt.Errorf("%s is required for the pathstore store", KeyPathstoreURL)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store)
	}

	switch c.EmbeddingProvider {
	case ProviderHash:
	case ProviderOpenAI:
		if c.EmbeddingBaseURL == "" {
			return fmt.Errorf("%s is required for the openai provider", KeyEmbeddingBaseURL)
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", c.EmbeddingProvider)
	}
	return nil
}

// ValidateServe additionally requires the API key guarding the HTTP API.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return errors.New("PAGEGEST_API_KEY is required")
	}
	return nil
}

// Patterns returns the heading patterns for the chunker.
func (c Config) Patterns() chunker.Patterns {
	return chunker.Patterns{
		Chapter:       c.ChapterRegex,
		Article:       c.ArticleRegex,
		ArticleParser: c.ArticleParserRegex,
	}
}

// CrawlConfig returns the crawler settings.
func (c Config) CrawlConfig() crawl.Config {
	return crawl.Config{
		ContentSelector: c.ContentSelector,
		NextSelector:    c.NextSelector,
		NextText:        c.NextText,
		SettleDelay:     c.SettleDelay,
		Pacer:           crawl.Pacer{Min: c.PaceMin, Max: c.PaceMax},
	}
}

// StoreConfig returns the storage backend settings.
func (c Config) StoreConfig() store.Config {
	return store.Config{
		Backend: c.Store,
		Elasticsearch: store.ElasticsearchConfig{
			Addresses: c.ESURLs,
			Username:  c.ESUsername,
			Password:  c.ESPassword,
			APIKey:    c.ESAPIKey,
		},
		Pathstore: store.PathstoreConfig{
			URL:    c.PathstoreURL,
			APIKey: c.PathstoreAPIKey,
		},
	}
}

// OpenAIConfig returns the embeddings client settings.
func (c Config) OpenAIConfig() embed.OpenAIConfig {
	return embed.OpenAIConfig{
		APIKey:    c.EmbeddingAPIKey,
		BaseURL:   c.EmbeddingBaseURL,
		Model:     c.EmbeddingModel,
		Timeout:   c.EmbeddingTimeout,
		Dimension: c.EmbeddingDimension,
	}
}
