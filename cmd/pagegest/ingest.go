package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pagegest/internal/config"
	"github.com/dgallion1/pagegest/internal/pipeline"
)

var (
	noRecreate bool
)

// ingestFlags maps config keys to the ingest flags that override them.
var ingestFlags = map[string]string{
	config.KeyMaxPages:          "max-pages",
	config.KeyNextSelector:      "next-selector",
	config.KeyNextText:          "next-text",
	config.KeyContentSelector:   "content-selector",
	config.KeyArticleRegex:      "article-regex",
	config.KeyNoArticleGrouping: "no-article-grouping",
	config.KeyStore:             "store",
	config.KeyESURLs:            "es-url",
	config.KeyPathstoreURL:      "pathstore-url",
	config.KeyCollectionPrefix:  "collection-prefix",
	config.KeyEmbeddingProvider: "embedding-provider",
	config.KeyEmbeddingModel:    "embedding-model",
	config.KeyEmbeddingBaseURL:  "embedding-base-url",
	config.KeyPaceMin:           "pace-min",
	config.KeyPaceMax:           "pace-max",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <doc_id> <start_url>",
	Short: "Crawl one document and store its chunks",
	Long: `Crawl a paginated document starting at start_url, chunk it by chapter
and article headings and upsert the embedded chunks into the collection
derived from doc_id.

start_url is an http(s) reader page or a local file (path or file:// URL).

Examples:
  pagegest ingest labor-code https://reader.example/book/1
  pagegest ingest labor-code ./labor-code.pdf --store elasticsearch --es-url http://localhost:9200
  pagegest ingest notes https://reader.example/n --no-article-grouping --max-pages 20`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		v, err := loadConfig(cmd, ingestFlags)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("no-recreate") {
			v.Set(config.KeyRecreate, !noRecreate)
		}
		cfg := config.Load(v)
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, err := newLogger(os.Stderr, false)
		if err != nil {
			return err
		}
		log = log.With("doc_id", args[0])

		c, err := buildComponents(cfg, log)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.ingestor.Run(ctx, pipeline.Request{
			DocID:             args[0],
			StartURL:          args[1],
			MaxPages:          cfg.MaxPages,
			Crawl:             cfg.CrawlConfig(),
			Patterns:          cfg.Patterns(),
			NoArticleGrouping: cfg.NoArticleGrouping,
			Recreate:          cfg.Recreate,
			CollectionPrefix:  cfg.CollectionPrefix,
		})
		if err != nil {
			log.Error("ingest failed", "error", err)
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	d := config.Defaults()
	f := ingestCmd.Flags()

	f.Int("max-pages", d.MaxPages, "maximum pages to visit (0 = unlimited)")
	f.String("next-selector", d.NextSelector, "CSS selector of the next-page control")
	f.String("next-text", d.NextText, "visible text of the next-page control")
	f.String("content-selector", d.ContentSelector, "CSS selector of the page body")
	f.String("article-regex", d.ArticleRegex, "article heading pattern (empty disables grouping)")
	f.Bool("no-article-grouping", false, "store one chunk per page")

	f.String("store", d.Store, "storage backend: memory, elasticsearch or pathstore")
	f.StringSlice("es-url", d.ESURLs, "Elasticsearch address (repeatable)")
	f.String("pathstore-url", "", "pathstore service URL")
	f.String("collection-prefix", d.CollectionPrefix, "collection name prefix")
	f.BoolVar(&noRecreate, "no-recreate", false, "keep an existing collection instead of recreating it")

	f.String("embedding-provider", d.EmbeddingProvider, "embedding provider: openai or hash")
	f.String("embedding-model", d.EmbeddingModel, "embedding model name")
	f.String("embedding-base-url", d.EmbeddingBaseURL, "OpenAI-compatible API base URL")

	f.Duration("pace-min", d.PaceMin, "minimum pause between pages")
	f.Duration("pace-max", d.PaceMax, "maximum pause between pages")
}
