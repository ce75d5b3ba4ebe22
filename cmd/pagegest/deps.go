package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/pagegest/internal/config"
	"github.com/dgallion1/pagegest/internal/crawl"
	"github.com/dgallion1/pagegest/internal/embed"
	"github.com/dgallion1/pagegest/internal/pipeline"
	"github.com/dgallion1/pagegest/internal/store"
	"github.com/dgallion1/pagegest/internal/viewer"
)

// components holds the collaborators shared by ingest and serve.
type components struct {
	ingestor *pipeline.Ingestor
	stats    *embed.Stats
	store    store.Store
}

func (c components) Close() {
	if closer, ok := c.store.(interface{ Close() }); ok {
		closer.Close()
	}
}

func buildComponents(cfg config.Config, log *slog.Logger) (components, error) {
	var (
		emb   embed.Embedder
		stats *embed.Stats
	)
	switch cfg.EmbeddingProvider {
	case config.ProviderHash:
		emb = embed.NewHash(cfg.EmbeddingDimension)
	case config.ProviderOpenAI:
		stats = embed.NewStats(time.Hour)
		emb = embed.NewOpenAI(cfg.OpenAIConfig(), stats)
	default:
		return components{}, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	st, err := store.New(cfg.StoreConfig())
	if err != nil {
		return components{}, fmt.Errorf("create store: %w", err)
	}

	opts := viewer.Options{Timeout: cfg.NavTimeout, UserAgent: cfg.UserAgent}
	open := func(location string) (crawl.Source, error) {
		return viewer.New(location, opts)
	}

	log.Debug("components ready", "store", st.Name(), "embedder", emb.Name())
	return components{
		ingestor: pipeline.NewIngestor(open, emb, st, nil, log),
		stats:    stats,
		store:    st,
	}, nil
}
