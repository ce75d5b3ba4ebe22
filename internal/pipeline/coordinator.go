package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/pagegest/internal/chunker"
	"github.com/dgallion1/pagegest/internal/document"
	"github.com/dgallion1/pagegest/internal/embed"
	"github.com/dgallion1/pagegest/internal/metrics"
	"github.com/dgallion1/pagegest/internal/store"
)

// UploadTimeLayout is ISO-8601 with the local offset and second precision.
const UploadTimeLayout = "2006-01-02T15:04:05-07:00"

// Coordinator assigns sequential ids to chunks, embeds them and writes them
// to one collection. It belongs to a single document run.
type Coordinator struct {
	embedder   embed.Embedder
	store      store.Store
	docID      string
	collection string
	recreate   bool
	prepared   bool
	now        func() time.Time
	log        *slog.Logger
}

func NewCoordinator(e embed.Embedder, s store.Store, docID, collection string, recreate bool, log *slog.Logger) *Coordinator {
	return &Coordinator{
		embedder:   e,
		store:      s,
		docID:      docID,
		collection: collection,
		recreate:   recreate,
		now:        time.Now,
		log:        log,
	}
}

// Prepared reports whether the destination collection was set up.
func (c *Coordinator) Prepared() bool {
	return c.prepared
}

// Commit embeds and upserts one batch and returns the next free sequential
// id. Unassigned chunks are numbered from start in order; chunks that
// already carry an id keep it. Ids and upload times are written back into
// the given slice only once the batch is stored; on error the chunks are
// left as they were. An empty batch touches nothing and returns start.
func (c *Coordinator) Commit(ctx context.Context, chunks []document.Chunk, start int) (int, error) {
	if len(chunks) == 0 {
		return start, nil
	}
	if err := c.prepare(ctx); err != nil {
		metrics.CommitBatches.WithLabelValues("prepare_error").Inc()
		return start, err
	}

	next := start
	stamp := c.now().Format(UploadTimeLayout)
	ids := make([]int, len(chunks))
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.SequentialID
		if !ch.Assigned() {
			ids[i] = next
			next++
		}
		texts[i] = ch.Text
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		metrics.CommitBatches.WithLabelValues("embed_error").Inc()
		return start, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		metrics.CommitBatches.WithLabelValues("embed_error").Inc()
		return start, fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]store.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = store.Record{
			DocID:         c.docID,
			ChunkIndex:    ids[i],
			Text:          ch.Text,
			ArticleNumber: ch.Meta.ArticleNumber,
			ArticleTitle:  ch.Meta.ArticleTitle,
			ChapterNumber: ch.Meta.ChapterNumber,
			ChapterTitle:  ch.Meta.ChapterTitle,
			UploadTime:    stamp,
			Vector:        vectors[i],
		}
	}
	if err := c.store.Upsert(ctx, c.collection, records); err != nil {
		metrics.CommitBatches.WithLabelValues("store_error").Inc()
		return start, fmt.Errorf("upsert batch: %w", err)
	}

	for i := range chunks {
		chunks[i].SequentialID = ids[i]
		chunks[i].Meta.UploadTime = stamp
	}
	metrics.CommitBatches.WithLabelValues("ok").Inc()
	metrics.ChunksCommitted.Add(float64(len(chunks)))
	for _, ch := range chunks {
		metrics.ChunkTokens.Observe(float64(chunker.EstimateTokens(ch.Text)))
	}
	c.log.Debug("batch committed", "chunks", len(chunks), "next_id", next)
	return next, nil
}

func (c *Coordinator) prepare(ctx context.Context) error {
	if c.prepared {
		return nil
	}
	dim, err := c.embedder.Dimension(ctx)
	if err != nil {
		return fmt.Errorf("embedding dimension: %w", err)
	}
	if err := c.store.Prepare(ctx, c.collection, dim, c.recreate); err != nil {
		return fmt.Errorf("prepare collection %s: %w", c.collection, err)
	}
	c.prepared = true
	c.log.Info("collection ready", "collection", c.collection, "dimension", dim, "recreated", c.recreate)
	return nil
}
