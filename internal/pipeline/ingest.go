package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/pagegest/internal/chunker"
	"github.com/dgallion1/pagegest/internal/crawl"
	"github.com/dgallion1/pagegest/internal/document"
	"github.com/dgallion1/pagegest/internal/embed"
	"github.com/dgallion1/pagegest/internal/metrics"
	"github.com/dgallion1/pagegest/internal/stitch"
	"github.com/dgallion1/pagegest/internal/store"
)

// SourceOpener returns a page source able to load the given start location.
type SourceOpener func(location string) (crawl.Source, error)

// Request describes one document ingest.
type Request struct {
	DocID             string
	StartURL          string
	MaxPages          int
	Crawl             crawl.Config
	Patterns          chunker.Patterns
	NoArticleGrouping bool
	Recreate          bool
	CollectionPrefix  string

	// OnProgress, when set, receives the running totals after each page.
	OnProgress func(Result)
}

// Result summarizes a finished ingest. Chunks counts sequential ids handed
// out, so a rewritten article is counted once.
type Result struct {
	DocID      string           `json:"doc_id"`
	Collection string           `json:"collection"`
	Pages      int              `json:"pages"`
	Chunks     int              `json:"chunks"`
	Batches    int              `json:"batches"`
	Empty      bool             `json:"empty"`
	StopReason crawl.StopReason `json:"stop_reason"`
}

// Ingestor runs documents through crawl, seam repair, chunking, dedup and
// commit. It holds no per-document state, so one Ingestor may serve
// concurrent runs.
type Ingestor struct {
	open     SourceOpener
	embedder embed.Embedder
	store    store.Store
	stitcher *stitch.Stitcher
	log      *slog.Logger
}

func NewIngestor(open SourceOpener, e embed.Embedder, s store.Store, st *stitch.Stitcher, log *slog.Logger) *Ingestor {
	if st == nil {
		st = stitch.New(stitch.DefaultConfig())
	}
	return &Ingestor{open: open, embedder: e, store: s, stitcher: st, log: log}
}

// run is the per-document state owned by a single Run call.
type run struct {
	ck     *chunker.Chunker
	dedup  *chunker.DedupIndex
	coord  *Coordinator
	group  bool
	next   int
	result Result
}

// Run ingests one document. Pages are committed one behind the crawl so the
// seam with the following page can be repaired first. On cancellation the
// held page and the open article are discarded and ctx.Err() is returned.
func (in *Ingestor) Run(ctx context.Context, req Request) (Result, error) {
	if req.DocID == "" {
		return Result{}, errors.New("doc_id is required")
	}
	if req.StartURL == "" {
		return Result{}, errors.New("start url is required")
	}

	patterns := req.Patterns
	if req.NoArticleGrouping {
		patterns.Article = ""
		patterns.ArticleParser = ""
	}
	cls, err := chunker.NewClassifier(patterns)
	if err != nil {
		return Result{}, err
	}

	src, err := in.open(req.StartURL)
	if err != nil {
		return Result{}, fmt.Errorf("open source: %w", err)
	}

	prefix := req.CollectionPrefix
	if prefix == "" {
		prefix = store.DefaultCollectionPrefix
	}
	collection := store.CollectionName(prefix, req.DocID)
	log := in.log.With("doc_id", req.DocID, "collection", collection)

	r := &run{
		ck:     chunker.New(cls),
		dedup:  chunker.NewDedupIndex(),
		coord:  NewCoordinator(in.embedder, in.store, req.DocID, collection, req.Recreate, log),
		group:  cls.Grouping(),
		result: Result{DocID: req.DocID, Collection: collection},
	}

	cr := crawl.New(src, req.Crawl, log)
	var held []string
	for page, err := range cr.Pages(ctx, req.StartURL, req.MaxPages) {
		if err != nil {
			r.ck.Discard()
			r.result.StopReason = cr.StopReason()
			return r.result, err
		}
		r.result.Pages++
		if req.OnProgress != nil {
			req.OnProgress(r.result)
		}
		if page.Empty() {
			continue
		}
		if held == nil {
			held = page.Paragraphs
			continue
		}

		seam := in.stitcher.Stitch(held, page.Paragraphs)
		metrics.SeamOutcomes.WithLabelValues(seam.Outcome.String()).Inc()
		if len(seam.Next) == 0 {
			// The whole page merged into the held one; keep holding it.
			held = seam.Previous
			continue
		}
		if err := r.commit(ctx, r.ck.FeedPage(seam.Previous)); err != nil {
			r.ck.Discard()
			r.result.StopReason = cr.StopReason()
			return r.result, err
		}
		held = seam.Next
	}
	r.result.StopReason = cr.StopReason()

	if err := ctx.Err(); err != nil {
		r.ck.Discard()
		return r.result, err
	}

	final := r.ck.FeedPage(held)
	final = append(final, r.ck.Flush()...)
	if err := r.commit(ctx, final); err != nil {
		return r.result, err
	}

	if r.result.Chunks == 0 {
		r.result.Empty = true
		log.Warn("no chunks produced", "pages", r.result.Pages, "stop_reason", r.result.StopReason)
		return r.result, nil
	}
	log.Info("document ingested",
		"pages", r.result.Pages,
		"chunks", r.result.Chunks,
		"batches", r.result.Batches,
		"stop_reason", r.result.StopReason,
	)
	return r.result, nil
}

func (r *run) commit(ctx context.Context, candidates []document.Chunk) error {
	if len(candidates) == 0 {
		return nil
	}
	metrics.ChunksFinalized.Add(float64(len(candidates)))

	batch := candidates
	if r.group {
		batch = r.dedup.Fold(candidates)
	}
	if len(batch) == 0 {
		return nil
	}

	next, err := r.coord.Commit(ctx, batch, r.next)
	if err != nil {
		return err
	}
	// Longer repeats reuse their committed id and are not new chunks.
	r.result.Chunks += next - r.next
	r.next = next
	if r.group {
		r.dedup.Record(batch)
	}
	r.result.Batches++
	return nil
}
