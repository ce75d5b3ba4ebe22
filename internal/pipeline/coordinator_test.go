package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagegest/internal/document"
	"github.com/dgallion1/pagegest/internal/embed"
	"github.com/dgallion1/pagegest/internal/store"
)

type failingStore struct {
	err error
}

func (f failingStore) Name() string { return "failing" }

func (f failingStore) Prepare(context.Context, string, int, bool) error { return nil }

func (f failingStore) Upsert(context.Context, string, []store.Record) error { return f.err }

// countingEmbedder wraps the hash embedder and records calls.
type countingEmbedder struct {
	*embed.Hash
	calls   int
	batches [][]string
	err     error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.batches = append(c.batches, texts)
	if c.err != nil {
		return nil, c.err
	}
	return c.Hash.Embed(ctx, texts)
}

func newTestCoordinator(e embed.Embedder, s store.Store) *Coordinator {
	c := NewCoordinator(e, s, "doc", "docs_doc", false, discardLogger())
	c.now = func() time.Time {
		return time.Date(2024, 3, 5, 14, 7, 9, 0, time.FixedZone("MSK", 3*60*60))
	}
	return c
}

func TestCommit_AssignsSequentialIDs(t *testing.T) {
	mem := store.NewMemory()
	emb := &countingEmbedder{Hash: embed.NewHash(testDim)}
	c := newTestCoordinator(emb, mem)

	replacement := document.NewChunk("Статья 1. longer", document.ChunkMeta{ArticleNumber: "1"})
	replacement.SequentialID = 0
	chunks := []document.Chunk{
		document.NewChunk("Статья 4.", document.ChunkMeta{ArticleNumber: "4"}),
		replacement,
		document.NewChunk("Статья 5.", document.ChunkMeta{ArticleNumber: "5"}),
	}

	next, err := c.Commit(context.Background(), chunks, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, next)
	assert.Equal(t, 3, chunks[0].SequentialID)
	assert.Equal(t, 0, chunks[1].SequentialID)
	assert.Equal(t, 4, chunks[2].SequentialID)

	assert.Equal(t, 1, emb.calls, "one embedding call per batch")
	assert.Equal(t, []string{"Статья 4.", "Статья 1. longer", "Статья 5."}, emb.batches[0])

	recs := mem.Records("docs_doc")
	require.Len(t, recs, 3)
	assert.Equal(t, []int{0, 3, 4}, []int{recs[0].ChunkIndex, recs[1].ChunkIndex, recs[2].ChunkIndex})
	for _, r := range recs {
		assert.Equal(t, "2024-03-05T14:07:09+03:00", r.UploadTime)
	}
	assert.Equal(t, "2024-03-05T14:07:09+03:00", chunks[0].Meta.UploadTime)
}

func TestCommit_EmptyBatchTouchesNothing(t *testing.T) {
	mem := store.NewMemory()
	emb := &countingEmbedder{Hash: embed.NewHash(testDim)}
	c := newTestCoordinator(emb, mem)

	next, err := c.Commit(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, next)
	assert.Zero(t, emb.calls)
	assert.False(t, c.Prepared())
	assert.False(t, mem.Has("docs_doc"))
}

func TestCommit_PreparesOnce(t *testing.T) {
	mem := store.NewMemory()
	c := newTestCoordinator(embed.NewHash(testDim), mem)
	ctx := context.Background()

	next, err := c.Commit(ctx, []document.Chunk{document.NewChunk("a", document.ChunkMeta{})}, 0)
	require.NoError(t, err)
	next, err = c.Commit(ctx, []document.Chunk{document.NewChunk("b", document.ChunkMeta{})}, next)
	require.NoError(t, err)

	assert.Equal(t, 2, next)
	assert.True(t, c.Prepared())
	assert.Len(t, mem.Records("docs_doc"), 2, "second commit must not recreate")
}

func TestCommit_EmbedErrorKeepsIndex(t *testing.T) {
	mem := store.NewMemory()
	emb := &countingEmbedder{Hash: embed.NewHash(testDim), err: errors.New("upstream down")}
	c := newTestCoordinator(emb, mem)

	chunks := []document.Chunk{document.NewChunk("a", document.ChunkMeta{})}
	next, err := c.Commit(context.Background(), chunks, 4)
	require.Error(t, err)
	assert.Equal(t, 4, next)
	assert.Empty(t, mem.Records("docs_doc"))
	assert.False(t, chunks[0].Assigned(), "failed batch leaves chunks unnumbered")
	assert.Empty(t, chunks[0].Meta.UploadTime)
}

func TestCommit_StoreErrorPropagates(t *testing.T) {
	c := newTestCoordinator(embed.NewHash(testDim), failingStore{err: errors.New("disk full")})

	chunks := []document.Chunk{
		document.NewChunk("a", document.ChunkMeta{}),
		{Text: "b", SequentialID: 7},
	}
	next, err := c.Commit(context.Background(), chunks, 0)
	require.Error(t, err)
	assert.Zero(t, next)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, chunks[0].Assigned())
	assert.Equal(t, 7, chunks[1].SequentialID)
	assert.Empty(t, chunks[1].Meta.UploadTime)
}
