package chunker

import (
	"strings"

	"github.com/dgallion1/pagegest/internal/document"
)

// State is the article grouping state.
type State int

const (
	StateNoActiveArticle State = iota
	StateAccumulatingArticle
)

func (s State) String() string {
	if s == StateAccumulatingArticle {
		return "accumulating_article"
	}
	return "no_active_article"
}

const paragraphSeparator = "\n\n"

// Chunker groups a stitched paragraph stream into article chunks scoped by
// the most recent chapter heading. It holds the chapter context and the open
// article buffer of a single document and must not be shared.
type Chunker struct {
	cls *Classifier

	chapterNumber string
	chapterTitle  string

	state State
	buf   []string
	meta  document.ChunkMeta
}

// New creates a Chunker using cls for heading detection.
func New(cls *Classifier) *Chunker {
	return &Chunker{cls: cls}
}

// State returns the current grouping state.
func (c *Chunker) State() State {
	return c.state
}

// Feed consumes one paragraph. It returns the chunk finalized by an article
// heading, if any.
func (c *Chunker) Feed(para string) (document.Chunk, bool) {
	ev := c.cls.Classify(para)
	switch ev.Kind {
	case EventChapter:
		c.chapterNumber, c.chapterTitle = ev.Number, ev.Title
		return document.Chunk{}, false

	case EventArticle:
		done, ok := c.finalize()
		c.state = StateAccumulatingArticle
		c.buf = []string{para}
		c.meta = document.ChunkMeta{
			ChapterNumber: c.chapterNumber,
			ChapterTitle:  c.chapterTitle,
			ArticleNumber: ev.Number,
			ArticleTitle:  ev.Title,
		}
		return done, ok
	}

	if c.state == StateAccumulatingArticle {
		c.buf = append(c.buf, para)
	}
	// Preface before the first article is dropped.
	return document.Chunk{}, false
}

// FeedPage consumes every paragraph of a page and returns the chunks
// finalized while doing so. With grouping disabled the whole page becomes a
// single chunk with empty metadata.
func (c *Chunker) FeedPage(paras []string) []document.Chunk {
	if len(paras) == 0 {
		return nil
	}
	if !c.cls.Grouping() {
		return []document.Chunk{document.NewChunk(strings.Join(paras, paragraphSeparator), document.ChunkMeta{})}
	}

	var out []document.Chunk
	for _, p := range paras {
		if ch, ok := c.Feed(p); ok {
			out = append(out, ch)
		}
	}
	return out
}

// Flush finalizes the open article, if any.
func (c *Chunker) Flush() []document.Chunk {
	if ch, ok := c.finalize(); ok {
		return []document.Chunk{ch}
	}
	return nil
}

// Discard drops the open article without emitting it.
func (c *Chunker) Discard() {
	c.state = StateNoActiveArticle
	c.buf = nil
	c.meta = document.ChunkMeta{}
}

func (c *Chunker) finalize() (document.Chunk, bool) {
	if c.state != StateAccumulatingArticle {
		return document.Chunk{}, false
	}
	ch := document.NewChunk(strings.Join(c.buf, paragraphSeparator), c.meta)
	c.Discard()
	return ch, true
}
