package chunker

import (
	"unicode/utf8"

	"github.com/dgallion1/pagegest/internal/document"
)

type committedChunk struct {
	id     int
	length int
}

// DedupIndex collapses repeated detections of the same article. It spans one
// document: identities committed in earlier batches are remembered so a later
// repeat is either dropped or, when longer, re-emitted under its original id.
type DedupIndex struct {
	committed map[document.Identity]committedChunk
}

// NewDedupIndex returns an empty index.
func NewDedupIndex() *DedupIndex {
	return &DedupIndex{committed: make(map[document.Identity]committedChunk)}
}

// Fold deduplicates a batch of finalized candidates. The longer text wins
// per identity and the output follows first-seen identity order. Chunks
// without an article number or title have no identity and pass through.
func (d *DedupIndex) Fold(candidates []document.Chunk) []document.Chunk {
	if len(candidates) == 0 {
		return nil
	}

	// slots holds the output order; a keyed slot is resolved through best.
	type slot struct {
		key   document.Identity
		keyed bool
		chunk document.Chunk
	}
	slots := make([]slot, 0, len(candidates))
	best := make(map[document.Identity]document.Chunk, len(candidates))
	for _, c := range candidates {
		if !identified(c) {
			slots = append(slots, slot{chunk: c})
			continue
		}
		key := c.Meta.Identity()
		cur, seen := best[key]
		if !seen {
			slots = append(slots, slot{key: key, keyed: true})
			best[key] = c
			continue
		}
		if textLen(c.Text) > textLen(cur.Text) {
			best[key] = c
		}
	}

	out := make([]document.Chunk, 0, len(slots))
	for _, s := range slots {
		if !s.keyed {
			out = append(out, s.chunk)
			continue
		}
		c := best[s.key]
		if prev, ok := d.committed[s.key]; ok {
			if textLen(c.Text) <= prev.length {
				continue
			}
			c.SequentialID = prev.id
		}
		out = append(out, c)
	}
	return out
}

// Record remembers chunks that were committed with their sequential ids.
func (d *DedupIndex) Record(chunks []document.Chunk) {
	for _, c := range chunks {
		if !c.Assigned() || !identified(c) {
			continue
		}
		d.committed[c.Meta.Identity()] = committedChunk{id: c.SequentialID, length: textLen(c.Text)}
	}
}

func identified(c document.Chunk) bool {
	return c.Meta.ArticleNumber != "" || c.Meta.ArticleTitle != ""
}

// Len returns the number of distinct identities committed so far.
func (d *DedupIndex) Len() int {
	return len(d.committed)
}

func textLen(s string) int {
	return utf8.RuneCountInString(s)
}
