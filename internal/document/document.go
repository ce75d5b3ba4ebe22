package document

import (
	"crypto/sha256"
	"fmt"
)

// Unassigned marks a chunk that has not been given a sequential id yet.
const Unassigned = -1

// Page is the paragraph content of one visited viewer page.
type Page struct {
	Index       int      // 1-based visit number within the crawl
	URL         string   // Location reported by the source after loading
	Fingerprint string   // Content hash, only compared for equality
	Paragraphs  []string // Non-empty paragraphs in reading order
}

// Empty reports whether the page produced no paragraphs.
func (p Page) Empty() bool {
	return len(p.Paragraphs) == 0
}

// ChunkMeta is the structural context captured for a chunk.
type ChunkMeta struct {
	ChapterNumber string `json:"chapter_number"`
	ChapterTitle  string `json:"chapter_title"`
	ArticleNumber string `json:"article_number"`
	ArticleTitle  string `json:"article_title"`
	UploadTime    string `json:"upload_time,omitempty"`
}

// Identity is the dedup key of a chunk.
type Identity struct {
	ChapterNumber string
	ChapterTitle  string
	ArticleNumber string
	ArticleTitle  string
}

// Identity returns the dedup key derived from the metadata.
func (m ChunkMeta) Identity() Identity {
	return Identity{
		ChapterNumber: m.ChapterNumber,
		ChapterTitle:  m.ChapterTitle,
		ArticleNumber: m.ArticleNumber,
		ArticleTitle:  m.ArticleTitle,
	}
}

// Chunk is a finalized unit of text ready for embedding and storage.
type Chunk struct {
	Text         string
	Meta         ChunkMeta
	SequentialID int
}

// NewChunk returns a chunk without a sequential id.
func NewChunk(text string, meta ChunkMeta) Chunk {
	return Chunk{Text: text, Meta: meta, SequentialID: Unassigned}
}

// Assigned reports whether the coordinator already gave the chunk an id.
func (c Chunk) Assigned() bool {
	return c.SequentialID != Unassigned
}

// Fingerprint computes SHA-256 of content and returns the hex string.
func Fingerprint(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
