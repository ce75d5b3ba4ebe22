package viewer

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownLoader handles Markdown files using goldmark. Thematic breaks
// (---, ***) separate pages; every block becomes a paragraph.
type MarkdownLoader struct{}

func (l *MarkdownLoader) Load(path string) ([][]string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var pages [][]string
	var cur []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() == ast.KindThematicBreak {
			pages = append(pages, cur)
			cur = nil
			continue
		}
		cur = blockParagraphs(n, src, cur)
	}
	if len(cur) > 0 || len(pages) == 0 {
		pages = append(pages, cur)
	}
	return pages, nil
}

// blockParagraphs appends the paragraphs found in a block node.
func blockParagraphs(n ast.Node, src []byte, out []string) []string {
	switch n.Kind() {
	case ast.KindParagraph, ast.KindHeading, ast.KindTextBlock:
		if t := inlineText(n, src); t != "" {
			out = append(out, t)
		}
		return out
	case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
		if t := blockLines(n, src); t != "" {
			out = append(out, t)
		}
		return out
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = blockParagraphs(c, src, out)
	}
	return out
}

// inlineText gets the text content of a block's inline children.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() {
				buf.WriteByte('\n')
			} else if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimSpace(buf.String())
}
