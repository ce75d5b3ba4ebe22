package viewer

import (
	"fmt"
	"os"
	"strings"
)

// TextLoader handles plain text files. Form feeds separate pages and blank
// lines separate paragraphs.
type TextLoader struct{}

func (l *TextLoader) Load(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	var pages [][]string
	for page := range strings.SplitSeq(string(data), "\f") {
		pages = append(pages, splitParagraphs(page))
	}
	// A trailing form feed does not start a page.
	if n := len(pages); n > 1 && len(pages[n-1]) == 0 {
		pages = pages[:n-1]
	}
	return pages, nil
}
