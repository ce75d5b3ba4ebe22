// Package viewer provides crawl.Source implementations for web viewers,
// local paged documents and in-memory pages.
package viewer

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/pagegest/internal/crawl"
)

// Options configures the sources created by New.
type Options struct {
	Timeout   time.Duration // Per-request navigation timeout for web sources.
	UserAgent string        // Fixed user agent; empty picks a random desktop one.
}

// New returns the source able to open location: a web viewer for http(s)
// URLs and a local paged document for file:// URLs and plain paths.
func New(location string, opts Options) (crawl.Source, error) {
	if location == "" {
		return nil, fmt.Errorf("empty location")
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewWeb(opts), nil
	case "file", "":
		return NewFile(), nil
	}
	return nil, fmt.Errorf("unsupported location scheme %q", u.Scheme)
}

// splitParagraphs breaks text into paragraphs on blank lines.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paras []string
	var cur strings.Builder
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			paras = append(paras, t)
		}
		cur.Reset()
	}
	for line := range strings.SplitSeq(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(line)
	}
	flush()
	return paras
}
