package viewer

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dgallion1/pagegest/internal/crawl"
	"github.com/dgallion1/pagegest/internal/document"
)

const pageFragment = "#page="

// Static serves a fixed list of pages. Page n is addressed as
// "<base>#page=n" and the next control always leads to page n+1.
type Static struct {
	base  string
	pages [][]string
	cur   int
}

// NewStatic creates a source over pages. Each page is its paragraph list.
func NewStatic(base string, pages [][]string) *Static {
	return &Static{base: base, pages: pages}
}

// Len returns the number of pages.
func (s *Static) Len() int {
	return len(s.pages)
}

func (s *Static) Navigate(_ context.Context, location string) error {
	if len(s.pages) == 0 {
		return fmt.Errorf("%s: no pages", s.base)
	}
	s.cur = 0
	if i := strings.LastIndex(location, pageFragment); i >= 0 {
		n, err := strconv.Atoi(location[i+len(pageFragment):])
		if err != nil || n < 1 || n > len(s.pages) {
			return fmt.Errorf("%s: no such page %q", s.base, location[i+len(pageFragment):])
		}
		s.cur = n - 1
	}
	return nil
}

func (s *Static) ExtractParagraphs(_ context.Context, _ string) ([]string, error) {
	if s.cur >= len(s.pages) {
		return nil, fmt.Errorf("%s: no page loaded", s.base)
	}
	return slices.Clone(s.pages[s.cur]), nil
}

func (s *Static) Fingerprint(_ context.Context) (string, error) {
	if s.cur >= len(s.pages) {
		return "", fmt.Errorf("%s: no page loaded", s.base)
	}
	return document.Fingerprint([]byte(strings.Join(s.pages[s.cur], "\n\n"))), nil
}

func (s *Static) CurrentLocation() string {
	return s.base + pageFragment + strconv.Itoa(s.cur+1)
}

func (s *Static) FindNextControl(_ context.Context, _, _ string) (crawl.Control, bool) {
	next := s.cur + 2
	if next > len(s.pages) {
		return crawl.Control{}, false
	}
	return crawl.Control{ID: strconv.Itoa(next), Label: fmt.Sprintf("page %d", next)}, true
}

func (s *Static) Activate(_ context.Context, c crawl.Control) (bool, error) {
	n, err := strconv.Atoi(c.ID)
	if err != nil || n < 1 || n > len(s.pages) {
		return false, fmt.Errorf("%s: invalid control %q", s.base, c.ID)
	}
	s.cur = n - 1
	return true, nil
}
