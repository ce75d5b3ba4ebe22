package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagegest/internal/document"
)

type activateMode int

const (
	activateNavigate activateMode = iota
	activateSoft
	activateNoop
	activateFail
)

type fakePage struct {
	url        string
	fp         string
	paras      []string
	extractErr error
}

// fakeSource replays a scripted list of pages.
type fakeSource struct {
	pages  []fakePage
	cur    int
	navErr error
	mode   activateMode
	// alwaysNext offers a next control even on the last page.
	alwaysNext bool

	activations int
	settled     int
}

func (f *fakeSource) Navigate(_ context.Context, _ string) error {
	if f.navErr != nil {
		return f.navErr
	}
	f.cur = 0
	return nil
}

func (f *fakeSource) ExtractParagraphs(_ context.Context, _ string) ([]string, error) {
	p := f.pages[f.cur]
	return p.paras, p.extractErr
}

func (f *fakeSource) Fingerprint(_ context.Context) (string, error) {
	return f.pages[f.cur].fp, nil
}

func (f *fakeSource) CurrentLocation() string {
	return f.pages[f.cur].url
}

func (f *fakeSource) FindNextControl(_ context.Context, _, _ string) (Control, bool) {
	if f.alwaysNext || f.cur+1 < len(f.pages) {
		return Control{ID: "next", Label: "Следующая"}, true
	}
	return Control{}, false
}

func (f *fakeSource) Activate(_ context.Context, _ Control) (bool, error) {
	f.activations++
	advance := func() {
		if f.cur+1 < len(f.pages) {
			f.cur++
		}
	}
	switch f.mode {
	case activateNavigate:
		advance()
		return true, nil
	case activateSoft:
		advance()
		return false, context.DeadlineExceeded
	case activateFail:
		return false, errors.New("element detached")
	}
	return false, context.DeadlineExceeded
}

func (f *fakeSource) WaitSettled(_ context.Context) error {
	f.settled++
	return nil
}

func scriptedPages(n int) []fakePage {
	pages := make([]fakePage, n)
	for i := range pages {
		pages[i] = fakePage{
			url:   fmt.Sprintf("https://viewer.test/doc?page=%d", i+1),
			fp:    fmt.Sprintf("fp-%d", i+1),
			paras: []string{fmt.Sprintf("page %d text", i+1)},
		}
	}
	return pages
}

func newTestCrawler(src Source) *Crawler {
	return New(src, Config{NextText: DefaultNextText}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func collect(ctx context.Context, c *Crawler, maxPages int) ([]document.Page, []error) {
	var pages []document.Page
	var errs []error
	for page, err := range c.Pages(ctx, "https://viewer.test/doc", maxPages) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pages = append(pages, page)
	}
	return pages, errs
}

func TestPages_StopsWithoutNextControl(t *testing.T) {
	c := newTestCrawler(&fakeSource{pages: scriptedPages(3)})

	pages, errs := collect(context.Background(), c, 0)

	require.Empty(t, errs)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Index)
		assert.Equal(t, []string{fmt.Sprintf("page %d text", i+1)}, p.Paragraphs)
	}
	assert.Equal(t, StopNoNextControl, c.StopReason())
}

func TestPages_RespectsPageLimit(t *testing.T) {
	for _, limit := range []int{1, 2, 7} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			c := newTestCrawler(&fakeSource{pages: scriptedPages(50)})
			pages, errs := collect(context.Background(), c, limit)
			require.Empty(t, errs)
			assert.Len(t, pages, limit)
			assert.Equal(t, StopPageLimit, c.StopReason())
		})
	}
}

func TestPages_SinglePageWithoutNext(t *testing.T) {
	c := newTestCrawler(&fakeSource{pages: scriptedPages(1)})

	pages, errs := collect(context.Background(), c, 0)

	require.Empty(t, errs)
	assert.Len(t, pages, 1)
	assert.Equal(t, StopNoNextControl, c.StopReason())
}

func TestPages_ClickWithoutEffect(t *testing.T) {
	src := &fakeSource{pages: scriptedPages(1), alwaysNext: true, mode: activateNoop}
	c := newTestCrawler(src)

	pages, errs := collect(context.Background(), c, 0)

	require.Empty(t, errs)
	assert.Len(t, pages, 1)
	assert.Equal(t, StopClickNoEffect, c.StopReason())
	assert.Equal(t, 1, src.activations)
	assert.Equal(t, 1, src.settled)
}

func TestPages_ActivationErrorTreatedAsNoEffect(t *testing.T) {
	src := &fakeSource{pages: scriptedPages(2), mode: activateFail}
	c := newTestCrawler(src)

	pages, errs := collect(context.Background(), c, 0)

	require.Empty(t, errs)
	assert.Len(t, pages, 1)
	assert.Equal(t, StopClickNoEffect, c.StopReason())
}

func TestPages_NavigationToSameContentStops(t *testing.T) {
	src := &fakeSource{pages: scriptedPages(1), alwaysNext: true, mode: activateNavigate}
	c := newTestCrawler(src)

	pages, errs := collect(context.Background(), c, 0)

	require.Empty(t, errs)
	assert.Len(t, pages, 1, "the repeated page is not yielded")
	assert.Equal(t, StopNoNewContent, c.StopReason())
}

func TestPages_SoftNavigationContinues(t *testing.T) {
	src := &fakeSource{pages: scriptedPages(3), mode: activateSoft}
	c := newTestCrawler(src)

	pages, errs := collect(context.Background(), c, 0)

	require.Empty(t, errs)
	assert.Len(t, pages, 3)
	assert.Equal(t, 2, src.settled)
	assert.Equal(t, StopNoNextControl, c.StopReason())
}

func TestPages_ExtractionFailureYieldsEmptyPage(t *testing.T) {
	pages := scriptedPages(3)
	pages[1].extractErr = errors.New("selector timeout")
	pages[1].paras = nil
	c := newTestCrawler(&fakeSource{pages: pages})

	got, errs := collect(context.Background(), c, 0)

	require.Empty(t, errs)
	require.Len(t, got, 3)
	assert.True(t, got[1].Empty())
	assert.False(t, got[2].Empty())
}

func TestPages_RemovesBlankParagraphs(t *testing.T) {
	pages := scriptedPages(2)
	pages[0].paras = []string{"Chapter 1", "text", ""}
	pages[1].paras = []string{"  ", "next"}
	c := newTestCrawler(&fakeSource{pages: pages})

	got, errs := collect(context.Background(), c, 0)

	require.Empty(t, errs)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"Chapter 1", "text"}, got[0].Paragraphs)
	assert.Equal(t, []string{"next"}, got[1].Paragraphs)
}

func TestPages_StartNavigationFailure(t *testing.T) {
	navErr := errors.New("connection refused")
	c := newTestCrawler(&fakeSource{pages: scriptedPages(2), navErr: navErr})

	pages, errs := collect(context.Background(), c, 0)

	assert.Empty(t, pages)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], navErr)
	assert.Equal(t, StopStartFailed, c.StopReason())
}

func TestPages_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newTestCrawler(&fakeSource{pages: scriptedPages(5)})

	var pages []document.Page
	var errs []error
	for page, err := range c.Pages(ctx, "https://viewer.test/doc", 0) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pages = append(pages, page)
		if len(pages) == 2 {
			cancel()
		}
	}

	assert.Len(t, pages, 2)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
	assert.Equal(t, StopCanceled, c.StopReason())
}

func TestPages_ConsumerBreak(t *testing.T) {
	src := &fakeSource{pages: scriptedPages(5)}
	c := newTestCrawler(src)

	n := 0
	for _, err := range c.Pages(context.Background(), "https://viewer.test/doc", 0) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, src.activations)
}

func TestPages_Restartable(t *testing.T) {
	c := newTestCrawler(&fakeSource{pages: scriptedPages(2)})

	first, _ := collect(context.Background(), c, 0)
	second, _ := collect(context.Background(), c, 0)

	assert.Equal(t, first, second)
}

func TestPacer_Delay(t *testing.T) {
	assert.Zero(t, Pacer{}.Delay())
	assert.Equal(t, 5*time.Millisecond, Pacer{Min: 5 * time.Millisecond}.Delay())

	p := Pacer{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	for range 100 {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, p.Min)
		assert.LessOrEqual(t, d, p.Max)
	}
}

func TestPacer_WaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Pacer{Min: time.Hour, Max: time.Hour}.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
