package crawl

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/pagegest/internal/document"
	"github.com/dgallion1/pagegest/internal/metrics"
)

// DefaultNextText is the label matched on "next page" controls.
const DefaultNextText = "Следующая"

// StopReason records why a crawl ended.
type StopReason string

const (
	StopNone          StopReason = ""
	StopNoNewContent  StopReason = "no_new_content"
	StopPageLimit     StopReason = "page_limit"
	StopNoNextControl StopReason = "no_next_control"
	StopClickNoEffect StopReason = "click_no_effect"
	StopCanceled      StopReason = "canceled"
	StopStartFailed   StopReason = "start_failed"
)

// Config controls how pages are read and how the crawler advances.
type Config struct {
	ContentSelector string
	NextSelector    string
	NextText        string
	SettleDelay     time.Duration // Pause before re-sampling after a non-navigating activation.
	Pacer           Pacer
}

// Crawler turns a Source into a lazy sequence of pages. A Crawler drives one
// source and must not run two crawls at the same time.
type Crawler struct {
	src  Source
	cfg  Config
	log  *slog.Logger
	stop StopReason
}

// New creates a Crawler over src.
func New(src Source, cfg Config, log *slog.Logger) *Crawler {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Crawler{src: src, cfg: cfg, log: log}
}

// StopReason returns why the most recent crawl ended.
func (c *Crawler) StopReason() StopReason {
	return c.stop
}

// Pages navigates to start and yields every visited page in order. A
// maxPages of zero or less means no limit. The sequence ends on one of the
// StopReason conditions; the only errors it yields are a failed start
// navigation and context cancellation, each as the final element.
// Re-ranging the sequence starts a new crawl from start.
func (c *Crawler) Pages(ctx context.Context, start string, maxPages int) iter.Seq2[document.Page, error] {
	return func(yield func(document.Page, error) bool) {
		c.stop = StopNone
		log := c.log.With("start", start)

		if err := c.src.Navigate(ctx, start); err != nil {
			c.finish(log, StopStartFailed)
			yield(document.Page{}, fmt.Errorf("navigate to start: %w", err))
			return
		}

		var (
			prevURL string
			prevFP  string
			visited int
		)
		for {
			if err := ctx.Err(); err != nil {
				c.finish(log, StopCanceled)
				yield(document.Page{}, err)
				return
			}

			visited++
			page := c.capture(ctx, log, visited)
			if visited > 1 && page.URL == prevURL && page.Fingerprint == prevFP {
				c.finish(log, StopNoNewContent)
				return
			}
			prevURL, prevFP = page.URL, page.Fingerprint

			log.Info("page visited", "page", visited, "url", page.URL, "paragraphs", len(page.Paragraphs))
			if !yield(page, nil) {
				return
			}

			if maxPages > 0 && visited >= maxPages {
				c.finish(log, StopPageLimit)
				return
			}

			if err := c.cfg.Pacer.Wait(ctx); err != nil {
				c.finish(log, StopCanceled)
				yield(document.Page{}, err)
				return
			}

			ctrl, ok := c.src.FindNextControl(ctx, c.cfg.NextSelector, c.cfg.NextText)
			if !ok {
				c.finish(log, StopNoNextControl)
				return
			}

			decision, err := c.advance(ctx, log, ctrl, page.Fingerprint)
			if err != nil {
				c.finish(log, StopCanceled)
				yield(document.Page{}, err)
				return
			}
			if decision == DecisionStalled {
				c.finish(log, StopClickNoEffect)
				return
			}
		}
	}
}

// capture reads the current page. Extraction and fingerprint failures are
// logged and leave the page empty rather than aborting the crawl.
func (c *Crawler) capture(ctx context.Context, log *slog.Logger, index int) document.Page {
	page := document.Page{Index: index, URL: c.src.CurrentLocation()}

	paras, err := c.src.ExtractParagraphs(ctx, c.cfg.ContentSelector)
	if err != nil {
		log.Warn("paragraph extraction failed", "page", index, "error", err)
	}
	page.Paragraphs = nonBlank(paras)

	fp, err := c.src.Fingerprint(ctx)
	if err != nil {
		log.Warn("fingerprint failed", "page", index, "error", err)
	}
	page.Fingerprint = fp

	metrics.PagesCrawled.Inc()
	if page.Empty() {
		metrics.EmptyPages.Inc()
	}
	return page
}

func (c *Crawler) finish(log *slog.Logger, reason StopReason) {
	c.stop = reason
	metrics.CrawlStops.WithLabelValues(string(reason)).Inc()
	log.Info("crawl finished", "reason", string(reason))
}

func nonBlank(paras []string) []string {
	out := make([]string, 0, len(paras))
	for _, p := range paras {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
