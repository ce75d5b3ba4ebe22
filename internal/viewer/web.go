package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/dgallion1/pagegest/internal/crawl"
	"github.com/dgallion1/pagegest/internal/document"
)

const defaultWebTimeout = 15 * time.Second

// randomUserAgents is a small set of desktop browser user agents.
var randomUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Web reads a server-rendered paginated viewer over HTTP. Each navigation is
// a fresh colly request sharing one cookie jar and user agent, so the crawl
// looks like a single browsing session.
type Web struct {
	timeout   time.Duration
	userAgent string
	jar       *cookiejar.Jar

	location string
	body     []byte
	doc      *goquery.Document
}

// NewWeb creates a web source.
func NewWeb(opts Options) *Web {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWebTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = randomUserAgents[rand.IntN(len(randomUserAgents))]
	}
	jar, _ := cookiejar.New(nil)
	return &Web{timeout: opts.Timeout, userAgent: ua, jar: jar}
}

func (w *Web) Navigate(ctx context.Context, location string) error {
	return w.fetch(ctx, location)
}

func (w *Web) fetch(ctx context.Context, target string) error {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
		colly.UserAgent(w.userAgent),
	)
	c.SetRequestTimeout(w.timeout)
	c.SetCookieJar(w.jar)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	})

	var (
		resp     *colly.Response
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		resp = r
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(target); err != nil {
		return fmt.Errorf("fetch %s: %w", target, err)
	}
	if fetchErr != nil {
		return fmt.Errorf("fetch %s: %w", target, fetchErr)
	}
	if resp == nil {
		return fmt.Errorf("fetch %s: no response", target)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", target, err)
	}
	doc.Url = resp.Request.URL

	w.location = resp.Request.URL.String()
	w.body = resp.Body
	w.doc = doc
	return nil
}

func (w *Web) ExtractParagraphs(_ context.Context, contentSelector string) ([]string, error) {
	if w.doc == nil {
		return nil, errors.New("no page loaded")
	}
	if contentSelector == "" {
		contentSelector = "body"
	}
	container := w.doc.Find(contentSelector)
	if container.Length() == 0 {
		return nil, fmt.Errorf("content selector %q matched nothing", contentSelector)
	}

	var paras []string
	container.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) > 0 {
		return paras, nil
	}
	return splitParagraphs(container.First().Text()), nil
}

func (w *Web) Fingerprint(_ context.Context) (string, error) {
	if w.doc == nil {
		return "", errors.New("no page loaded")
	}
	return document.Fingerprint(w.body), nil
}

func (w *Web) CurrentLocation() string {
	return w.location
}

// FindNextControl returns the first element matching selector whose text
// contains matchText, ignoring case and runs of whitespace. Without a
// selector there is no control.
func (w *Web) FindNextControl(_ context.Context, selector, matchText string) (crawl.Control, bool) {
	if w.doc == nil || selector == "" {
		return crawl.Control{}, false
	}
	if matchText == "" {
		matchText = crawl.DefaultNextText
	}
	want := normalizeText(matchText)

	var found *goquery.Selection
	w.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, hidden := s.Attr("hidden"); hidden {
			return true
		}
		if strings.Contains(normalizeText(s.Text()), want) {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return crawl.Control{}, false
	}

	ctrl := crawl.Control{Label: strings.TrimSpace(found.Text())}
	if href, ok := found.Attr("href"); ok {
		ctrl.ID = w.resolve(href)
	}
	return ctrl, true
}

// Activate follows a control's link. Controls without a link would need
// script execution, so they are reported as a click without navigation.
func (w *Web) Activate(ctx context.Context, c crawl.Control) (bool, error) {
	if c.ID == "" {
		return false, nil
	}
	if err := w.fetch(ctx, c.ID); err != nil {
		return false, err
	}
	return true, nil
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (w *Web) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base, err := url.Parse(w.location)
	if err != nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
