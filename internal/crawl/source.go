// Package crawl walks the "next page" controls of a paginated viewer and
// streams the visited pages.
package crawl

import "context"

// Control is an activatable "next" element located on the current page.
type Control struct {
	ID    string // Source-specific handle, e.g. a resolved URL or page index.
	Label string // Visible text, used only for logging.
}

// Source loads viewer pages and exposes their content. Implementations hold
// a single browsing session and are not safe for concurrent use.
type Source interface {
	// Navigate loads location as the current page.
	Navigate(ctx context.Context, location string) error
	// ExtractParagraphs returns the paragraphs of the current page in reading order.
	ExtractParagraphs(ctx context.Context, contentSelector string) ([]string, error)
	// Fingerprint returns an opaque token identifying the current page content.
	Fingerprint(ctx context.Context) (string, error)
	// CurrentLocation returns the location of the current page.
	CurrentLocation() string
	// FindNextControl looks up the control leading to the following page.
	// Lookup failures are reported as not found.
	FindNextControl(ctx context.Context, selector, matchText string) (Control, bool)
	// Activate triggers the control. navigated is false when no navigation
	// happened within the source's wait bound; the control may still have
	// changed the page in place.
	Activate(ctx context.Context, c Control) (navigated bool, err error)
}

// Settler is implemented by sources that can wait for in-place page updates
// to finish after a non-navigating activation.
type Settler interface {
	WaitSettled(ctx context.Context) error
}
