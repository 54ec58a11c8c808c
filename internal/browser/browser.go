// Package browser drives a headless Chrome session through the College
// Navigator lookup: search, open the first result, and click a detail tab.
package browser

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Session is one live browser bound to a single pipeline attempt. Close must
// be called on every exit path.
type Session interface {
	// Search loads the lookup page for name. It fails with a NotFound fault
	// when the site reports no matching institution.
	Search(ctx context.Context, name string) error
	// OpenFirstResult clicks the first search result and returns its text.
	OpenFirstResult(ctx context.Context) (string, error)
	// ClickTab opens a detail-page tab, falling back to a keyword scan of
	// every anchor when the direct link-text match fails.
	ClickTab(ctx context.Context, tab Tab) error
	// PageHTML returns the rendered document after the settle delay.
	PageHTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher opens fresh sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Tab identifies a detail-page tab.
type Tab struct {
	// LinkText is matched as a substring of the anchor text.
	LinkText string
	// Match decides fallback candidates from an anchor's visible text.
	Match func(text string) bool
}

// Options configures the Chrome launcher and the site it drives.
type Options struct {
	BaseURL        string
	NotFoundMarker string
	ResultSelector string

	Headless     bool
	ExecPath     string
	WindowWidth  int
	WindowHeight int

	NavigateTimeout time.Duration
	ResultTimeout   time.Duration
	TabTimeout      time.Duration
	SearchSettle    time.Duration
	RenderSettle    time.Duration
	ScrollPause     time.Duration
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = "https://nces.ed.gov/collegenavigator/"
	}
	if o.NotFoundMarker == "" {
		o.NotFoundMarker = "No matching institutions found"
	}
	if o.ResultSelector == "" {
		o.ResultSelector = ".resultsTable a"
	}
	if o.WindowWidth <= 0 {
		o.WindowWidth = 1920
	}
	if o.WindowHeight <= 0 {
		o.WindowHeight = 1080
	}
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = 30 * time.Second
	}
	if o.ResultTimeout <= 0 {
		o.ResultTimeout = 10 * time.Second
	}
	if o.TabTimeout <= 0 {
		o.TabTimeout = 5 * time.Second
	}
	return o
}

// LookupURL builds the search URL for an institution name. Spaces are
// escaped as %20 rather than '+'.
func LookupURL(base, name string) string {
	q := strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "q=" + q
}

// MatchingAnchors returns the indexes of anchor texts accepted by match, in
// document order.
func MatchingAnchors(texts []string, match func(string) bool) []int {
	if match == nil {
		return nil
	}
	var out []int
	for i, t := range texts {
		if match(t) {
			out = append(out, i)
		}
	}
	return out
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(parts, `, '"', `) + ")"
}

// linkXPath selects anchors whose normalized text contains text.
func linkXPath(text string) string {
	return "//a[contains(normalize-space(.), " + xpathLiteral(text) + ")]"
}
