package browser

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campus-cli/internal/fault"
)

const anchorTextsJS = `Array.from(document.querySelectorAll('a')).map(a => a.innerText || a.textContent || '')`

// ChromeLauncher starts a new headless Chrome process per session.
type ChromeLauncher struct {
	opts Options
}

// NewChromeLauncher creates a launcher with the given options.
func NewChromeLauncher(opts Options) *ChromeLauncher {
	return &ChromeLauncher{opts: opts.withDefaults()}
}

// Launch starts Chrome and returns a session bound to it.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.DisableGPU,
		chromedp.WindowSize(l.opts.WindowWidth, l.opts.WindowHeight),
	)
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	// The browser outlives individual calls; it is bound to Close, not ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		opts:          l.opts,
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}

	// Run with no actions starts the browser process.
	if err := s.run(ctx, l.opts.NavigateTimeout); err != nil {
		_ = s.Close()
		return nil, fault.Wrap(err, fault.Navigation, "launch browser")
	}
	zap.L().Debug("browser: session launched", zap.Bool("headless", l.opts.Headless))
	return s, nil
}

type chromeSession struct {
	opts          Options
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closed        bool
}

// run executes actions on the browser with a timeout, also stopping when the
// caller's ctx is cancelled.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Search(ctx context.Context, name string) error {
	target := LookupURL(s.opts.BaseURL, name)
	var html string
	err := s.run(ctx, s.opts.NavigateTimeout+s.opts.SearchSettle,
		chromedp.Navigate(target),
		chromedp.Sleep(s.opts.SearchSettle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return fault.Wrap(err, fault.Navigation, "load search page")
	}
	if strings.Contains(html, s.opts.NotFoundMarker) {
		return fault.Newf(fault.NotFound, "no matching institution for %q", name)
	}
	return nil
}

func (s *chromeSession) OpenFirstResult(ctx context.Context) (string, error) {
	var text string
	err := s.run(ctx, s.opts.ResultTimeout,
		chromedp.WaitReady(s.opts.ResultSelector, chromedp.ByQuery),
		chromedp.TextContent(s.opts.ResultSelector, &text, chromedp.ByQuery),
		chromedp.Click(s.opts.ResultSelector, chromedp.ByQuery),
	)
	if err != nil {
		return "", fault.Wrap(err, fault.Navigation, "open first result")
	}
	return strings.TrimSpace(text), nil
}

func (s *chromeSession) ClickTab(ctx context.Context, tab Tab) error {
	log := zap.L().With(zap.String("tab", tab.LinkText))

	if tab.LinkText != "" {
		xp := linkXPath(tab.LinkText)
		err := s.run(ctx, s.opts.TabTimeout,
			chromedp.WaitVisible(xp, chromedp.BySearch),
			chromedp.Click(xp, chromedp.BySearch),
		)
		if err == nil {
			log.Debug("browser: clicked tab by link text")
			return nil
		}
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "browser: click tab")
		}
		log.Debug("browser: tab not found by link text, scanning anchors", zap.Error(err))
	}

	var texts []string
	if err := s.run(ctx, s.opts.TabTimeout, chromedp.Evaluate(anchorTextsJS, &texts)); err != nil {
		return fault.Wrap(err, fault.TabNotFound, "list anchors")
	}

	for _, idx := range MatchingAnchors(texts, tab.Match) {
		if err := s.clickAnchor(ctx, idx); err != nil {
			log.Debug("browser: fallback candidate failed", zap.Int("index", idx), zap.Error(err))
			continue
		}
		log.Info("browser: fallback clicked tab", zap.String("text", strings.TrimSpace(texts[idx])))
		return nil
	}

	return fault.Newf(fault.TabNotFound, "tab %q not found", tab.LinkText)
}

// clickAnchor scrolls the idx-th anchor into view, pauses, then clicks it.
func (s *chromeSession) clickAnchor(ctx context.Context, idx int) error {
	ref := "document.querySelectorAll('a')[" + strconv.Itoa(idx) + "]"
	var scrolled, clicked bool
	err := s.run(ctx, s.opts.TabTimeout+s.opts.ScrollPause,
		chromedp.Evaluate("(() => { const a = "+ref+"; if (!a) return false; a.scrollIntoView(true); return true; })()", &scrolled),
		chromedp.Sleep(s.opts.ScrollPause),
		chromedp.Evaluate("(() => { const a = "+ref+"; if (!a) return false; a.click(); return true; })()", &clicked),
	)
	if err != nil {
		return eris.Wrap(err, "browser: click anchor")
	}
	if !scrolled || !clicked {
		return eris.Errorf("browser: anchor %d disappeared", idx)
	}
	return nil
}

func (s *chromeSession) PageHTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, s.opts.NavigateTimeout+s.opts.RenderSettle,
		chromedp.Sleep(s.opts.RenderSettle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fault.Wrap(err, fault.Navigation, "read page")
	}
	return html, nil
}

func (s *chromeSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := chromedp.Cancel(s.ctx)
	s.browserCancel()
	s.allocCancel()
	if err != nil && !eris.Is(err, context.Canceled) {
		return eris.Wrap(err, "browser: close")
	}
	return nil
}
