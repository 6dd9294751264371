package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"airbnb-listings/utils"
)

// RenderOptions controls how a page is rendered before its markup is read.
type RenderOptions struct {
	// Wait is how long scripts get to run after navigation.
	Wait time.Duration
	// ExpandSelector matches "read more" buttons to click before reading
	// the markup. Buttons before index ExpandFrom are left alone.
	ExpandSelector string
	ExpandFrom     int
}

// Session is one browser instance owned by a single task.
type Session interface {
	Render(url string, opts RenderOptions) (string, error)
	Close()
}

// Browser hands out independent sessions.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// ChromeBrowser launches headless Chrome through chromedp. Every session is
// a separate browser process so workers never share tabs or cookies.
type ChromeBrowser struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	logger      *utils.Logger
	defaults    RenderOptions
}

// NewChromeBrowser prepares the allocator. It fails with ErrNoBrowser when
// no Chrome binary is found.
func NewChromeBrowser(chromeBin string, defaults RenderOptions, logger *utils.Logger) (*ChromeBrowser, error) {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	if chromeBin == "" {
		return nil, ErrNoBrowser
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromeBin),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromeBrowser{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		logger:      logger,
		defaults:    defaults,
	}, nil
}

// Probe starts and stops one browser to surface a broken install before
// any work is scheduled.
func (b *ChromeBrowser) Probe(ctx context.Context) error {
	s, err := b.NewSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := chromedp.Run(s.(*chromeSession).ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNoBrowser, err)
	}
	return nil
}

// NewSession implements Browser. The session is torn down when ctx is done.
func (b *ChromeBrowser) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Suppress chromedp log noise
	tabCtx, cancel := chromedp.NewContext(b.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	stop := context.AfterFunc(ctx, cancel)
	return &chromeSession{ctx: tabCtx, cancel: cancel, stop: stop, parent: ctx}, nil
}

// Fetch renders url with the default options and parses the result. It
// opens and closes a session of its own.
func (b *ChromeBrowser) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	s, err := b.NewSession(ctx)
	if err != nil {
		return nil, newFetchError(url, err)
	}
	defer s.Close()

	html, err := s.Render(url, b.defaults)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Close shuts down the allocator and any browser still running.
func (b *ChromeBrowser) Close() {
	b.cancelAlloc()
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool
	parent context.Context
}

func (s *chromeSession) Render(url string, opts RenderOptions) (string, error) {
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.Sleep(opts.Wait),
	}
	if opts.ExpandSelector != "" {
		var clicked int
		actions = append(actions,
			chromedp.Evaluate(expandScript(opts.ExpandSelector, opts.ExpandFrom), &clicked),
			chromedp.Sleep(500*time.Millisecond),
		)
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(s.ctx, actions...); err != nil {
		if s.parent.Err() != nil {
			err = fmt.Errorf("%w: %v", s.parent.Err(), err)
		}
		return "", newFetchError(url, err)
	}
	return html, nil
}

func (s *chromeSession) Close() {
	s.stop()
	s.cancel()
}

// expandScript clicks every matching button from index `from` on and stops
// at the first click that throws.
func expandScript(selector string, from int) string {
	return fmt.Sprintf(`
		(function() {
			var buttons = document.querySelectorAll(%q);
			var clicked = 0;
			for (var i = %d; i < buttons.length; i++) {
				try { buttons[i].click(); clicked++; } catch (e) { break; }
			}
			return clicked;
		})()
	`, selector, from)
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
