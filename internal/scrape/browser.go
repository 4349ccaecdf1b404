package scrape

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ratings-cli/internal/resilience"
)

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	Headless  bool
	UserAgent string
	ExecPath  string
	Timeout   time.Duration // per-fetch bound
}

// BrowserFetcher renders pages in one shared Chrome process. Every Fetch
// runs in its own tab, so concurrent fetches never share navigation state.
type BrowserFetcher struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	timeout       time.Duration
}

func allocatorOptions(opts BrowserOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

// NewBrowserFetcher launches Chrome. Callers must Close it.
func NewBrowserFetcher(opts BrowserOptions) (*BrowserFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, eris.Wrap(err, "browser: launch")
	}

	zap.L().Debug("browser: launched", zap.Bool("headless", opts.Headless))

	return &BrowserFetcher{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		timeout:       opts.Timeout,
	}, nil
}

func (b *BrowserFetcher) Name() string { return "browser" }

// Fetch opens a fresh tab, waits for the page to load, and returns the
// rendered document markup. The tab is closed on return.
func (b *BrowserFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	// Tie the tab's lifetime to the caller's context as well as the browser's.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	runCtx, cancelRun := context.WithTimeout(tabCtx, b.timeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, resilience.NewTransientError(eris.Errorf("browser: fetch %s timed out after %s", targetURL, b.timeout), 0)
		}
		return nil, eris.Wrapf(err, "browser: fetch %s", targetURL)
	}

	if blocked, blockType := DetectBlockHTML(html); blocked {
		return nil, &BlockedError{Type: blockType, URL: targetURL}
	}

	return &Page{
		URL:        targetURL,
		HTML:       html,
		StatusCode: 200,
		Source:     b.Name(),
	}, nil
}

// Close shuts down the browser process.
func (b *BrowserFetcher) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}
