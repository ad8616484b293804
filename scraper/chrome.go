package scraper

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"olx-scraper/config"
	"olx-scraper/utils"
)

// ChromePage drives a single chromedp tab.
type ChromePage struct {
	tab    context.Context
	cancel []context.CancelFunc
}

// NewChromePage launches Chrome and opens one tab. The browser lives until
// Close, independent of ctx.
func NewChromePage(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*ChromePage, error) {
	chromeBin := findChromeBinary(cfg.ChromeBin)
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)

	// Suppress chromedp log noise
	tab, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	p := &ChromePage{tab: tab, cancel: []context.CancelFunc{cancelTab, cancelAlloc}}

	// First Run starts the browser.
	if err := chromedp.Run(tab); err != nil {
		p.Close()
		return nil, fmt.Errorf("scraper: start chrome: %w", err)
	}
	return p, nil
}

// bind scopes a call on the tab to ctx's deadline and cancellation.
func (p *ChromePage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.tab)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		prev := cancel
		cancel = func() { cancelDL(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() { stop(); cancel() }
}

func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("chromedp navigate: %w", err)
	}
	return nil
}

func (p *ChromePage) Click(ctx context.Context, selector string) (bool, error) {
	expr, err := jsCall(clickJS, selector, IsXPath(selector))
	if err != nil {
		return false, err
	}
	var clicked bool
	if err := p.run(ctx, chromedp.Evaluate(expr, &clicked)); err != nil {
		return false, fmt.Errorf("chromedp click %q: %w", selector, err)
	}
	return clicked, nil
}

func (p *ChromePage) Fill(ctx context.Context, selector, text string) error {
	err := p.run(ctx,
		chromedp.WaitVisible(selector, queryOption(selector)),
		chromedp.Clear(selector, queryOption(selector)),
		chromedp.SendKeys(selector, text, queryOption(selector)),
	)
	if err != nil {
		return fmt.Errorf("chromedp fill %q: %w", selector, err)
	}
	return nil
}

func (p *ChromePage) WaitVisible(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.WaitVisible(selector, queryOption(selector))); err != nil {
		return fmt.Errorf("chromedp wait %q: %w", selector, err)
	}
	return nil
}

func (p *ChromePage) ScrollToBottom(ctx context.Context) error {
	expr, _ := jsCall(scrollJS)
	var ok bool
	if err := p.run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return fmt.Errorf("chromedp scroll: %w", err)
	}
	return nil
}

func (p *ChromePage) Count(ctx context.Context, selector string) (int, error) {
	expr, err := jsCall(countJS, selector, IsXPath(selector))
	if err != nil {
		return 0, err
	}
	var n int
	if err := p.run(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, fmt.Errorf("chromedp count %q: %w", selector, err)
	}
	return n, nil
}

func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromedp html: %w", err)
	}
	return html, nil
}

func (p *ChromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("chromedp screenshot: %w", err)
	}
	return buf, nil
}

func (p *ChromePage) Close() error {
	for _, cancel := range p.cancel {
		cancel()
	}
	return nil
}

func queryOption(selector string) chromedp.QueryOption {
	if IsXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
