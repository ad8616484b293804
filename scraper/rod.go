package scraper

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"olx-scraper/config"
	"olx-scraper/utils"
)

// RodPage drives a single go-rod page.
type RodPage struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	logger   *utils.Logger
}

// NewRodPage launches a browser through the rod launcher. With cfg.Stealth
// the go-rod/stealth evasions are injected before any document loads.
func NewRodPage(cfg *config.Config, logger *utils.Logger) (*RodPage, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true)

	if bin := findChromeBinary(cfg.ChromeBin); bin != "" {
		l = l.Bin(bin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("scraper: launch browser: %w", err)
	}
	logger.Info("[browser] rod browser launched at %s", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("scraper: connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("scraper: open page: %w", err)
	}

	if cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			logger.Warn("[browser] stealth injection failed, proceeding without stealth: %v", evalErr)
		}
	}
	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			logger.Warn("[browser] could not set user agent: %v", err)
		}
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1366, Height: 900}); err != nil {
		logger.Warn("[browser] could not set viewport: %v", err)
	}

	return &RodPage{launcher: l, browser: browser, page: page, logger: logger}, nil
}

func (p *RodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("rod navigate: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("rod wait load: %w", err)
	}
	return nil
}

func (p *RodPage) Click(ctx context.Context, selector string) (bool, error) {
	res, err := p.page.Context(ctx).Eval(clickJS, selector, IsXPath(selector))
	if err != nil {
		return false, fmt.Errorf("rod click %q: %w", selector, err)
	}
	return res.Value.Bool(), nil
}

func (p *RodPage) Fill(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("rod fill %q: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("rod fill %q: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("rod fill %q: %w", selector, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("rod fill %q: %w", selector, err)
	}
	return nil
}

func (p *RodPage) WaitVisible(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("rod wait %q: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("rod wait %q: %w", selector, err)
	}
	return nil
}

func (p *RodPage) ScrollToBottom(ctx context.Context) error {
	if _, err := p.page.Context(ctx).Eval(scrollJS); err != nil {
		return fmt.Errorf("rod scroll: %w", err)
	}
	return nil
}

func (p *RodPage) Count(ctx context.Context, selector string) (int, error) {
	res, err := p.page.Context(ctx).Eval(countJS, selector, IsXPath(selector))
	if err != nil {
		return 0, fmt.Errorf("rod count %q: %w", selector, err)
	}
	return res.Value.Int(), nil
}

func (p *RodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("rod html: %w", err)
	}
	return html, nil
}

func (p *RodPage) Screenshot(ctx context.Context) ([]byte, error) {
	buf, err := p.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return nil, fmt.Errorf("rod screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the page and the browser and removes the launcher's profile dir.
func (p *RodPage) Close() error {
	_ = p.page.Close()
	err := p.browser.Close()
	p.launcher.Cleanup()
	return err
}

// element waits for the first match; rod retries until ctx is done.
func (p *RodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	pg := p.page.Context(ctx)
	if IsXPath(selector) {
		return pg.ElementX(selector)
	}
	return pg.Element(selector)
}
