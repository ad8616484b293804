package olx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"olx-scraper/config"
	"olx-scraper/scraper"
	"olx-scraper/utils"
)

const (
	locationSettle = 500 * time.Millisecond
	waitTimeout    = 15 * time.Second
)

// OpenFunc starts a browsing session.
type OpenFunc func(ctx context.Context, cfg *config.Config, logger *utils.Logger) (scraper.Page, error)

// Result is what one search page acquisition produced.
type Result struct {
	URL        string
	HTML       string
	Load       scraper.LoadSession
	Stop       scraper.StopReason
	Screenshot string
}

// Scraper drives an OLX used-car search: navigate, dismiss pop-ups, pick the
// location filter, reveal every listing and capture the page.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
	open   OpenFunc
	retry  *utils.RetryConfig
	loader *scraper.Loader
}

// New creates a Scraper that opens pages with scraper.Open.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return NewWithOpener(cfg, logger, scraper.Open)
}

// NewWithOpener creates a Scraper with a custom session provider.
func NewWithOpener(cfg *config.Config, logger *utils.Logger, open OpenFunc) *Scraper {
	return &Scraper{
		cfg:    cfg,
		logger: logger,
		open:   open,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.NavigateRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		loader: scraper.NewLoader(cfg.Load, ItemSelector, LoadMoreSelector, cfg.PopupSelectors, logger),
	}
}

// Scrape loads the search results for keyword and returns the final markup.
// Navigation and location failures are logged and the run continues with
// whatever the page rendered.
func (s *Scraper) Scrape(ctx context.Context, keyword string) (*Result, error) {
	url := s.cfg.SearchURL(keyword)
	s.logger.Info("[olx] Start scrape for keyword=%q url=%q location=%q", keyword, url, s.cfg.SearchLocation)

	page, err := s.open(ctx, s.cfg, s.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Warn("[olx] Closing browser: %v", err)
		}
		s.logger.Info("[olx] Browser closed")
	}()

	err = s.retry.Do(ctx, "navigate", func(ctx context.Context) error {
		navCtx, cancel := context.WithTimeout(ctx, s.cfg.GotoTimeout)
		defer cancel()
		return page.Navigate(navCtx, url)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("[olx] %v. Continuing with partially loaded content...", err)
	} else {
		s.logger.Info("[olx] Page loaded")
	}

	if s.cfg.SearchLocation != "" {
		if err := s.setLocation(ctx, page); err != nil {
			s.logger.Warn("[olx] Could not set location %q: %v", s.cfg.SearchLocation, err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	err = page.WaitVisible(waitCtx, FirstItemLinkSelector)
	cancel()
	if err != nil {
		s.logger.Warn("[olx] First listing never appeared: %v", err)
	} else {
		s.logger.Info("[olx] First item link detected, start loading all listings")
	}

	load, err := s.loader.Run(ctx, page)
	if err != nil {
		return nil, err
	}

	res := &Result{
		URL:  url,
		HTML: load.HTML,
		Load: load.Session,
		Stop: load.Stop,
	}

	if path := s.cfg.Paths(keyword).Screenshot; path != "" {
		if err := s.saveScreenshot(ctx, page, path); err != nil {
			s.logger.Warn("[olx] Screenshot failed: %v", err)
		} else {
			res.Screenshot = path
			s.logger.Info("[olx] Screenshot saved to %s", path)
		}
	}

	s.logger.Info("[olx] Scrape done: %d items rendered in %d attempts (%s)",
		load.Session.ItemsRendered, load.Session.Attempts, load.Stop)
	return res, nil
}

func (s *Scraper) setLocation(ctx context.Context, page scraper.Page) error {
	s.logger.Info("[olx] Setting location to %q", s.cfg.SearchLocation)

	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	if err := page.Fill(ctx, LocationInputSelector, s.cfg.SearchLocation); err != nil {
		return err
	}
	if err := utils.Sleep(ctx, locationSettle); err != nil {
		return err
	}
	clicked, err := page.Click(ctx, locationOption(s.cfg.SearchLocation))
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("no suggestion matching %q", s.cfg.SearchLocation)
	}
	return nil
}

func (s *Scraper) saveScreenshot(ctx context.Context, page scraper.Page, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Load.CaptureLimit())
	defer cancel()

	buf, err := page.Screenshot(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

// locationOption is the XPath of the suggestion whose text contains name.
func locationOption(name string) string {
	return LocationItemSelector + "[contains(normalize-space(.), " + xpathLiteral(name) + ")]"
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
