package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"olx-scraper/config"
	"olx-scraper/utils"
)

// Page is the browsing capability the scraper depends on. Selectors are CSS
// unless they start with "/" or "(", in which case they are XPath.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Click clicks the first visible, enabled match. It reports false when
	// nothing clickable matched.
	Click(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, text string) error
	WaitVisible(ctx context.Context, selector string) error
	ScrollToBottom(ctx context.Context) error
	Count(ctx context.Context, selector string) (int, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Open starts a browser with the configured engine and returns its page.
func Open(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Page, error) {
	switch cfg.BrowserEngine {
	case "rod":
		return NewRodPage(cfg, logger)
	case "chromedp", "":
		return NewChromePage(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("scraper: unknown browser engine %q", cfg.BrowserEngine)
	}
}

// IsXPath reports whether a selector is an XPath expression.
func IsXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}

// findAllJS returns every element matching sel, CSS or XPath.
const findAllJS = `(sel, xpath) => {
	if (!xpath) return Array.from(document.querySelectorAll(sel));
	const out = [];
	const snap = document.evaluate(sel, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (let i = 0; i < snap.snapshotLength; i++) out.push(snap.snapshotItem(i));
	return out;
}`

const countJS = `(sel, xpath) => (` + findAllJS + `)(sel, xpath).length`

const clickJS = `(sel, xpath) => {
	const els = (` + findAllJS + `)(sel, xpath);
	for (const el of els) {
		if (el.disabled) continue;
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		el.scrollIntoView({block: 'center'});
		el.click();
		return true;
	}
	return false;
}`

const scrollJS = `() => { window.scrollTo(0, document.body.scrollHeight); return true; }`

// jsCall renders fn applied to args as a single expression.
func jsCall(fn string, args ...any) (string, error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, string(b))
	}
	return "(" + fn + ")(" + strings.Join(parts, ", ") + ")", nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
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
