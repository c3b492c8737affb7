package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const renderTimeout = 45 * time.Second

// Browser renders pages in headless Chrome so that script-built content
// is visible to lookup_url.
type Browser struct {
	profileDir string
	logger     *slog.Logger
}

type BrowserConfig struct {
	ProfileDir string // Chrome user data directory; persists cookies
	Logger     *slog.Logger
}

func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.ProfileDir == "" {
		home, _ := os.UserHomeDir()
		cfg.ProfileDir = filepath.Join(home, ".vargasjr", "chrome-profile")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Browser{profileDir: cfg.ProfileDir, logger: cfg.Logger}
}

// newContext starts a headless Chrome using the profile directory. The
// returned cancel stops both the tab and the browser process.
func (b *Browser) newContext(parent context.Context) (context.Context, context.CancelFunc) {
	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		b.logger.Error("failed to create profile dir", "dir", b.profileDir, "err", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.profileDir),
		chromedp.Headless,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}

// Fetch implements action.Fetcher.
func (b *Browser) Fetch(ctx context.Context, url string) (string, error) {
	taskCtx, cancel := b.newContext(ctx)
	defer cancel()
	taskCtx, timeout := context.WithTimeout(taskCtx, renderTimeout)
	defer timeout()

	var outer string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	b.logger.Debug("page rendered", "url", url, "html_len", len(outer))
	return ExtractText(strings.NewReader(outer))
}
