package forecast

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// BrowserConfig holds headless browser configuration
type BrowserConfig struct {
	Headless      bool
	Timeout       time.Duration // Per page load
	Settle        time.Duration // Wait after the first table appears
	ExecPath      string        // Chrome binary, empty for the default lookup
	ScreenshotDir string        // Failed pages are captured here when set
}

// Browser is one headless Chrome session. It must be closed on every exit path.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	config      BrowserConfig
	logger      zerolog.Logger
}

// NewBrowser starts a headless Chrome session
func NewBrowser(ctx context.Context, config BrowserConfig, logger zerolog.Logger) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Run with no actions launches the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	b := &Browser{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		config:      config,
		logger:      logger.With().Str("component", "browser").Logger(),
	}
	b.logger.Info().Bool("headless", config.Headless).Msg("browser started")

	return b, nil
}

// Page loads url and returns the rendered document once a table is present
func (b *Browser) Page(ctx context.Context, url string) (string, error) {
	pageCtx, cancel := context.WithTimeout(b.ctx, b.config.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	b.logger.Info().Str("url", url).Msg("loading page")

	var html string
	err := chromedp.Run(pageCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("table", chromedp.ByQuery),
		chromedp.Sleep(b.config.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		b.logger.Error().Err(err).Str("url", url).Msg("failed to load page")
		if b.config.ScreenshotDir != "" {
			if serr := b.Screenshot("error_" + screenshotName(url)); serr != nil {
				b.logger.Warn().Err(serr).Msg("failed to save screenshot")
			}
		}
		return "", fmt.Errorf("failed to load %s: %w", url, err)
	}

	return html, nil
}

// Screenshot saves a full-page PNG of the current tab
func (b *Browser) Screenshot(name string) error {
	if err := os.MkdirAll(b.config.ScreenshotDir, 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	// The page context may already be expired, so capture on a fresh deadline
	shotCtx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}

	path := filepath.Join(b.config.ScreenshotDir, name+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}

	b.logger.Info().Str("path", path).Msg("screenshot saved")
	return nil
}

// Close stops the browser
func (b *Browser) Close() error {
	b.cancel()
	b.allocCancel()
	b.logger.Info().Msg("browser stopped")
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func screenshotName(url string) string {
	return unsafeName.ReplaceAllString(url, "_")
}
