package dom

import (
	"context"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BrowserOptions configure the driven Chrome instance.
type BrowserOptions struct {
	// ProfileDir is the persistent user data directory. Login state lives
	// here, so a session survives daemon restarts.
	ProfileDir   string
	Headless     bool
	WindowWidth  int
	WindowHeight int
}

// Browser owns a chromedp-driven Chrome process and hands out the Document
// view over its active tab.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewBrowser launches Chrome with the given profile. The process is started
// eagerly so misconfiguration surfaces here instead of on the first query.
func NewBrowser(opts BrowserOptions, logger *zap.Logger) (*Browser, error) {
	if err := os.MkdirAll(opts.ProfileDir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	if opts.WindowWidth <= 0 {
		opts.WindowWidth = 1200
	}
	if opts.WindowHeight <= 0 {
		opts.WindowHeight = 900
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(opts.ProfileDir),
		chromedp.Flag("profile-directory", "Default"),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	// Start the browser now.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger.Info("browser started",
		zap.String("profile", opts.ProfileDir),
		zap.Bool("headless", opts.Headless))

	return &Browser{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Document returns the live page view of the browser's tab.
func (b *Browser) Document() Document {
	return &chromeDocument{ctx: b.ctx}
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.logger.Info("closing browser")
	b.cancel()
	b.allocCancel()
}
