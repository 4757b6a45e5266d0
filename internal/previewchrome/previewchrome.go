// Package previewchrome drives a headless Chrome viewport for the live
// preview. Each reload navigates the browser to the current preview URL
// so the rendered app always reflects the latest server artifacts.
package previewchrome

import (
	"context"
	"errors"
	"sync"

	"github.com/chromedp/chromedp"
	"pkt.systems/pslog"
)

// Options configures the browser viewport.
type Options struct {
	Headless bool
	Logger   pslog.Logger
}

// Viewport owns a chromedp browser context and implements the preview
// target contract: Reload navigates to the given URL.
type Viewport struct {
	mu          sync.Mutex
	logger      pslog.Logger
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	closed      bool
}

// New launches a browser and returns a viewport bound to a single tab.
func New(ctx context.Context, opts Options) (*Viewport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, err
	}
	return &Viewport{
		logger:      logger,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}, nil
}

// Reload navigates the tab to url. The caller's ctx bounds the
// navigation; the tab itself outlives the call.
func (v *Viewport) Reload(ctx context.Context, url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return errors.New("preview viewport closed")
	}
	v.logger.Trace("preview reload", "url", url)
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(v.tabCtx, chromedp.Navigate(url))
	}()
	select {
	case err := <-done:
		if err != nil {
			v.logger.Warn("preview reload failed", "url", url, "error", err)
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears down the tab and the browser process.
func (v *Viewport) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.tabCancel()
	v.allocCancel()
}

// LogTarget is a preview target that only records reloads. It serves
// headless deployments and tests where no browser is wanted.
type LogTarget struct {
	Logger pslog.Logger
}

// Reload logs the reload request and returns nil.
func (l LogTarget) Reload(_ context.Context, url string) error {
	if l.Logger != nil {
		l.Logger.Info("preview reload", "url", url)
	}
	return nil
}
