// Package chrome drives a managed Chrome tab over the DevTools protocol and
// adapts it to the guard ports: request interception for the pre-navigation
// guard, an isolated world for the page guard, and the main world for the
// native interceptor.
package chrome

import (
	"context"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"

	"github.com/haukened/tubeguard/internal/guard/common/log"
)

// SessionOptions configures the browser process.
type SessionOptions struct {
	ProfileDir string // Chrome user data directory; empty uses a temporary profile
	Headless   bool
	Logger     log.Logger
}

// NewSession starts a Chrome process and returns a tab context. The caller
// must call cancel when done, which also terminates the browser.
func NewSession(parent context.Context, opts SessionOptions) (context.Context, context.CancelFunc) {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
	)
	if opts.ProfileDir != "" {
		if err := os.MkdirAll(opts.ProfileDir, 0o755); err != nil {
			logger.Error(map[string]any{"dir": opts.ProfileDir, "error": err.Error()}, "failed to create profile dir")
		}
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Headless)
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug(map[string]any{"detail": fmt.Sprintf(format, args...)}, "chromedp error")
		}),
	)

	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}
