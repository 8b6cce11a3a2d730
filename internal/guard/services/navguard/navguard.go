// Package navguard stops blocked top-level navigations before the request
// is sent, redirecting them to the safe location.
package navguard

import (
	"context"

	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/domain"
)

type Guard struct {
	classifier Classifier
	redirector Redirector
	safeURL    string
	logger     log.Logger
	recorder   Recorder
}

type GuardOptions struct {
	Classifier Classifier
	Redirector Redirector
	SafeURL    string
	Logger     log.Logger
	Recorder   Recorder
}

func NewGuard(opts GuardOptions) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Guard{
		classifier: opts.Classifier,
		redirector: opts.Redirector,
		safeURL:    opts.SafeURL,
		logger:     logger,
		recorder:   opts.Recorder,
	}
}

// HandleNavigation classifies a pending navigation and redirects it once if
// blocked. Frame navigations are ignored. A failed redirect is logged and
// not retried; the page guard still covers the page after it loads.
// It reports whether a redirect was issued successfully.
func (g *Guard) HandleNavigation(ctx context.Context, ev domain.NavigationEvent) bool {
	if !ev.TopLevel {
		return false
	}

	d := g.classifier.Decide(ev.URL).WithLayer(domain.LayerPreNavigation)
	if g.recorder != nil {
		g.recorder.Record(domain.LayerPreNavigation, d.Blocked)
	}
	if !d.Blocked {
		return false
	}

	fields := map[string]any{
		"url":    ev.URL,
		"reason": d.Reason,
		"layer":  d.Layer.String(),
	}
	if err := g.redirector.Redirect(ctx, ev, g.safeURL); err != nil {
		fields["error"] = err.Error()
		g.logger.Warn(fields, "redirect failed")
		return false
	}
	g.logger.Info(fields, "navigation blocked")
	return true
}
