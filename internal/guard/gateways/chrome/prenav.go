package chrome

import (
	"context"
	"net/http"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/services/navguard"
)

// documentPatterns pauses every document request before it is sent.
var documentPatterns = []*fetch.RequestPattern{{
	URLPattern:   "*",
	ResourceType: network.ResourceTypeDocument,
	RequestStage: fetch.RequestStageRequest,
}}

// fetchRedirector answers a paused request with a redirect instead of
// letting it reach the network.
type fetchRedirector struct{}

func (fetchRedirector) Redirect(ctx context.Context, ev domain.NavigationEvent, target string) error {
	return chromedp.Run(ctx, fetch.FulfillRequest(fetch.RequestID(ev.ID), http.StatusFound).
		WithResponseHeaders([]*fetch.HeaderEntry{{Name: "Location", Value: target}}))
}

// navigationEvent converts a paused request. Requests issued by the main
// frame are top level; the main frame id equals the target id.
func navigationEvent(ev *fetch.EventRequestPaused, mainFrame string) domain.NavigationEvent {
	out := domain.NavigationEvent{
		ID:       string(ev.RequestID),
		TopLevel: string(ev.FrameID) == mainFrame,
	}
	if ev.Request != nil {
		out.URL = ev.Request.URL
	}
	return out
}

// handlePaused runs the pre-navigation guard and releases the request when
// it was not redirected. It blocks on protocol calls, so callers run it off
// the event listener goroutine.
func handlePaused(ctx context.Context, guard *navguard.Guard, ev *fetch.EventRequestPaused, mainFrame string) error {
	if guard.HandleNavigation(ctx, navigationEvent(ev, mainFrame)) {
		return nil
	}
	return chromedp.Run(ctx, fetch.ContinueRequest(ev.RequestID))
}

var _ navguard.Redirector = fetchRedirector{}
