// Package pageguard watches a loaded page from the isolated domain. It
// checks the URL, bridges the tables to the native interceptor, scans the
// rendered title text and follows client-side navigations. Every detector
// funnels into one act-once corrective action.
package pageguard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/haukened/tubeguard/internal/guard/common/eventloop"
	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/domain"
)

// DefaultNavPoll is the client-navigation poll interval used when none is set.
const DefaultNavPoll = time.Second

type Guard struct {
	blocklist Blocklist
	doc       Document
	injector  Injector
	safeURL   string
	navPoll   time.Duration
	logger    log.Logger
	recorder  Recorder
	nodeID    func() string

	loop *eventloop.Loop

	// Owned by loop.
	hasActed bool
	lastURL  string
	observer Observation
	poller   *eventloop.Timer
}

type GuardOptions struct {
	Blocklist Blocklist
	Document  Document
	Injector  Injector
	SafeURL   string
	NavPoll   time.Duration
	Logger    log.Logger
	Recorder  Recorder
	// NodeID generates bridge node ids. Defaults to a random UUID with
	// domain.BridgeNodePrefix.
	NodeID func() string
}

func NewGuard(opts GuardOptions) *Guard {
	g := &Guard{
		blocklist: opts.Blocklist,
		doc:       opts.Document,
		injector:  opts.Injector,
		safeURL:   opts.SafeURL,
		navPoll:   opts.NavPoll,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		nodeID:    opts.NodeID,
		loop:      eventloop.New(),
	}
	if g.navPoll <= 0 {
		g.navPoll = DefaultNavPoll
	}
	if g.logger == nil {
		g.logger = log.GetLogger()
	}
	if g.nodeID == nil {
		g.nodeID = func() string { return domain.BridgeNodePrefix + uuid.NewString() }
	}
	return g
}

// Start runs the guard on its own event loop until ctx ends. It returns
// immediately.
func (g *Guard) Start(ctx context.Context) {
	g.loop.Post(func() { g.run(ctx) })
	g.loop.Start(ctx)
}

// Done is closed once the guard's loop has exited.
func (g *Guard) Done() <-chan struct{} { return g.loop.Done() }

func (g *Guard) run(ctx context.Context) {
	loc, err := g.doc.Location(ctx)
	if err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "failed to read location")
	}
	g.lastURL = loc
	if g.checkURL(ctx, loc) {
		return
	}

	g.bridge(ctx)

	obs, err := g.doc.Observe(ctx, Hooks{
		Mutations:      func() { g.loop.Post(func() { g.scan(ctx) }) },
		NavigateFinish: func() { g.loop.Post(func() { g.checkNavigation(ctx) }) },
	})
	if err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "failed to arm dom scanner")
	} else {
		g.observer = obs
		// The page may already be rendered before the first mutation.
		g.scan(ctx)
	}
	if g.hasActed {
		return
	}

	g.poller = g.loop.Every(g.navPoll, func() { g.checkNavigation(ctx) })
}

// bridge writes the tables into a hidden node and asks the injector to load
// the native interceptor against it. Failures leave the other layers armed.
func (g *Guard) bridge(ctx context.Context) {
	payload, err := domain.NewBridgePayload(g.blocklist.Tables()).Encode()
	if err != nil {
		g.logger.Error(map[string]any{"error": err.Error()}, "failed to encode bridge payload")
		return
	}
	id := g.nodeID()
	if err := g.doc.AppendHiddenNode(ctx, id, domain.BridgeAttribute, payload); err != nil {
		g.logger.Warn(map[string]any{"node": id, "error": err.Error()}, "failed to attach bridge node")
		return
	}
	if g.injector == nil {
		return
	}
	if err := g.injector.Inject(ctx, id); err != nil {
		g.logger.Warn(map[string]any{"node": id, "error": err.Error()}, "failed to inject native interceptor")
	}
}

// checkURL classifies loc and acts on a block.
func (g *Guard) checkURL(ctx context.Context, loc string) bool {
	if loc == "" {
		return false
	}
	d := g.blocklist.Decide(loc)
	if !d.Blocked {
		return false
	}
	g.act(ctx, domain.LayerURL, d.Reason)
	return true
}

// scan matches the document title and the primary heading against the video
// keywords.
func (g *Guard) scan(ctx context.Context) {
	if g.hasActed || g.observer == nil {
		return
	}
	tables := g.blocklist.Tables()
	for _, read := range []func(context.Context) (string, error){g.doc.Title, g.doc.HeadingText} {
		text, err := read(ctx)
		if err != nil {
			g.logger.Debug(map[string]any{"error": err.Error()}, "dom read failed")
			continue
		}
		if kw, ok := tables.MatchVideoTitle(text); ok {
			g.observer.Disconnect()
			g.observer = nil
			g.act(ctx, domain.LayerDOM, "video title: "+text+" (keyword "+kw+")")
			return
		}
	}
}

// checkNavigation re-runs the URL check when the location has changed since
// it was last seen.
func (g *Guard) checkNavigation(ctx context.Context) {
	if g.hasActed {
		return
	}
	loc, err := g.doc.Location(ctx)
	if err != nil || loc == "" || loc == g.lastURL {
		return
	}
	g.logger.Debug(map[string]any{"from": g.lastURL, "to": loc}, "client navigation")
	g.lastURL = loc
	g.checkURL(ctx, loc)
}

// act performs the corrective action at most once per page load.
func (g *Guard) act(ctx context.Context, layer domain.Layer, reason string) {
	if g.hasActed {
		return
	}
	g.hasActed = true
	if g.poller != nil {
		g.poller.Stop()
	}
	if g.observer != nil {
		g.observer.Disconnect()
		g.observer = nil
	}
	if g.recorder != nil {
		g.recorder.Record(layer, true)
	}

	fields := map[string]any{"layer": layer.String(), "reason": reason, "url": g.lastURL}
	g.logger.Info(fields, "page blocked")
	if err := g.doc.Stop(ctx); err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "failed to stop page load")
	}
	if err := g.doc.Replace(ctx, g.safeURL); err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "failed to replace location")
	}
}
