package chrome

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/haukened/tubeguard/internal/guard/services/pageguard"
)

const (
	// worldName names the isolated world the page guard runs in.
	worldName = "tubeguard"
	// bindingName is the function the isolated world calls to signal Go.
	bindingName = "tubeguardSignal"

	signalMutations = "mutations"
	signalNavigate  = "navigate"
)

const (
	jsTitle   = `function() { return document.title; }`
	jsHeading = `function(sel) {
	const h = document.querySelector(sel);
	return h ? h.textContent.trim() : "";
}`
	jsAppendHidden = `function(id, attr, value) {
	const n = document.createElement("div");
	n.id = id;
	n.hidden = true;
	n.setAttribute(attr, value);
	(document.body || document.documentElement).appendChild(n);
}`
	jsObserve = `function(binding) {
	const send = globalThis[binding];
	const obs = new MutationObserver(() => send("mutations"));
	obs.observe(document, {subtree: true, childList: true, characterData: true});
	const onNavigate = () => send("navigate");
	document.addEventListener("yt-navigate-finish", onNavigate);
	globalThis.__tubeguardDisconnect = () => {
		obs.disconnect();
		document.removeEventListener("yt-navigate-finish", onNavigate);
	};
}`
	jsDisconnect = `function() {
	if (globalThis.__tubeguardDisconnect) globalThis.__tubeguardDisconnect();
}`
)

// headingSelector matches the primary video heading in both page layouts.
const headingSelector = "h1.ytd-watch-metadata, h1.title"

// isolatedDocument implements pageguard.Document inside an isolated world
// of the main frame. It sees the DOM but none of the page's globals.
type isolatedDocument struct {
	frameID cdp.FrameID
	scope   scope

	mu    sync.Mutex
	hooks *pageguard.Hooks
}

// newIsolatedDocument creates a fresh isolated world in frameID.
func newIsolatedDocument(ctx context.Context, frameID cdp.FrameID) (*isolatedDocument, error) {
	d := &isolatedDocument{frameID: frameID}
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		id, err := page.CreateIsolatedWorld(frameID).WithWorldName(worldName).Do(ctx)
		if err != nil {
			return err
		}
		d.scope = scope{contextID: id}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *isolatedDocument) Location(ctx context.Context) (string, error) {
	s, _, err := d.scope.callString(ctx, jsLocation)
	return s, err
}

func (d *isolatedDocument) Title(ctx context.Context) (string, error) {
	s, _, err := d.scope.callString(ctx, jsTitle)
	return s, err
}

func (d *isolatedDocument) HeadingText(ctx context.Context) (string, error) {
	s, _, err := d.scope.callString(ctx, jsHeading, headingSelector)
	return s, err
}

func (d *isolatedDocument) AppendHiddenNode(ctx context.Context, id, attr, value string) error {
	_, err := d.scope.call(ctx, jsAppendHidden, id, attr, value)
	return err
}

func (d *isolatedDocument) Observe(ctx context.Context, hooks pageguard.Hooks) (pageguard.Observation, error) {
	d.mu.Lock()
	d.hooks = &hooks
	d.mu.Unlock()
	if _, err := d.scope.call(ctx, jsObserve, bindingName); err != nil {
		d.mu.Lock()
		d.hooks = nil
		d.mu.Unlock()
		return nil, err
	}
	return &isolatedObservation{doc: d, ctx: ctx}, nil
}

func (d *isolatedDocument) Stop(ctx context.Context) error {
	return chromedp.Run(ctx, page.StopLoading())
}

func (d *isolatedDocument) Replace(ctx context.Context, url string) error {
	_, err := d.scope.call(ctx, jsReplace, url)
	return err
}

// signal routes a binding call or a same-document navigation to the hooks.
// It runs on the event listener goroutine and must not block.
func (d *isolatedDocument) signal(kind string) {
	d.mu.Lock()
	hooks := d.hooks
	d.mu.Unlock()
	if hooks == nil {
		return
	}
	switch kind {
	case signalMutations:
		if hooks.Mutations != nil {
			hooks.Mutations()
		}
	case signalNavigate:
		if hooks.NavigateFinish != nil {
			hooks.NavigateFinish()
		}
	}
}

type isolatedObservation struct {
	doc  *isolatedDocument
	ctx  context.Context
	once sync.Once
}

// Disconnect stops delivery immediately; the page-side observer is torn down
// in the background.
func (o *isolatedObservation) Disconnect() {
	o.once.Do(func() {
		o.doc.mu.Lock()
		o.doc.hooks = nil
		o.doc.mu.Unlock()
		go func() { _, _ = o.doc.scope.call(o.ctx, jsDisconnect) }()
	})
}

var _ pageguard.Document = (*isolatedDocument)(nil)
