package chrome

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/services/interceptor"
	"github.com/haukened/tubeguard/internal/guard/services/pageguard"
)

const (
	jsTakeBridge = `function(id, attr) {
	const n = document.getElementById(id);
	if (!n) return null;
	const v = n.getAttribute(attr);
	n.remove();
	return v;
}`
	jsGlobal = `function(name) {
	const v = this[name];
	return v === undefined ? null : v;
}`
)

// nativePage implements interceptor.Page against the main world's window.
type nativePage struct {
	scope scope
}

// newNativePage resolves the main world's global object of the top frame.
func newNativePage(ctx context.Context) (*nativePage, error) {
	p := &nativePage{}
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exc, err := runtime.Evaluate("globalThis").Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		p.scope = scope{objectID: obj.ObjectID}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *nativePage) TakeBridge(ctx context.Context, nodeID string) (string, bool, error) {
	return p.scope.callString(ctx, jsTakeBridge, nodeID, domain.BridgeAttribute)
}

func (p *nativePage) Global(ctx context.Context, name string) (json.RawMessage, error) {
	v, err := p.scope.call(ctx, jsGlobal, name)
	if err != nil || isNull(v) {
		return nil, err
	}
	return json.RawMessage(v), nil
}

func (p *nativePage) Stop(ctx context.Context) error {
	return chromedp.Run(ctx, page.StopLoading())
}

func (p *nativePage) Replace(ctx context.Context, url string) error {
	_, err := p.scope.call(ctx, jsReplace, url)
	return err
}

// nativeInjector implements pageguard.Injector by launching an interceptor
// bound to the main world.
type nativeInjector struct {
	opts   interceptor.Options
	logger log.Logger
}

func (i *nativeInjector) Inject(ctx context.Context, nodeID string) error {
	p, err := newNativePage(ctx)
	if err != nil {
		return err
	}
	opts := i.opts
	opts.Page = p
	opts.NodeID = nodeID
	done := interceptor.Launch(ctx, opts)
	go func() {
		if err := <-done; err != nil {
			i.logger.Debug(map[string]any{"node": nodeID, "error": err.Error()}, "native interceptor exited")
		}
	}()
	return nil
}

var (
	_ interceptor.Page   = (*nativePage)(nil)
	_ pageguard.Injector = (*nativeInjector)(nil)
)
