// Package snapshot adapts a saved HTML page to the page guard and native
// interceptor ports, so the detection pipeline can run without a browser.
//
// The document is held by goquery. Inline scripts run in a goja runtime so
// that globals such as ytInitialData exist the way they would in the page.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"

	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/services/interceptor"
	"github.com/haukened/tubeguard/internal/guard/services/pageguard"
)

// HeadingSelector matches the primary video heading in both page layouts.
const HeadingSelector = "h1.ytd-watch-metadata, h1.title"

// DefaultScriptTimeout bounds each inline script.
const DefaultScriptTimeout = 2 * time.Second

var errNoBody = errors.New("document has no body")

type Options struct {
	// Location overrides the page URL. When empty the canonical link or
	// og:url meta tag is used.
	Location      string
	ScriptTimeout time.Duration
	Logger        log.Logger
}

// Page is an in-memory page. It is safe for concurrent use.
type Page struct {
	mu       sync.Mutex
	doc      *goquery.Document
	vm       *goja.Runtime
	location string
	hooks    []*pageguard.Hooks
	stops    int
	replaced chan string
	logger   log.Logger
}

// Open parses r and evaluates its inline scripts.
func Open(r io.Reader, opts Options) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	if opts.ScriptTimeout <= 0 {
		opts.ScriptTimeout = DefaultScriptTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}

	p := &Page{
		doc:      doc,
		vm:       goja.New(),
		location: opts.Location,
		replaced: make(chan string, 1),
		logger:   opts.Logger,
	}
	if p.location == "" {
		p.location = canonicalLocation(doc)
	}
	p.setupGlobals()
	p.runScripts(opts.ScriptTimeout)
	return p, nil
}

func canonicalLocation(doc *goquery.Document) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

// setupGlobals gives inline scripts the little browser surface they touch
// while assigning state objects.
func (p *Page) setupGlobals() {
	global := p.vm.GlobalObject()
	_ = p.vm.Set("window", global)
	_ = p.vm.Set("self", global)
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = p.vm.Set("setTimeout", noop)
	_ = p.vm.Set("setInterval", noop)
	_ = p.vm.Set("require", goja.Undefined())
}

func (p *Page) runScripts(timeout time.Duration) {
	p.doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if typ, ok := s.Attr("type"); ok && typ != "" && !strings.Contains(typ, "javascript") {
			return
		}
		src := s.Text()
		if strings.TrimSpace(src) == "" {
			return
		}
		timer := time.AfterFunc(timeout, func() { p.vm.Interrupt("script timeout") })
		_, err := p.vm.RunString(src)
		timer.Stop()
		p.vm.ClearInterrupt()
		if err != nil {
			p.logger.Debug(map[string]any{"script": i, "error": err.Error()}, "inline script failed")
		}
	})
}

func (p *Page) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *Page) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

func (p *Page) HeadingText(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.doc.Find(HeadingSelector).First().Text()), nil
}

func (p *Page) AppendHiddenNode(_ context.Context, id, attr, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	body := p.doc.Find("body").First()
	if body.Length() == 0 {
		return errNoBody
	}
	body.AppendHtml(fmt.Sprintf(`<div id="%s" hidden %s="%s"></div>`,
		html.EscapeString(id), attr, html.EscapeString(value)))
	return nil
}

func (p *Page) Observe(_ context.Context, hooks pageguard.Hooks) (pageguard.Observation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := &hooks
	p.hooks = append(p.hooks, h)
	return observation{p: p, h: h}, nil
}

// Mutate applies fn to the document and notifies observers, the way a
// mutation batch would.
func (p *Page) Mutate(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	fn(p.doc)
	hooks := append([]*pageguard.Hooks(nil), p.hooks...)
	p.mu.Unlock()
	for _, h := range hooks {
		if h.Mutations != nil {
			h.Mutations()
		}
	}
}

// Navigate simulates a client-side navigation to url.
func (p *Page) Navigate(url string) {
	p.mu.Lock()
	p.location = url
	hooks := append([]*pageguard.Hooks(nil), p.hooks...)
	p.mu.Unlock()
	for _, h := range hooks {
		if h.NavigateFinish != nil {
			h.NavigateFinish()
		}
	}
}

func (p *Page) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

// Stops reports how many times Stop was called.
func (p *Page) Stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

// Replace records the first corrective navigation on Replaced.
func (p *Page) Replace(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case p.replaced <- url:
	default:
	}
	return nil
}

// Replaced receives the target of the first Replace call.
func (p *Page) Replaced() <-chan string { return p.replaced }

// TakeBridge reads and removes the bridge node.
func (p *Page) TakeBridge(_ context.Context, nodeID string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(fmt.Sprintf(`[id=%q]`, nodeID))
	if sel.Length() == 0 {
		return "", false, nil
	}
	raw, ok := sel.Attr(domain.BridgeAttribute)
	sel.Remove()
	return raw, ok, nil
}

// Global returns the JSON form of a global set by the page's scripts.
func (p *Page) Global(_ context.Context, name string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.vm.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	b, err := json.Marshal(v.Export())
	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", name, err)
	}
	return b, nil
}

type observation struct {
	p *Page
	h *pageguard.Hooks
}

func (o observation) Disconnect() {
	o.p.mu.Lock()
	defer o.p.mu.Unlock()
	for i, h := range o.p.hooks {
		if h == o.h {
			o.p.hooks = append(o.p.hooks[:i], o.p.hooks[i+1:]...)
			return
		}
	}
}

var (
	_ pageguard.Document = (*Page)(nil)
	_ interceptor.Page   = (*Page)(nil)
)
