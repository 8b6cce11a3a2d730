package chrome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/services/interceptor"
	"github.com/haukened/tubeguard/internal/guard/services/navguard"
	"github.com/haukened/tubeguard/internal/guard/services/pageguard"
)

// Blocklist is what the supervisor needs from the blocklist repository.
type Blocklist interface {
	Decide(url string) domain.Decision
	Tables() *domain.Tables
}

// Recorder counts decisions and bridge failures.
type Recorder interface {
	Record(layer domain.Layer, blocked bool)
	BridgeFailure()
}

type SupervisorOptions struct {
	Session       SessionOptions
	Blocklist     Blocklist
	SafeURL       string
	StartURL      string
	NavPoll       time.Duration
	NativePoll    time.Duration
	NativeTimeout time.Duration
	Logger        log.Logger
	Recorder      Recorder
}

// Supervisor owns one managed tab and arms all three guard layers on it.
type Supervisor struct {
	opts   SupervisorOptions
	logger log.Logger
	guard  *navguard.Guard

	mainFrame string

	mu        sync.Mutex
	doc       *isolatedDocument
	docCancel context.CancelFunc
}

func NewSupervisor(opts SupervisorOptions) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = logger
	}
	s := &Supervisor{opts: opts, logger: logger}
	s.guard = navguard.NewGuard(navguard.GuardOptions{
		Classifier: opts.Blocklist,
		Redirector: fetchRedirector{},
		SafeURL:    opts.SafeURL,
		Logger:     logger.With(map[string]any{"layer": domain.LayerPreNavigation.String()}),
		Recorder:   opts.Recorder,
	})
	return s
}

// Run launches the browser, opens the start page and guards every document
// the tab loads until ctx ends or the browser exits.
func (s *Supervisor) Run(ctx context.Context) error {
	tabCtx, cancel := NewSession(ctx, s.opts.Session)
	defer cancel()

	if err := chromedp.Run(tabCtx,
		runtime.Enable(),
		page.Enable(),
		runtime.AddBinding(bindingName).WithExecutionContextName(worldName),
		fetch.Enable().WithPatterns(documentPatterns),
	); err != nil {
		return fmt.Errorf("failed to prepare tab: %w", err)
	}
	s.mainFrame = string(chromedp.FromContext(tabCtx).Target.TargetID)

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				if err := handlePaused(tabCtx, s.guard, ev, s.mainFrame); err != nil {
					s.logger.Debug(map[string]any{"request": string(ev.RequestID), "error": err.Error()}, "failed to release request")
				}
			}()
		case *page.EventFrameNavigated:
			if ev.Frame != nil && ev.Frame.ParentID == "" {
				go s.onDocument(tabCtx, ev.Frame.ID, ev.Frame.URL)
			}
		case *page.EventNavigatedWithinDocument:
			if string(ev.FrameID) == s.mainFrame {
				s.signal(signalNavigate, 0)
			}
		case *runtime.EventBindingCalled:
			if ev.Name == bindingName {
				s.signal(ev.Payload, ev.ExecutionContextID)
			}
		}
	})

	s.logger.Info(map[string]any{"url": s.opts.StartURL}, "opening start page")
	if err := chromedp.Run(tabCtx, chromedp.Navigate(s.opts.StartURL)); err != nil {
		return fmt.Errorf("failed to open start page: %w", err)
	}

	<-tabCtx.Done()
	s.mu.Lock()
	if s.docCancel != nil {
		s.docCancel()
	}
	s.mu.Unlock()
	if ctx.Err() != nil {
		return nil
	}
	return tabCtx.Err()
}

// onDocument replaces the page guard whenever the main frame commits a new
// document. Each document gets its own act-once state.
func (s *Supervisor) onDocument(tabCtx context.Context, frameID cdp.FrameID, url string) {
	docCtx, cancel := context.WithCancel(tabCtx)

	s.mu.Lock()
	if s.docCancel != nil {
		s.docCancel()
	}
	s.doc, s.docCancel = nil, cancel
	s.mu.Unlock()

	doc, err := newIsolatedDocument(docCtx, frameID)
	if err != nil {
		s.logger.Warn(map[string]any{"url": url, "error": err.Error()}, "failed to create isolated world")
		return
	}

	s.mu.Lock()
	if docCtx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.doc = doc
	s.mu.Unlock()

	logger := s.logger.With(map[string]any{"document": url})
	guard := pageguard.NewGuard(pageguard.GuardOptions{
		Blocklist: s.opts.Blocklist,
		Document:  doc,
		Injector: &nativeInjector{
			opts: interceptor.Options{
				SafeURL:      s.opts.SafeURL,
				PollInterval: s.opts.NativePoll,
				Timeout:      s.opts.NativeTimeout,
				Logger:       logger,
				Recorder:     s.opts.Recorder,
			},
			logger: logger,
		},
		SafeURL:  s.opts.SafeURL,
		NavPoll:  s.opts.NavPoll,
		Logger:   logger,
		Recorder: s.opts.Recorder,
	})
	guard.Start(docCtx)
}

// signal forwards a page signal to the current document. A zero context id
// matches any world.
func (s *Supervisor) signal(kind string, contextID runtime.ExecutionContextID) {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return
	}
	if contextID != 0 && contextID != doc.scope.contextID {
		return
	}
	doc.signal(kind)
}
