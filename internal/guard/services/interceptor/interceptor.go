// Package interceptor runs inside the page-native domain. It consumes the
// bridged tables once, then polls the page's own state objects for video
// and channel metadata until it has a verdict or runs out of time.
package interceptor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haukened/tubeguard/internal/guard/common/eventloop"
	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/domain"
)

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultTimeout      = 1500 * time.Millisecond
)

type Options struct {
	Page         Page
	NodeID       string
	SafeURL      string
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       log.Logger
	Recorder     Recorder
}

// Interceptor is single use: create one per page load.
type Interceptor struct {
	page     Page
	nodeID   string
	safeURL  string
	poll     time.Duration
	timeout  time.Duration
	logger   log.Logger
	recorder Recorder

	// Owned by the loop.
	tables   *domain.Tables
	checked  map[string]bool
	hasActed bool
	poller   *eventloop.Timer
	deadline *eventloop.Timer
	finish   context.CancelFunc
}

func New(opts Options) *Interceptor {
	i := &Interceptor{
		page:     opts.Page,
		nodeID:   opts.NodeID,
		safeURL:  opts.SafeURL,
		poll:     opts.PollInterval,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		checked:  map[string]bool{GlobalPlayerResponse: false, GlobalInitialData: false},
	}
	if i.poll <= 0 {
		i.poll = DefaultPollInterval
	}
	if i.timeout <= 0 {
		i.timeout = DefaultTimeout
	}
	if i.logger == nil {
		i.logger = log.GetLogger()
	}
	i.logger = i.logger.With(map[string]any{"node": i.nodeID})
	return i
}

// Launch starts an interceptor on its own goroutine. The returned channel
// receives Run's result and is then closed.
func Launch(ctx context.Context, opts Options) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		out <- New(opts).Run(ctx)
	}()
	return out
}

// Run consumes the bridge and polls until both state objects were checked,
// a block was acted on, the timeout elapsed, or ctx ended. It returns
// ErrBridgeUnavailable or ErrParse when the bridge could not be used, in
// which case no polling happens.
func (i *Interceptor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	i.finish = cancel

	loop := eventloop.New()
	var result error
	loop.Post(func() {
		if err := i.start(ctx, loop); err != nil {
			result = err
			cancel()
		}
	})
	_ = loop.Run(ctx)
	return result
}

func (i *Interceptor) start(ctx context.Context, loop *eventloop.Loop) error {
	tables, err := i.takeBridge(ctx)
	if err != nil {
		if i.recorder != nil {
			i.recorder.BridgeFailure()
		}
		i.logger.Warn(map[string]any{"error": err.Error()}, "native interceptor disabled")
		return err
	}
	i.tables = tables

	i.deadline = loop.After(i.timeout, func() {
		i.logger.Debug(map[string]any{"timeout": i.timeout.String()}, "page state never settled, giving up")
		i.stop()
	})
	i.poller = loop.Every(i.poll, func() { i.check(ctx) })
	i.check(ctx)
	return nil
}

func (i *Interceptor) takeBridge(ctx context.Context) (*domain.Tables, error) {
	raw, ok, err := i.page.TakeBridge(ctx, i.nodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBridgeUnavailable, err)
	}
	if !ok || raw == "" {
		return nil, domain.ErrBridgeUnavailable
	}
	payload, err := domain.DecodeBridgePayload(raw)
	if err != nil {
		return nil, err
	}
	return payload.Tables(), nil
}

// check evaluates each state object that has appeared and was not yet
// checked.
func (i *Interceptor) check(ctx context.Context) {
	if i.hasActed {
		return
	}
	for _, name := range []string{GlobalPlayerResponse, GlobalInitialData} {
		if i.checked[name] {
			continue
		}
		raw, err := i.page.Global(ctx, name)
		if err != nil {
			i.logger.Debug(map[string]any{"global": name, "error": err.Error()}, "global read failed")
			continue
		}
		if !present(raw) {
			continue
		}
		i.checked[name] = true

		ids, err := identities(name, raw)
		if err != nil {
			level := i.logger.Warn
			if errors.Is(err, domain.ErrMissingField) {
				level = i.logger.Debug
			}
			level(map[string]any{"global": name, "error": err.Error()}, "no usable page state")
			continue
		}
		for _, id := range ids {
			if reason, ok := i.tables.Match(id); ok {
				i.act(ctx, reason)
				return
			}
		}
	}
	if i.checked[GlobalPlayerResponse] && i.checked[GlobalInitialData] {
		i.stop()
	}
}

// act performs the corrective action directly in the native domain.
func (i *Interceptor) act(ctx context.Context, reason string) {
	if i.hasActed {
		return
	}
	i.hasActed = true
	if i.recorder != nil {
		i.recorder.Record(domain.LayerNative, true)
	}
	i.logger.Info(map[string]any{"layer": domain.LayerNative.String(), "reason": reason}, "page blocked")
	if err := i.page.Stop(ctx); err != nil {
		i.logger.Warn(map[string]any{"error": err.Error()}, "failed to stop page load")
	}
	if err := i.page.Replace(ctx, i.safeURL); err != nil {
		i.logger.Warn(map[string]any{"error": err.Error()}, "failed to replace location")
	}
	i.stop()
}

// stop cancels both timers and ends the loop.
func (i *Interceptor) stop() {
	if i.poller != nil {
		i.poller.Stop()
	}
	if i.deadline != nil {
		i.deadline.Stop()
	}
	i.finish()
}
