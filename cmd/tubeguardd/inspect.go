package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/config"
	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/gateways/snapshot"
	"github.com/haukened/tubeguard/internal/guard/services/interceptor"
	"github.com/haukened/tubeguard/internal/guard/services/pageguard"
)

// firstBlock remembers the layer of the first blocking decision.
type firstBlock struct {
	mu             sync.Mutex
	layer          domain.Layer
	bridgeFailures int
}

func (r *firstBlock) Record(layer domain.Layer, blocked bool) {
	if !blocked {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.layer == domain.LayerNone {
		r.layer = layer
	}
}

func (r *firstBlock) BridgeFailure() {
	r.mu.Lock()
	r.bridgeFailures++
	r.mu.Unlock()
}

func (r *firstBlock) Layer() domain.Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layer
}

// snapshotInjector runs the native interceptor against the same snapshot
// page and reports its result on done.
type snapshotInjector struct {
	opts interceptor.Options
	done chan error
	once sync.Once
}

func newSnapshotInjector(opts interceptor.Options) *snapshotInjector {
	return &snapshotInjector{opts: opts, done: make(chan error, 1)}
}

func (i *snapshotInjector) Inject(ctx context.Context, nodeID string) error {
	i.once.Do(func() {
		opts := i.opts
		opts.NodeID = nodeID
		result := interceptor.Launch(ctx, opts)
		go func() { i.done <- <-result }()
	})
	return nil
}

// inspectPage runs the page guard and the native interceptor against the
// HTML in r and prints the first decision. It returns errBlocked when the
// page was redirected.
func inspectPage(ctx context.Context, w io.Writer, r io.Reader, bl pageguard.Blocklist, cfg *config.AppConfig, location string) error {
	logger := log.GetLogger()
	page, err := snapshot.Open(r, snapshot.Options{Location: location, Logger: logger})
	if err != nil {
		return err
	}
	loc, _ := page.Location(ctx)

	rec := &firstBlock{}
	inj := newSnapshotInjector(interceptor.Options{
		Page:         page,
		SafeURL:      cfg.SafeURL,
		PollInterval: cfg.NativePoll,
		Timeout:      cfg.NativeTimeout,
		Logger:       logger.With(map[string]any{"layer": domain.LayerNative.String()}),
		Recorder:     rec,
	})
	guard := pageguard.NewGuard(pageguard.GuardOptions{
		Blocklist: bl,
		Document:  page,
		Injector:  inj,
		SafeURL:   cfg.SafeURL,
		NavPoll:   cfg.NavPoll,
		Logger:    logger,
		Recorder:  rec,
	})
	guard.Start(ctx)

	deadline := time.NewTimer(cfg.NativeTimeout + cfg.NavPoll)
	defer deadline.Stop()
	var settle <-chan time.Time
	native := inj.done

	for {
		select {
		case target := <-page.Replaced():
			fmt.Fprintf(w, "BLOCK\t%s\tlayer=%s\t-> %s\n", loc, rec.Layer(), target)
			return errBlocked
		case err := <-native:
			native = nil
			if err != nil {
				logger.Warn(map[string]any{"error": err.Error()}, "native interceptor did not run")
			}
			// Give the DOM scanner one poll interval to report.
			settle = time.After(cfg.NavPoll)
		case <-settle:
			fmt.Fprintf(w, "ALLOW\t%s\n", loc)
			return nil
		case <-deadline.C:
			fmt.Fprintf(w, "ALLOW\t%s\n", loc)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
