package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/haukened/tubeguard/internal/guard/common/clock"
	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/config"
	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/gateways/chrome"
	"github.com/haukened/tubeguard/internal/guard/infra/metrics"
	"github.com/haukened/tubeguard/internal/guard/repos/blocklist"
	"github.com/haukened/tubeguard/internal/guard/repos/blocklist/bloom"
	"github.com/haukened/tubeguard/internal/guard/repos/blocklist/bolt"
	"github.com/haukened/tubeguard/internal/guard/repos/blocklist/lru"
)

// Application holds all the components of the guard daemon
type Application struct {
	config     *config.AppConfig
	repos      *repositories
	metrics    *metrics.Metrics
	supervisor *chrome.Supervisor
}

// repositories holds all repository implementations
type repositories struct {
	blocklist blocklist.Repository
	store     blocklist.Store
}

func (r *repositories) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()

	repos, err := buildRepositories(cfg, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	m := metrics.New()

	supervisor := chrome.NewSupervisor(chrome.SupervisorOptions{
		Session: chrome.SessionOptions{
			ProfileDir: cfg.ProfileDir,
			Headless:   cfg.Headless,
		},
		Blocklist:     repos.blocklist,
		SafeURL:       cfg.SafeURL,
		StartURL:      cfg.StartURL,
		NavPoll:       cfg.NavPoll,
		NativePoll:    cfg.NativePoll,
		NativeTimeout: cfg.NativeTimeout,
		Logger:        logger,
		Recorder:      m,
	})

	return &Application{
		config:     cfg,
		repos:      repos,
		metrics:    m,
		supervisor: supervisor,
	}, nil
}

// buildRepository is the read-only entry point used by the one-shot commands.
func buildRepository(cfg *config.AppConfig) (blocklist.Repository, func(), error) {
	repos, err := buildRepositories(cfg, clock.RealClock{}, log.GetLogger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repositories: %w", err)
	}
	return repos.blocklist, func() {
		if err := repos.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "failed to close blocklist store")
		}
	}, nil
}

// buildRepositories loads the tables and layers the decision cache and the
// Bloom prefilter over them.
func buildRepositories(cfg *config.AppConfig, clk clock.Clock, logger log.Logger) (*repositories, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.BlocklistDB), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	store, err := bolt.New(cfg.BlocklistDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open blocklist snapshot %s: %w", cfg.BlocklistDB, err)
	}

	tables, err := loadTables(cfg.BlocklistDir, store, clk, logger)
	if err != nil {
		return nil, multierr.Append(err, store.Close())
	}

	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create decision cache: %w", err), store.Close())
	}
	logger.Info(map[string]any{
		"type": "LRU",
		"size": cfg.CacheSize,
	}, "Decision cache configured")

	return &repositories{
		blocklist: blocklist.NewRepository(tables, cache, bloom.NewFactory(), cfg.BloomFPRate),
		store:     store,
	}, nil
}

// loadTables compiles the tables from dir and refreshes the snapshot. When
// dir holds no blocklist files the last snapshot is used instead.
func loadTables(dir string, store blocklist.Store, clk clock.Clock, logger log.Logger) (*domain.Tables, error) {
	src, files, err := blocklist.LoadDirectory(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load blocklist directory: %w", err)
	}

	if len(files) > 0 {
		tables := domain.NewTables(src)
		version := store.Stats().Version + 1
		if err := store.Rebuild(tables, version, clk.Now().Unix()); err != nil {
			return nil, fmt.Errorf("failed to write blocklist snapshot: %w", err)
		}
		logTables(logger, tables, map[string]any{
			"blocklist_dir": dir,
			"files":         len(files),
			"version":       version,
		})
		return tables, nil
	}

	src, err = store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to read blocklist snapshot: %w", err)
	}
	tables := domain.NewTables(src)
	stats := store.Stats()
	if stats.Version == 0 {
		logger.Warn(map[string]any{"blocklist_dir": dir}, "No blocklist files and no snapshot, nothing will be blocked")
	}
	logTables(logger, tables, map[string]any{
		"source":  "snapshot",
		"version": stats.Version,
	})
	return tables, nil
}

func logTables(logger log.Logger, t *domain.Tables, fields map[string]any) {
	c := t.Counts()
	fields["video_ids"] = c.VideoIDs
	fields["video_keywords"] = c.VideoTitleKeywords
	fields["channel_ids"] = c.ChannelIDs
	fields["channel_handles"] = c.ChannelHandles
	fields["channel_keywords"] = c.ChannelTitleKeywords
	logger.Info(fields, "Blocklist loaded")
}

// Run starts the metrics listener, if configured, and supervises the browser
// until ctx is cancelled or the browser exits.
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsErr := make(chan error, 1)
	if app.config.MetricsAddr != "" {
		go func() {
			metricsErr <- app.metrics.Serve(ctx, app.config.MetricsAddr, log.GetLogger())
		}()
	}

	supErr := make(chan error, 1)
	go func() { supErr <- app.supervisor.Run(ctx) }()

	select {
	case err := <-supErr:
		if err != nil {
			return fmt.Errorf("browser supervisor failed: %w", err)
		}
		return nil
	case err := <-metricsErr:
		if err == nil {
			return <-supErr
		}
		cancel()
		return multierr.Append(fmt.Errorf("metrics listener failed: %w", err), <-supErr)
	}
}

// Close releases the blocklist snapshot and logs final counters.
func (app *Application) Close() error {
	stats := app.repos.blocklist.RepoStats()
	log.Info(map[string]any{
		"decisions":     stats.Decisions,
		"bloom_rejects": stats.BloomRejects,
		"blocked":       stats.Blocked,
		"cache_hits":    stats.Cache.Hits,
		"cache_misses":  stats.Cache.Misses,
	}, "Blocklist totals")
	return app.repos.Close()
}
