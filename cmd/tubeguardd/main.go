package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/config"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "tubeguardd"

	// exitBlocked is returned by check when any URL is blocked.
	exitBlocked = 3
)

// errBlocked signals that check found at least one blocked URL.
var errBlocked = errors.New("blocked content found")

func main() {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
	case errors.Is(err, errBlocked):
		os.Exit(exitBlocked)
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Keep a browser tab away from blocklisted videos and channels",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newCheckCmd(), newInspectCmd())
	return root
}

// setup loads configuration and configures global logging.
func setup() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("logging configuration error: %w", err)
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Launch the managed browser and guard it until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}

			log.Info(map[string]any{
				"version":       version,
				"env":           cfg.Env,
				"log_level":     cfg.LogLevel,
				"safe_url":      cfg.SafeURL,
				"start_url":     cfg.StartURL,
				"blocklist_dir": cfg.BlocklistDir,
				"cache_size":    cfg.CacheSize,
				"headless":      cfg.Headless,
			}, "Starting tubeguard")

			app, err := buildApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runErr := app.Run(ctx)
			if closeErr := app.Close(); closeErr != nil {
				log.Warn(map[string]any{"error": closeErr}, "Error during shutdown")
			}
			if runErr != nil {
				return runErr
			}
			log.Info(nil, "tubeguard stopped gracefully")
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check URL...",
		Short: "Classify URLs against the blocklist",
		Long:  "Classify URLs against the blocklist. Exits with status 3 when any URL is blocked.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			repo, closer, err := buildRepository(cfg)
			if err != nil {
				return err
			}
			defer closer()
			return checkURLs(cmd.OutOrStdout(), repo, args)
		},
	}
}

func newInspectCmd() *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Run the page detection layers against a saved HTML page",
		Long: "Run the page guard and native interceptor against a saved HTML page and print " +
			"the first decision. Exits with status 3 when the page is blocked.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			repo, closer, err := buildRepository(cfg)
			if err != nil {
				return err
			}
			defer closer()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			return inspectPage(ctx, cmd.OutOrStdout(), f, repo, cfg, location)
		},
	}
	cmd.Flags().StringVar(&location, "url", "", "page URL (defaults to the page's canonical link)")
	return cmd
}
