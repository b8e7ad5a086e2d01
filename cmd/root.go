// Package cmd implements the cbudget CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/reconcile"
	"github.com/theirongolddev/cbudget/internal/remote"
	"github.com/theirongolddev/cbudget/internal/remote/httpdoc"
	"github.com/theirongolddev/cbudget/internal/remote/pgdoc"
	"github.com/theirongolddev/cbudget/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagOffline bool
	flagQuiet   bool
	flagVerbose bool
	flagWait    time.Duration
	flagConfig  string
)

// Loaded by the root pre-run hook.
var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cbudget",
	Short: "Construction budget monitor",
	Long:  "Import construction project budgets from spreadsheets, keep them in sync across machines, and review execution and billing.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return setupRuntime()
	},
	RunE:          runSummary,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Skip the remote store, use the local cache only")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().DurationVar(&flagWait, "wait", 10*time.Second, "How long to wait for the first remote snapshot")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default "+config.Path()+")")
}

// setupRuntime loads .env files, the config and the logger.
func setupRuntime() error {
	// A missing .env is normal.
	_ = godotenv.Load()

	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger = newLogger(cfg.Log.Level, flagVerbose)
	slog.SetDefault(logger)
	return nil
}

func newLogger(level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch {
	case verbose:
		lvl = slog.LevelDebug
	case strings.EqualFold(level, "debug"):
		lvl = slog.LevelDebug
	case strings.EqualFold(level, "info"):
		lvl = slog.LevelInfo
	case strings.EqualFold(level, "error"):
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildRemote returns the configured document store, or nil when running
// local-only. The cleanup func is always non-nil.
func buildRemote() (remote.DocumentStore, func(), error) {
	noop := func() {}
	if flagOffline {
		return nil, noop, nil
	}

	path := remote.DocPath(cfg.General.AppID)
	url := config.GetRemoteURL(cfg)

	switch cfg.Remote.Backend {
	case config.BackendHTTP:
		return httpdoc.New(url, config.GetRemoteKey(cfg), path, httpdoc.WithLogger(logger)), noop, nil
	case config.BackendPostgres:
		pg := pgdoc.New(url, path, pgdoc.WithLogger(logger))
		return pg, func() { _ = pg.Close() }, nil
	case config.BackendNone:
		return nil, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}
}

// openStore opens the local cache and the remote, loads the cached list and
// starts connecting in the background. cleanup waits for pending remote
// writes before closing everything.
func openStore(ctx context.Context) (*reconcile.Store, func(), error) {
	cache, err := store.Open(cfg.CachePath(store.CachePath()))
	if err != nil {
		return nil, nil, fmt.Errorf("opening local cache: %w", err)
	}

	rem, closeRemote, err := buildRemote()
	if err != nil {
		_ = cache.Close()
		return nil, nil, err
	}

	st := reconcile.New(cache, rem, reconcile.WithLogger(logger))
	st.Start(ctx)

	cleanup := func() {
		st.Wait()
		st.Close()
		closeRemote()
		_ = cache.Close()
	}
	return st, cleanup, nil
}

// loadStore is openStore plus a bounded wait for the first remote answer,
// used by one-shot commands that print the current list.
func loadStore(ctx context.Context) (*reconcile.Store, func(), error) {
	st, cleanup, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, flagWait)
	defer cancel()
	settled := st.WaitSynced(waitCtx)

	state := st.State()
	if !flagQuiet && (!settled || state.Status.Failed()) {
		fmt.Fprintf(os.Stderr, "  %s，使用本地資料\n", state.Label())
	}
	return st, cleanup, nil
}

func statusLine(st reconcile.SyncState) string {
	line := "  狀態: " + st.Label()
	if st.LastError != nil && st.Status.Failed() {
		line += fmt.Sprintf(" (%v)", st.LastError)
	}
	return line
}
