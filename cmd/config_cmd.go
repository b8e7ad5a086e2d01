package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/remote"
	"github.com/theirongolddev/cbudget/internal/store"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	path := config.Path()
	if flagConfig != "" {
		path = flagConfig
	}
	fmt.Printf("  Config file: %s\n", path)
	if flagConfig != "" || config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    App ID:     %s\n", cfg.General.AppID)
	fmt.Printf("    Cache:      %s\n", cfg.CachePath(store.CachePath()))
	fmt.Println()

	fmt.Println("  [Remote]")
	switch {
	case flagOffline:
		fmt.Println("    Backend:  disabled (--offline)")
	case cfg.Remote.Backend == config.BackendNone:
		fmt.Println("    Backend:  none (local only)")
	default:
		fmt.Printf("    Backend:  %s\n", cfg.Remote.Backend)
		fmt.Printf("    URL:      %s\n", config.GetRemoteURL(cfg))
		fmt.Printf("    Document: %s\n", remote.DocPath(cfg.General.AppID))
	}
	printSecret("API key", config.GetRemoteKey(cfg))
	fmt.Println()

	fmt.Println("  [Analysis]")
	fmt.Printf("    Model:    %s\n", cfg.Analysis.Model)
	printSecret("API key", config.GetGeminiKey(cfg))
	fmt.Println()

	fmt.Println("  [Ingest]")
	fmt.Printf("    Locale:   %s\n", cfg.Ingest.Locale)
	labels := cfg.IngestOptions().Labels
	fmt.Printf("    Columns:  %s\n", strings.Join(labels.Fragments(), ", "))
	if len(cfg.Ingest.TotalMarkers) > 0 {
		fmt.Printf("    Totals:   %s\n", strings.Join(cfg.Ingest.TotalMarkers, ", "))
	}
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address:  %s\n", cfg.Server.Addr)
	fmt.Printf("    Persist:  %v\n", cfg.Server.Persist)
	printSecret("API key", config.GetServerKey(cfg))
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme:    %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `cbudget setup` to reconfigure.")
	return nil
}

func printSecret(label, v string) {
	if v == "" {
		fmt.Printf("    %-9s not configured\n", label+":")
		return
	}
	fmt.Printf("    %-9s %s\n", label+":", cli.MaskSecret(v))
}
