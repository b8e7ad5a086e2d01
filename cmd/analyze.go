package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/theirongolddev/cbudget/internal/analysis"
	"github.com/theirongolddev/cbudget/internal/config"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var flagRaw bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Ask Gemini for a management review of the project list",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&flagRaw, "raw", false, "Print the markdown without terminal rendering")
	rootCmd.AddCommand(analyzeCmd)
}

func newAnalyzer() (*analysis.Analyzer, error) {
	key := config.GetGeminiKey(cfg)
	if key == "" {
		return nil, analysis.ErrMissingKey
	}
	return analysis.NewAnalyzer(&analysis.Gemini{APIKey: key, Model: cfg.Analysis.Model}, logger), nil
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	az, err := newAnalyzer()
	if err != nil {
		return fmt.Errorf("%w (set GEMINI_API_KEY or [analysis] api_key)", err)
	}

	st, cleanup, err := loadStore(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	if !flagQuiet {
		fmt.Fprintln(os.Stderr, "  分析中...")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	report := az.Analyze(ctx, st.Projects())
	switch {
	case errors.Is(report.Err, analysis.ErrNoProjects):
		fmt.Println("\n  尚無專案資料可供分析。")
		return nil
	case report.Failed:
		fmt.Fprintf(os.Stderr, "\n  %s\n", report.Text)
		return report.Err
	}

	if flagRaw {
		fmt.Println(report.Text)
		return nil
	}
	out, err := glamour.Render(report.Text, "dark")
	if err != nil {
		fmt.Println(report.Text)
		return nil //nolint:nilerr // fall back to plain text
	}
	fmt.Print(out)
	return nil
}
