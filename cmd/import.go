package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/reconcile"
	"github.com/theirongolddev/cbudget/internal/source"

	"github.com/spf13/cobra"
)

var (
	flagSheet  string
	flagLocale string
	flagDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the project list with a spreadsheet (.xlsx or .csv)",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&flagSheet, "sheet", "", "Worksheet name (default first sheet)")
	importCmd.Flags().StringVar(&flagLocale, "locale", "", "Column label set (default from config)")
	importCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Parse and print without saving")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	rows, err := source.ReadFile(args[0], flagSheet)
	if err != nil {
		return err
	}

	opts := cfg.IngestOptions()
	if flagLocale != "" {
		opts.Labels = pipeline.LabelsFor(flagLocale).Merge(cfg.Ingest.Labels)
	}
	opts.BatchTime = time.Now()

	res, err := pipeline.Ingest(rows, opts)
	if err != nil {
		var colErr *pipeline.NoRecognizedColumnsError
		if errors.As(err, &colErr) {
			fmt.Fprintf(os.Stderr, "\n  %s\n", colErr.Error())
			fmt.Fprintf(os.Stderr, "  讀取 %d 列，無可用資料，清單未變更。\n", colErr.Rows)
		}
		return err
	}

	if !flagQuiet {
		fmt.Printf("\n  讀取 %d 列，匯入 %d 筆", res.TotalRows, len(res.Projects))
		if res.Dropped > 0 {
			fmt.Printf("，略過 %d 列（空白名稱或合計列）", res.Dropped)
		}
		fmt.Println()
	}

	if flagDryRun {
		fmt.Println()
		fmt.Print(cli.RenderTable(projectTable(res.Projects)))
		return nil
	}

	st, cleanup, err := loadStore(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	cacheErr := st.ImportBatch(res.Projects)
	st.Wait()

	state := st.State()
	fmt.Println(statusLine(state))
	if cacheErr != nil {
		return cacheErr
	}
	if state.Status == reconcile.SaveFailed {
		return state.LastError
	}
	return nil
}
