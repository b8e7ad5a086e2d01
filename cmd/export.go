package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/source"

	"github.com/spf13/cobra"
)

var (
	flagOutput string
	flagFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the project list with derived metrics to a spreadsheet",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output path (default 工程預算監控_<date>.<format>)")
	exportCmd.Flags().StringVar(&flagFormat, "format", "xlsx", "Output format: xlsx or csv")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(flagFormat)
	if format != "xlsx" && format != "csv" {
		return fmt.Errorf("unsupported export format %q", flagFormat)
	}

	st, cleanup, err := loadStore(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	projects := st.Projects()
	if len(projects) == 0 {
		fmt.Println("\n  尚無專案資料，未產生檔案。")
		return nil
	}

	exported := pipeline.ExportRows(projects)
	values := make([][]string, len(exported))
	for i, r := range exported {
		values[i] = r.Values()
	}

	path := flagOutput
	if path == "" {
		path = pipeline.ExportFileName(time.Now(), format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if format == "csv" {
		err = source.WriteCSV(f, pipeline.ExportHeaders(), values)
	} else {
		err = source.WriteXLSX(f, pipeline.DefaultSheetName, pipeline.ExportHeaders(), values)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("\n  已匯出 %d 筆至 %s\n", len(projects), path)
	return nil
}
