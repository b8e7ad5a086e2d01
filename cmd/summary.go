package cmd

import (
	"fmt"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/pipeline"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Portfolio totals and overall billing progress",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	st, cleanup, err := loadStore(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	state := st.State()
	if len(state.Projects) == 0 {
		fmt.Println("\n  尚無專案資料。")
		fmt.Println("  使用 cbudget import <檔案.xlsx> 匯入預算表。")
		fmt.Println(statusLine(state))
		return nil
	}

	s := pipeline.Aggregate(state.Projects)
	over := pipeline.OverBilled(state.Projects)

	overStr := cli.FormatNumber(int64(len(over)))
	if len(over) > 0 {
		overStr = cli.WarnStyle.Render(overStr)
	}

	rows := [][]string{
		{"專案數", cli.FormatNumber(int64(s.Projects))},
		{"總面積", cli.FormatAmount(s.TotalArea)},
		{"---"},
		{"原始預算", cli.FormatAmount(s.TotalOriginal)},
		{"執行預算", cli.FormatAmount(s.TotalExec)},
		{"預算差異", cli.FormatSignedAmount(s.TotalExec - s.TotalOriginal)},
		{"---"},
		{"已請款", cli.FormatAmount(s.TotalPaid)},
		{"超請款專案", overStr},
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("工程預算總覽"))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"項目", "數值"},
		Rows:    rows,
	}))
	fmt.Println()
	fmt.Printf("  整體請款進度 %s\n", cli.RenderProgressBar(s.OverallProgress, 30))
	fmt.Println()
	fmt.Println(statusLine(state))
	return nil
}
