package cmd

import (
	"fmt"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagSearch     string
	flagOverBilled bool
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Per-project budget, variance and billing table",
	RunE:  runProjects,
}

func init() {
	projectsCmd.Flags().StringVarP(&flagSearch, "search", "s", "", "Filter by project name (case-insensitive substring)")
	projectsCmd.Flags().BoolVar(&flagOverBilled, "over-billed", false, "Only projects billed past their executed budget")
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, _ []string) error {
	st, cleanup, err := loadStore(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	state := st.State()
	list := pipeline.FilterByName(state.Projects, flagSearch)
	if flagOverBilled {
		list = pipeline.OverBilled(list)
	}

	if len(list) == 0 {
		if flagSearch != "" || flagOverBilled {
			fmt.Println("\n  沒有符合條件的專案。")
		} else {
			fmt.Println("\n  尚無專案資料。")
		}
		fmt.Println(statusLine(state))
		return nil
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(projectTable(list)))
	fmt.Printf("\n  共 %d 筆", len(list))
	if n := len(state.Projects); n != len(list) {
		fmt.Printf(" (全部 %d 筆)", n)
	}
	fmt.Println()
	fmt.Println(statusLine(state))
	return nil
}

func projectTable(list []model.Project) cli.Table {
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		m := pipeline.ProjectMetricsFor(p)
		ratio := cli.FormatPercent(m.BillRatio)
		if m.OverBilled() {
			ratio = cli.WarnStyle.Render(ratio)
		}
		rows = append(rows, []string{
			p.Name,
			cli.FormatAmount(p.Area),
			cli.FormatAmount(p.OriginalBudget),
			cli.FormatAmount(p.ExecBudget),
			cli.FormatSignedPercent(m.VarianceRate),
			cli.FormatAmount(p.Paid),
			ratio,
		})
	}
	return cli.Table{
		Title:   "專案列表",
		Headers: []string{"工程名稱", "面積", "原始預算", "執行預算", "差異率", "已請款", "請款比例"},
		Rows:    rows,
	}
}
