package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/reconcile"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print a line every time the shared project list changes",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, cleanup, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	updates, unsubscribe := st.Subscribe()
	defer unsubscribe()

	printWatchLine(st.State())
	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-updates:
			if !ok {
				return nil
			}
			printWatchLine(state)
		}
	}
}

func printWatchLine(st reconcile.SyncState) {
	s := pipeline.Aggregate(st.Projects)
	line := fmt.Sprintf("%s  %-16s  %3d 筆  執行 %s  請款 %s (%s)",
		time.Now().Format("15:04:05"),
		st.Label(),
		s.Projects,
		cli.FormatAmount(s.TotalExec),
		cli.FormatAmount(s.TotalPaid),
		cli.FormatPercent(s.OverallProgress),
	)
	if n := len(pipeline.OverBilled(st.Projects)); n > 0 {
		line += "  " + cli.WarnStyle.Render(fmt.Sprintf("超請款 %d", n))
	}
	fmt.Println(line)
}
