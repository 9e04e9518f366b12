package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-claude-usage/internal/util"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor Claude Code usage in real-time",
	Long: `Keeps the usage statistics current while Claude Code is running.

The projects directory is watched for changes; day rollovers and a
periodic fallback timer also refresh the data. Each refresh prints an
updated one-line summary.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := buildEngine()
	if err != nil {
		return err
	}

	cancel := e.Subscribe(func() {
		stats := e.CurrentStats()
		line := fmt.Sprintf("[%s] cost %s, tokens %s, entries %d, sessions %d",
			util.GetTimeProvider().Format(time.Now(), "15:04:05"),
			util.FormatCost(stats.TotalCost),
			util.FormatTokens(stats.TotalTokens),
			stats.EntryCount,
			stats.SessionCount)
		if active := e.CurrentSession(); active != nil {
			line += fmt.Sprintf(" | active session: %s, %.0f tok/min",
				util.FormatCost(active.TotalCost),
				active.BurnRate.TokensPerMinute)
		}
		fmt.Println(line)
	})
	defer cancel()

	if err := e.Start(); err != nil {
		return err
	}
	defer e.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("\nStopping...")
	return nil
}
