package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/penwyp/go-claude-usage/internal/application/engine"
	"github.com/penwyp/go-claude-usage/internal/core/session"
	"github.com/penwyp/go-claude-usage/internal/data/aggregator"
	"github.com/penwyp/go-claude-usage/internal/util"
)

var (
	// Logging related
	debug bool

	// Data path
	dataDir    string
	configFile string

	// Output related
	outputFormat string
	timezone     string

	// Time filtering
	since string
	until string

	// Session segmentation
	sessionGapMinutes int

	rootCmd = &cobra.Command{
		Use:   "go-claude-usage [flags]",
		Short: "Claude Code usage statistics",
		Long: `go-claude-usage scans the JSONL usage logs written by Claude Code,
deduplicates the entries, segments them into billing sessions, and reports
token and cost statistics.

Examples:
  go-claude-usage                                  # Summarize all usage
  go-claude-usage --dir /path/to/claude/projects   # Use a custom projects directory
  go-claude-usage --output json                    # Machine-readable output
  go-claude-usage --since 2026-08-01 --until 2026-08-15
  go-claude-usage watch                            # Live monitoring`,
		RunE: runReport,
	}
)

const (
	defaultLogFile    = "~/.go-claude-usage/logs/app.log"
	defaultConfigFile = "~/.go-claude-usage/config.toml"
	defaultDataDir    = "~/.claude/projects"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "",
		"Claude project directory path (default "+defaultDataDir+")")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", defaultConfigFile,
		"Configuration file path")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "",
		"Timezone setting (e.g., Asia/Shanghai, UTC)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
	rootCmd.PersistentFlags().IntVar(&sessionGapMinutes, "session-gap", 0,
		"Idle minutes that close a session (default 300)")

	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "summary",
		"Output format (summary, json)")
	rootCmd.Flags().StringVar(&since, "since", "",
		"Only include entries on or after this date (2006-01-02)")
	rootCmd.Flags().StringVar(&until, "until", "",
		"Only include entries before this date (2006-01-02, exclusive)")
}

// buildEngine assembles an engine from flags and the optional config
// file. Flags win over file values.
func buildEngine() (*engine.Engine, error) {
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}
	logFile := expandPath(defaultLogFile)
	ensureDir(filepath.Dir(logFile))
	util.InitLogger(logLevel, logFile, debug)

	cfg := engine.Config{
		Timezone:    timezone,
		Concurrency: runtime.NumCPU(),
	}
	if dataDir != "" {
		cfg.DataDir = expandPath(dataDir)
	}
	if sessionGapMinutes > 0 {
		cfg.SessionGap = time.Duration(sessionGapMinutes) * time.Minute
	}

	fc, err := engine.LoadConfigFile(expandPath(configFile))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg.ApplyFile(fc)

	return engine.New(cfg, nil)
}

func runReport(cmd *cobra.Command, args []string) error {
	e, err := buildEngine()
	if err != nil {
		return err
	}
	if err := e.Reload(); err != nil {
		return err
	}

	stats := e.CurrentStats()
	sessions := e.Sessions()

	if since != "" || until != "" {
		stats, err = rangeStats(e, sessions)
		if err != nil {
			return err
		}
	}

	switch outputFormat {
	case "json":
		return printJSON(stats, sessions)
	case "summary":
		printSummary(stats, sessions)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

// rangeStats narrows statistics to the [since, until) window.
func rangeStats(e *engine.Engine, sessions []*session.Session) (aggregator.UsageStats, error) {
	loc := util.GetTimeProvider().Location()

	// The open end of the window defaults to the epoch, not the zero
	// time, so --until alone stays a valid range on an empty dataset.
	from := time.Unix(0, 0).In(loc)
	to := time.Now().In(loc).AddDate(0, 0, 1)
	if since != "" {
		t, err := time.ParseInLocation("2006-01-02", since, loc)
		if err != nil {
			return aggregator.UsageStats{}, fmt.Errorf("invalid --since date: %w", err)
		}
		from = t
	} else if len(sessions) > 0 {
		from = sessions[0].StartTime
	}
	if until != "" {
		t, err := time.ParseInLocation("2006-01-02", until, loc)
		if err != nil {
			return aggregator.UsageStats{}, fmt.Errorf("invalid --until date: %w", err)
		}
		to = t
	}

	return e.StatsForRange(from, to)
}

func printJSON(stats aggregator.UsageStats, sessions []*session.Session) error {
	payload := struct {
		Stats    aggregator.UsageStats `json:"stats"`
		Sessions []*session.Session    `json:"sessions"`
	}{Stats: stats, Sessions: sessions}

	data, err := sonic.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printSummary(stats aggregator.UsageStats, sessions []*session.Session) {
	fmt.Printf("Total cost:   %s\n", util.FormatCost(stats.TotalCost))
	fmt.Printf("Total tokens: %s (input %s, output %s, cache write %s, cache read %s)\n",
		util.FormatTokens(stats.TotalTokens),
		util.FormatTokens(stats.InputTokens),
		util.FormatTokens(stats.OutputTokens),
		util.FormatTokens(stats.CacheCreationTokens),
		util.FormatTokens(stats.CacheReadTokens))
	fmt.Printf("Entries:      %d across %d sessions\n", stats.EntryCount, stats.SessionCount)

	if len(stats.ByModel) > 0 {
		fmt.Println("\nBy model:")
		for _, m := range stats.ByModel {
			fmt.Printf("  %-40s %10s  %s\n", m.Model, util.FormatTokens(m.TotalTokens), util.FormatCost(m.TotalCost))
		}
	}
	if len(stats.ByProject) > 0 {
		fmt.Println("\nBy project:")
		for _, p := range stats.ByProject {
			fmt.Printf("  %-40s %10s  %s\n", p.Project, util.FormatTokens(p.TotalTokens), util.FormatCost(p.TotalCost))
		}
	}
	if len(stats.ByDate) > 0 {
		fmt.Println("\nBy date:")
		for _, d := range stats.ByDate {
			fmt.Printf("  %s  %10s  %s\n", d.Date, util.FormatTokens(d.TotalTokens), util.FormatCost(d.TotalCost))
		}
	}

	if active := session.MostRecentActive(sessions); active != nil {
		fmt.Println("\nActive session:")
		fmt.Printf("  Started:   %s (%s elapsed)\n",
			util.GetTimeProvider().Format(active.StartTime, "2006-01-02 15:04"),
			util.FormatDuration(time.Since(active.StartTime)))
		fmt.Printf("  Tokens:    %s   Cost: %s\n",
			util.FormatTokens(active.TotalTokens), util.FormatCost(active.TotalCost))
		fmt.Printf("  Burn rate: %.0f tok/min, %s/hour\n",
			active.BurnRate.TokensPerMinute, util.FormatCost(active.BurnRate.CostPerHour))
	}
}

func Execute() error {
	return rootCmd.Execute()
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	if path == "" {
		return path
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
