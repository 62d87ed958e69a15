package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/dubsync/internal/history"
)

var (
	// History command flags
	historyLimit   int
	historyFlagged bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent analysis results",
	Long: `Show the recorded analysis history, newest first.

Every analyze run and review server upload records one row per
comparison. Use --flagged to limit the listing to recordings that were
flagged for review.

Examples:
  # Last 20 analyses
  dubsync history

  # Last 50 flagged analyses as JSON
  dubsync history --flagged -n 50 -o json`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"maximum rows to show")
	historyCmd.Flags().BoolVar(&historyFlagged, "flagged", false,
		"only show analyses flagged for review")
}

func runHistory(cmd *cobra.Command, args []string) error {
	config, err := loadCommandConfig()
	if err != nil {
		return err
	}
	if !config.History.Enabled {
		return fmt.Errorf("history is disabled in the configuration")
	}
	logger, err := newCommandLogger(config)
	if err != nil {
		return err
	}

	store, err := history.Open(config.HistoryPath(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var entries []*history.Entry
	if historyFlagged {
		entries, err = store.Flagged(cmd.Context(), historyLimit)
	} else {
		entries, err = store.Recent(cmd.Context(), historyLimit)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No recorded analyses")
		return nil
	}

	switch viper.GetString("output_format") {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(entries)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		printHistoryTable(entries)
	}
	return nil
}

func printHistoryTable(entries []*history.Entry) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"When", "Reference", "Candidate", "Offset (ms)", "Match %", "Review"})

	for _, e := range entries {
		when := e.CreatedAt.Local().Format("2006-01-02 15:04")
		if e.Error != "" {
			t.AppendRow(table.Row{when, e.Reference, e.Candidate, "-", "-", "error"})
			continue
		}
		review := ""
		if e.NeedsReview {
			review = "yes"
		}
		t.AppendRow(table.Row{
			when,
			e.Reference,
			e.Candidate,
			fmt.Sprintf("%.2f", e.OffsetMs),
			fmt.Sprintf("%.2f", e.MatchConfidence),
			review,
		})
	}

	fmt.Println(t.Render())
}
