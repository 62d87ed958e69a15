package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/dubsync/internal/app"
)

var driftSkipFingerprint bool

// driftCmd represents the drift-test command
var driftCmd = &cobra.Command{
	Use:   "drift-test <reference> <candidate>",
	Short: "Measure drift for a single reference/candidate pair",
	Long: `Run the full analysis pipeline for exactly one pair and print the
raw numbers.

This is the quickest way to sanity-check a suspicious delivery without
composing a manifest or a batch: decode, trim, correlate, fingerprint,
classify, print.

Examples:
  # Check one dub against its master
  dubsync drift-test master_en.wav dub_de.wav

  # Drift only, skip the fingerprint step
  dubsync drift-test --skip-fingerprint master.wav dub.wav`,
	Args: cobra.ExactArgs(2),
	RunE: runDriftTest,
}

func init() {
	rootCmd.AddCommand(driftCmd)

	driftCmd.Flags().BoolVar(&driftSkipFingerprint, "skip-fingerprint", false,
		"skip content fingerprinting, measure drift only")
}

func runDriftTest(cmd *cobra.Command, args []string) error {
	config, err := loadCommandConfig()
	if err != nil {
		return err
	}
	if driftSkipFingerprint {
		config.Analysis.SkipFingerprint = true
	}
	config.Analysis.RenderVisuals = false

	logger, err := newCommandLogger(config)
	if err != nil {
		return err
	}

	components, err := app.BuildComponents(config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = components.Close() }()

	result, err := components.Engine.AnalyzeDrift(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("reference preparation failed: %w", err)
	}
	if result.Error != "" {
		return fmt.Errorf("candidate analysis failed: %s", result.Error)
	}

	fmt.Printf("Candidate:   %s\n", result.Filename)
	fmt.Printf("Offset:      %.2f ms (%d frames)\n", result.OffsetMs, result.LagFrames)
	if config.Analysis.SkipFingerprint {
		fmt.Printf("Match:       skipped\n")
	} else if result.FingerprintAvailable {
		fmt.Printf("Match:       %.2f%%\n", result.MatchConfidence)
	} else {
		fmt.Printf("Match:       unavailable (scored 0)\n")
	}
	if result.NeedsReview {
		fmt.Printf("Review:      yes\n")
		for _, issue := range result.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	} else {
		fmt.Printf("Review:      no\n")
	}
	return nil
}
