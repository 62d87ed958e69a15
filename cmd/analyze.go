package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/dubsync/internal/app"
)

var (
	// Analyze command flags
	analyzeReference       string
	analyzeManifest        string
	analyzeOutputFile      string
	analyzeMaxConcurrent   int
	analyzeQuiet           bool
	analyzeSkipFingerprint bool
	analyzeVisuals         bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] [comparison-files...]",
	Short: "Compare dubbed recordings against a reference master",
	Long: `Analyze one or more dubbed recordings against a reference master.

Each comparison is decoded to a common analysis rate, silence-trimmed,
and cross-correlated against the reference to measure the playback
offset in milliseconds, then checked for content integrity with an
acoustic fingerprint. A failing comparison never aborts the batch; its
error lands in the report next to its siblings' results.

Examples:
  # Compare two dubs against a master
  dubsync analyze --reference master_en.wav dub_de.wav dub_fr.wav

  # Run a batch described by a manifest
  dubsync analyze --manifest episodes/ep01.yaml

  # Write a JSON report to a file
  dubsync analyze -r master.wav dub.wav -o json --output-file report.json

  # Quick drift-only pass without fingerprinting
  dubsync analyze -r master.wav --skip-fingerprint dub.wav

  # Embed waveform comparison renderings in the report
  dubsync analyze -r master.wav --visuals -o json dub.wav`,
	Args: func(cmd *cobra.Command, args []string) error {
		if analyzeReference == "" && analyzeManifest == "" {
			return fmt.Errorf("requires --reference or --manifest")
		}
		if len(args) == 0 && analyzeManifest == "" {
			return fmt.Errorf("requires at least one comparison file or --manifest")
		}
		return nil
	},
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeReference, "reference", "r", "",
		"reference master recording")
	analyzeCmd.Flags().StringVarP(&analyzeManifest, "manifest", "m", "",
		"manifest listing reference and comparisons (yaml or json)")
	analyzeCmd.Flags().StringVar(&analyzeOutputFile, "output-file", "",
		"write the report to a file instead of stdout")
	analyzeCmd.Flags().IntVar(&analyzeMaxConcurrent, "max-concurrent", 0,
		"comparisons analyzed in parallel (0=config default)")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false,
		"suppress log output, print the report only")
	analyzeCmd.Flags().BoolVar(&analyzeSkipFingerprint, "skip-fingerprint", false,
		"skip content fingerprinting, measure drift only")
	analyzeCmd.Flags().BoolVar(&analyzeVisuals, "visuals", false,
		"embed waveform comparison renderings in the report")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	appCtx := &app.Context{
		ConfigFile:      configFile,
		ManifestFile:    analyzeManifest,
		ReferencePath:   analyzeReference,
		CandidatePaths:  args,
		OutputFile:      analyzeOutputFile,
		OutputFormat:    viper.GetString("output_format"),
		MaxConcurrent:   analyzeMaxConcurrent,
		Verbose:         viper.GetBool("verbose"),
		Quiet:           analyzeQuiet,
		SkipFingerprint: analyzeSkipFingerprint,
		RenderVisuals:   analyzeVisuals,
	}

	analyzer, err := app.NewAnalyzerApp(appCtx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return analyzer.Run(ctx)
}
