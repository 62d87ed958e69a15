package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/dubsync/configs"
	"github.com/RyanBlaney/dubsync/internal/app"
	"github.com/RyanBlaney/dubsync/pkg/fingerprint"
)

var (
	// Fingerprint command flags
	fingerprintCompare   string
	fingerprintAlgorithm string
)

// fingerprintCmd represents the fingerprint command
var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint [flags] <audio-file>",
	Short: "Fingerprint a recording or compare two",
	Long: `Compute the acoustic fingerprint of a recording, or compare the
fingerprints of two recordings.

With fpcalc on PATH the Chromaprint algorithm is used; otherwise a
spectral fallback produces one 32-bit sub-print per STFT frame.
Fingerprints are cached by audio content, so repeated runs against the
same bytes are free.

Examples:
  # Fingerprint a single file
  dubsync fingerprint master.wav

  # Compare a dub against its master
  dubsync fingerprint master.wav --compare dub_de.wav

  # Force the spectral algorithm
  dubsync fingerprint --algorithm spectral master.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runFingerprint,
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().StringVarP(&fingerprintCompare, "compare", "c", "",
		"second recording to compare against")
	fingerprintCmd.Flags().StringVar(&fingerprintAlgorithm, "algorithm", "",
		"fingerprint algorithm (auto, chromaprint, spectral)")
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if fingerprintAlgorithm != "" {
		config.Fingerprint.Algorithm = fingerprintAlgorithm
	}
	if err := configs.ValidateConfig(config); err != nil {
		return err
	}
	logger, err := newCommandLogger(config)
	if err != nil {
		return err
	}

	components, err := app.BuildComponents(config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = components.Close() }()

	if fingerprintCompare != "" {
		return printMatch(components.Fingerprints.Match(cmd.Context(), args[0], fingerprintCompare))
	}

	fp, cached, err := components.Fingerprints.Fingerprint(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("fingerprinting failed: %w", err)
	}

	key, err := fingerprint.ContentKey(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Algorithm:   %s\n", fp.Algorithm)
	fmt.Printf("Sub-prints:  %d\n", len(fp.Hashes))
	fmt.Printf("Content key: %s\n", key)
	fmt.Printf("Cached:      %t\n", cached)
	return nil
}

func printMatch(match *fingerprint.MatchResult) error {
	if !match.Available {
		fmt.Printf("Fingerprints unavailable: %s\n", match.FailureReason)
		fmt.Printf("Score: %.2f%%\n", match.Score)
		return nil
	}

	fmt.Printf("Score:     %.2f%%\n", match.Score)
	fmt.Printf("Identical: %t\n", match.Identical)
	fmt.Printf("Cached:    reference=%t candidate=%t\n", match.RefCached, match.CandidateCached)
	return nil
}
