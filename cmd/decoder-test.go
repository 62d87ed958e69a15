package cmd

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/dubsync/pkg/audio"
)

var (
	// Decoder test command flags
	decoderTimeout      time.Duration
	decoderSampleRate   int
	decoderMaxDuration  time.Duration
	decoderValidateOnly bool
)

// decoderCmd represents the decoder-test command
var decoderCmd = &cobra.Command{
	Use:   "decoder-test [audio-file]",
	Short: "Check the decode pipeline against a local file",
	Long: `Run a recording through the analysis front half and report each stage.

The file is decoded through ffmpeg to the mono analysis rate, silence
is trimmed from both ends, and the RMS envelope is extracted. Use this
to confirm ffmpeg is set up correctly and to see what the drift
estimator will actually work with for a given delivery.

Examples:
  # Check that ffmpeg and ffprobe are available
  dubsync decoder-test --validate-only

  # Inspect the decode pipeline for one file
  dubsync decoder-test dub_de.wav

  # Decode at a custom rate with a tight cap
  dubsync decoder-test --sample-rate 44100 --max-duration 10s dub.flac`,
	Args: func(cmd *cobra.Command, args []string) error {
		if decoderValidateOnly {
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("requires exactly one audio file")
		}
		return nil
	},
	RunE: runDecoderTest,
}

func init() {
	rootCmd.AddCommand(decoderCmd)

	decoderCmd.Flags().DurationVar(&decoderTimeout, "timeout", 30*time.Second,
		"operation timeout")
	decoderCmd.Flags().IntVar(&decoderSampleRate, "sample-rate", 0,
		"target sample rate (0=config default)")
	decoderCmd.Flags().DurationVar(&decoderMaxDuration, "max-duration", 0,
		"maximum decode duration (0=config default)")
	decoderCmd.Flags().BoolVar(&decoderValidateOnly, "validate-only", false,
		"only check that ffmpeg and ffprobe are available")
}

func runDecoderTest(cmd *cobra.Command, args []string) error {
	config, err := loadCommandConfig()
	if err != nil {
		return err
	}
	if decoderSampleRate > 0 {
		config.Audio.SampleRate = decoderSampleRate
	}
	if decoderMaxDuration > 0 {
		config.Audio.MaxDuration = decoderMaxDuration
	}

	ffmpegPath, err := exec.LookPath(config.Audio.FFmpegPath)
	if err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", config.Audio.FFmpegPath, err)
	}
	fmt.Printf("ffmpeg:  %s\n", ffmpegPath)

	ffprobePath, probeErr := exec.LookPath(config.Audio.FFprobePath)
	if probeErr != nil {
		fmt.Printf("ffprobe: not found (%v), container probing disabled\n", probeErr)
	} else {
		fmt.Printf("ffprobe: %s\n", ffprobePath)
	}

	if decoderValidateOnly {
		return nil
	}
	path := args[0]

	logger, err := newCommandLogger(config)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), decoderTimeout)
	defer cancel()

	if probeErr == nil {
		info, err := audio.NewProber(config.Audio.FFprobePath).Probe(ctx, path)
		if err != nil {
			fmt.Printf("probe failed: %v\n", err)
		} else {
			fmt.Printf("Container: %s (%s), %d Hz, %d ch, %.2fs, %d bit/s\n",
				info.Container, info.Codec, info.SampleRate, info.Channels,
				info.Duration, info.BitRate)
		}
	}

	decoder := audio.NewFFmpegDecoder(&audio.DecoderConfig{
		SampleRate:  config.Audio.SampleRate,
		MaxDuration: config.Audio.MaxDuration,
		FFmpegPath:  config.Audio.FFmpegPath,
		Logger:      logger,
	})

	started := time.Now()
	buf, err := decoder.Decode(ctx, path)
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	fmt.Printf("Decoded:   %d samples at %d Hz (%v) in %v\n",
		len(buf.Samples), buf.SampleRate, buf.Duration().Round(time.Millisecond),
		time.Since(started).Round(time.Millisecond))

	trimmer := audio.NewSilenceTrimmer(config.Audio.HopLength, config.Audio.TrimTopDB)
	trimmed := trimmer.Trim(buf)
	fmt.Printf("Trimmed:   %d samples (%v)\n",
		len(trimmed.Samples), trimmed.Duration().Round(time.Millisecond))

	envelope, err := audio.NewEnvelopeExtractor(config.Audio.HopLength).Extract(trimmed)
	if err != nil {
		return fmt.Errorf("envelope extraction failed: %w", err)
	}
	fmt.Printf("Envelope:  %d frames at hop %d\n", envelope.Len(), config.Audio.HopLength)

	return nil
}
