package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/dubsync/internal/app"
	"github.com/RyanBlaney/dubsync/internal/session"
)

// cacheCmd groups fingerprint cache maintenance commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the fingerprint cache",
	Long: `Inspect and manage the on-disk fingerprint cache and the session
scratch space.

Fingerprints are cached by audio content, so re-analyzing the same
delivery skips the expensive extraction step. The cache only grows;
clear it when masters are superseded or disk use matters.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache and session scratch usage",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop cached fingerprints and leftover session files",
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	config, err := loadCommandConfig()
	if err != nil {
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

	sessions, err := session.NewStore(config.SessionRoot(), logger)
	if err != nil {
		return err
	}
	leftovers, err := os.ReadDir(sessions.Root())
	if err != nil {
		return err
	}

	fmt.Printf("Fingerprint cache: %s\n", components.Fingerprints.CachePath())
	fmt.Printf("  cached prints:   %d\n", components.Fingerprints.CacheLen())
	fmt.Printf("Session scratch:   %s\n", sessions.Root())
	fmt.Printf("  leftover dirs:   %d\n", len(leftovers))

	if components.History != nil {
		total, flagged, err := components.History.Counts(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("History database:  %s\n", components.History.Path())
		fmt.Printf("  analyses:        %d (%d flagged)\n", total, flagged)
	}

	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	config, err := loadCommandConfig()
	if err != nil {
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

	prints, err := components.Fingerprints.ClearCache()
	if err != nil {
		return fmt.Errorf("failed to clear fingerprint cache: %w", err)
	}

	sessions, err := session.NewStore(config.SessionRoot(), logger)
	if err != nil {
		return err
	}
	removed, err := sessions.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear session scratch: %w", err)
	}

	fmt.Printf("Cleared %d cached fingerprints and %d session directories\n", prints, removed)
	return nil
}
