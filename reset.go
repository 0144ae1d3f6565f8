package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ObiAU/noticecrawler/internal/config"
	"github.com/ObiAU/noticecrawler/internal/ocr"
	"github.com/ObiAU/noticecrawler/internal/progress"
	"github.com/ObiAU/noticecrawler/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the store and the watermark so the next crawl is an initial run",
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	lock, err := progress.Lock(filepath.Join(cfg.StateDir, lockName))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	if err := store.Remove(cfg.StorePath); err != nil {
		return err
	}

	tracker := progress.NewTracker(progress.NewFileKV(cfg.StateDir), cfg.LookbackDays, nil)
	if err := tracker.Reset(cmd.Context()); err != nil {
		return err
	}

	leftover := filepath.Join(cfg.OCRWorkDir, ocr.PDFName)
	if err := os.Remove(leftover); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", leftover, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s and the stored watermark\n", cfg.StorePath)
	return nil
}
