package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ObiAU/noticecrawler/internal/ai"
	"github.com/ObiAU/noticecrawler/internal/category"
	"github.com/ObiAU/noticecrawler/internal/config"
	"github.com/ObiAU/noticecrawler/internal/crawler"
	"github.com/ObiAU/noticecrawler/internal/fetch"
	"github.com/ObiAU/noticecrawler/internal/logger"
	"github.com/ObiAU/noticecrawler/internal/ocr"
	"github.com/ObiAU/noticecrawler/internal/period"
	"github.com/ObiAU/noticecrawler/internal/progress"
	"github.com/ObiAU/noticecrawler/internal/sources"
	"github.com/ObiAU/noticecrawler/internal/store"
	"github.com/ObiAU/noticecrawler/internal/telegram"
)

const lockName = "crawl.lock"

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl new notices since the last run",
	Long: "Crawl walks the feed newest-first. Without a stored watermark the run is an initial run and goes " +
		"back one lookback window; otherwise it stops at the last notice seen by the previous run.",
	RunE: runCrawl,
}

var (
	crawlInitial   bool
	crawlDaily     bool
	crawlMaxPages  int
	crawlNoDeliver bool
)

func init() {
	crawlCmd.Flags().BoolVar(&crawlInitial, "initial", false, "Force an initial run (lookback bounded, file store appended)")
	crawlCmd.Flags().BoolVar(&crawlDaily, "daily", false, "Force a daily run (watermark bounded, file store truncated)")
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "Override the page budget for this run")
	crawlCmd.Flags().BoolVar(&crawlNoDeliver, "no-deliver", false, "Skip Telegram delivery")
	crawlCmd.MarkFlagsMutuallyExclusive("initial", "daily")

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lock, err := progress.Lock(filepath.Join(cfg.StateDir, lockName))
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	var (
		st store.Store
		kv progress.KV = progress.NewFileKV(cfg.StateDir)
	)
	if cfg.StoreFormat == store.FormatSQLite {
		db, err := store.OpenSQLite(cfg.StorePath)
		if err != nil {
			return err
		}
		st, kv = db, db
	}

	tracker := progress.NewTracker(kv, cfg.LookbackDays, nil)

	initial, err := resolveInitial(ctx, tracker)
	if err != nil {
		closeStore(st, log)
		return err
	}

	if st == nil {
		st, err = store.Open(cfg.StoreFormat, cfg.StorePath, !initial)
		if err != nil {
			return err
		}
	}

	ctrl, err := newController(cfg, st, tracker, log)
	if err != nil {
		closeStore(st, log)
		return err
	}

	maxPages := cfg.MaxPages
	if initial {
		maxPages = cfg.InitialMaxPages
	}
	if crawlMaxPages > 0 {
		maxPages = crawlMaxPages
	}

	summary, runErr := ctrl.Run(ctx, crawler.RunOptions{Initial: initial, MaxPages: maxPages})
	closeStore(st, log)

	printSummary(cmd.OutOrStdout(), summary, st.Path())

	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	if cfg.TelegramEnabled() && !crawlNoDeliver {
		deliver(ctx, cfg, summary, st.Path(), log)
	}

	return nil
}

func resolveInitial(ctx context.Context, tracker *progress.Tracker) (bool, error) {
	switch {
	case crawlInitial:
		return true, nil
	case crawlDaily:
		return false, nil
	default:
		return tracker.IsInitial(ctx)
	}
}

func newController(cfg *config.Config, st store.Store, tracker *progress.Tracker, log logger.Logger) (*crawler.Controller, error) {
	resolver, err := sources.NewResolver(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(fetch.Options{
		Timeout:       cfg.RequestTimeout,
		UserAgent:     cfg.UserAgent,
		RatePerSecond: cfg.FetchRate,
	})

	llm := ai.NewClient(ai.Options{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.Model,
		OCRModel:    cfg.OCRModel,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})

	engine := ocr.NewEngine(client, llm, ocr.Options{
		WorkDir: cfg.OCRWorkDir,
		Delay:   cfg.OCRDelay,
	}, log.With(zap.String("component", "ocr")))

	deps := crawler.Deps{
		Feed:      sources.NewFeed(client, cfg.RSSURL),
		Content:   sources.NewPageExtractor(client, resolver),
		OCR:       engine,
		Period:    period.NewInferencer(llm, log.With(zap.String("component", "period")), nil),
		Store:     st,
		Progress:  tracker,
		ExtractID: sources.NewIDExtractor(cfg.BoardID).Extract,
		Normalize: category.Normalize,
		Resolve:   resolver.Resolve,
	}

	return crawler.New(deps, crawler.Options{
		MinTextLength: cfg.MinTextLength,
		AIDelay:       cfg.AICallDelay,
	}, log.With(zap.String("component", "crawler"))), nil
}

func deliver(ctx context.Context, cfg *config.Config, summary crawler.Summary, storePath string, log logger.Logger) {
	bot, err := telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, "", log)
	if err != nil {
		log.Warn("telegram delivery unavailable", zap.Error(err))
		return
	}

	if err := bot.Deliver(ctx, summary, storePath); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("telegram delivery failed", zap.Error(err))
	}
}

func closeStore(st store.Store, log logger.Logger) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		log.Error("failed to close store", zap.Error(err))
	}
}

func printSummary(w io.Writer, s crawler.Summary, storePath string) {
	kind := "daily"
	if s.Initial {
		kind = "initial"
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Crawl summary (" + kind + ")")
	t.AppendHeader(table.Row{"Pages", "Saved", "Duplicates", "Skipped", "OCR runs", "Feed errors", "Halt", "Watermark", "Store"})
	t.AppendRow(table.Row{
		s.Pages,
		s.Saved,
		s.Duplicates,
		s.Skipped,
		s.OCRRuns,
		s.FeedErrors,
		string(s.HaltReason),
		s.Watermark,
		storePath,
	})
	t.Render()
}
