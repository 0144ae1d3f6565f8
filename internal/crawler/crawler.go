// Package crawler walks the notice feed page by page and turns every new entry into a stored notice.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ObiAU/noticecrawler/internal/logger"
	"github.com/ObiAU/noticecrawler/internal/models"
	"github.com/ObiAU/noticecrawler/internal/pace"
)

// DefaultMinTextLength is the body length below which OCR is also attempted.
const DefaultMinTextLength = 250

type FeedReader interface {
	FetchPage(ctx context.Context, page int) ([]models.FeedItem, error)
}

type ContentExtractor interface {
	Extract(ctx context.Context, link string) (models.Content, error)
}

type OCR interface {
	ExtractTextFromImages(ctx context.Context, urls []string) (text string, ok bool)
}

type PeriodInferencer interface {
	InferPeriod(ctx context.Context, body string) models.Period
}

type Store interface {
	Save(ctx context.Context, n models.Notice) (added bool, err error)
}

type Progress interface {
	LoadWatermark(ctx context.Context) (string, bool, error)
	SaveWatermark(ctx context.Context, id string) error
	BeyondLookback(publishedAt string) bool
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Feed      FeedReader
	Content   ContentExtractor
	OCR       OCR
	Period    PeriodInferencer
	Store     Store
	Progress  Progress
	ExtractID func(link string) (string, error)
	Normalize func(category string) string
	Resolve   func(ref string) string
}

type Options struct {
	MinTextLength int
	// AIDelay is waited before every inference call.
	AIDelay time.Duration
	Sleep   pace.Sleeper
}

type RunOptions struct {
	Initial  bool
	MaxPages int
}

// HaltReason says why a run stopped walking the feed.
type HaltReason string

const (
	HaltPageBudget HaltReason = "page budget"
	HaltEndOfFeed  HaltReason = "end of feed"
	HaltLookback   HaltReason = "lookback"
	HaltWatermark  HaltReason = "watermark"
)

type Summary struct {
	Initial    bool
	Pages      int
	Saved      int
	Duplicates int
	Skipped    int
	OCRRuns    int
	FeedErrors int
	HaltReason HaltReason
	Watermark  string
}

type Controller struct {
	deps Deps
	opts Options
	log  logger.Logger
}

func New(deps Deps, opts Options, log logger.Logger) *Controller {
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = DefaultMinTextLength
	}
	if opts.Sleep == nil {
		opts.Sleep = pace.Sleep
	}
	if deps.Normalize == nil {
		deps.Normalize = func(c string) string { return c }
	}
	if deps.Resolve == nil {
		deps.Resolve = func(ref string) string { return ref }
	}

	return &Controller{deps: deps, opts: opts, log: log}
}

// run is the state of one crawl.
type run struct {
	RunOptions
	lastSeen  string
	hasLast   bool
	candidate string
	summary   Summary
}

var errHalt = errors.New("halt")

// Run walks feed pages 1..MaxPages. The first notice processed becomes the new
// watermark; it is persisted when the run ends normally or halts on the lookback
// boundary or the previous watermark. A cancelled context returns its error and
// leaves the stored watermark untouched.
func (c *Controller) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	r := &run{RunOptions: opts}
	r.summary.Initial = opts.Initial
	r.summary.HaltReason = HaltPageBudget

	lastSeen, ok, err := c.deps.Progress.LoadWatermark(ctx)
	if err != nil {
		return r.summary, fmt.Errorf("load watermark: %w", err)
	}
	r.lastSeen, r.hasLast = lastSeen, ok

	c.log.Info("crawl started",
		zap.Bool("initial", opts.Initial),
		zap.Int("max_pages", opts.MaxPages),
		zap.String("last_seen_id", lastSeen),
	)

	if err := c.walk(ctx, r); err != nil && !errors.Is(err, errHalt) {
		return r.summary, err
	}

	if r.candidate != "" {
		if err := c.deps.Progress.SaveWatermark(ctx, r.candidate); err != nil {
			return r.summary, err
		}
		r.summary.Watermark = r.candidate
	}

	c.log.Info("crawl finished",
		zap.Int("pages", r.summary.Pages),
		zap.Int("saved", r.summary.Saved),
		zap.Int("ocr_runs", r.summary.OCRRuns),
		zap.String("halt_reason", string(r.summary.HaltReason)),
		zap.String("watermark", r.summary.Watermark),
	)

	return r.summary, nil
}

func (c *Controller) walk(ctx context.Context, r *run) error {
	for page := 1; page <= r.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		items, err := c.deps.Feed.FetchPage(ctx, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.summary.FeedErrors++
			c.log.Error("feed page failed", zap.Int("page", page), zap.Error(err))
			continue
		}

		if len(items) == 0 {
			r.summary.HaltReason = HaltEndOfFeed
			return nil
		}
		r.summary.Pages++

		for _, item := range items {
			if err := c.processItem(ctx, r, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Controller) processItem(ctx context.Context, r *run, item models.FeedItem) error {
	id, err := c.deps.ExtractID(item.Link)
	if err != nil {
		r.summary.Skipped++
		c.log.Warn("skipping item without notice id", zap.String("title", item.Title), zap.Error(err))
		return nil
	}

	if r.Initial && c.deps.Progress.BeyondLookback(item.PublishedAt) {
		r.summary.HaltReason = HaltLookback
		c.log.Info("reached lookback boundary", zap.String("id", id), zap.String("published_at", item.PublishedAt))
		return errHalt
	}

	if r.hasLast && id == r.lastSeen {
		r.summary.HaltReason = HaltWatermark
		c.log.Info("reached last seen notice", zap.String("id", id))
		return errHalt
	}

	notice := models.Notice{
		ID:          id,
		Title:       item.Title,
		Link:        item.Link,
		PublishedAt: item.PublishedAt,
		Category:    c.deps.Normalize(item.Category),
	}
	if item.Link != models.PlaceholderLink {
		notice.Link = c.deps.Resolve(item.Link)
	}

	content, err := c.deps.Content.Extract(ctx, notice.Link)
	if err != nil {
		c.log.Warn("notice page unavailable", zap.String("id", id), zap.Error(err))
		content = models.Content{}
	}
	notice.ImageURLs = content.Images
	notice.Attachments = content.Attachments
	notice.Body = c.withOCR(ctx, r, id, content)

	if notice.Body != "" {
		if err := c.opts.Sleep(ctx, c.opts.AIDelay); err != nil {
			return err
		}
		period := c.deps.Period.InferPeriod(ctx, notice.Body)
		notice.ApplicationStart, notice.ApplicationEnd = period.Start, period.End
	}

	if notice.ApplicationEnd != "" && notice.ApplicationStart == "" {
		notice.ApplicationStart = publishDate(item.PublishedAt)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	added, err := c.deps.Store.Save(ctx, notice)
	if err != nil {
		return fmt.Errorf("store notice %s: %w", id, err)
	}
	if added {
		r.summary.Saved++
	} else {
		r.summary.Duplicates++
		c.log.Debug("duplicate notice skipped", zap.String("id", id))
	}

	if r.candidate == "" {
		r.candidate = id
	}
	return nil
}

// withOCR returns the body after the OCR fallback policy: an empty body is replaced
// by whatever OCR yields; a short body only by a strictly longer OCR text.
func (c *Controller) withOCR(ctx context.Context, r *run, id string, content models.Content) string {
	body := content.Body
	if len(content.Images) == 0 {
		return body
	}

	bodyLen := utf8.RuneCountInString(body)
	if body != "" && bodyLen >= c.opts.MinTextLength {
		return body
	}

	r.summary.OCRRuns++
	text, ok := c.deps.OCR.ExtractTextFromImages(ctx, content.Images)
	if !ok {
		c.log.Warn("ocr unavailable, keeping page body", zap.String("id", id), zap.Int("images", len(content.Images)))
		return body
	}

	if body == "" || utf8.RuneCountInString(text) > bodyLen {
		return text
	}
	return body
}

func publishDate(publishedAt string) string {
	day := models.DatePart(publishedAt)
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return ""
	}
	return day
}
