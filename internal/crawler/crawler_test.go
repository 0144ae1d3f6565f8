package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/noticecrawler/internal/category"
	"github.com/ObiAU/noticecrawler/internal/logger"
	"github.com/ObiAU/noticecrawler/internal/models"
	"github.com/ObiAU/noticecrawler/internal/sources"
)

type fakeFeed struct {
	pages map[int][]models.FeedItem
	errs  map[int]error
	calls []int
}

func (f *fakeFeed) FetchPage(_ context.Context, page int) ([]models.FeedItem, error) {
	f.calls = append(f.calls, page)
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	return f.pages[page], nil
}

type fakeContent struct {
	byLink map[string]models.Content
	errs   map[string]error
	links  []string
}

func (f *fakeContent) Extract(_ context.Context, link string) (models.Content, error) {
	f.links = append(f.links, link)
	if err := f.errs[link]; err != nil {
		return models.Content{}, err
	}
	return f.byLink[link], nil
}

type fakeOCR struct {
	text  string
	ok    bool
	calls [][]string
}

func (f *fakeOCR) ExtractTextFromImages(_ context.Context, urls []string) (string, bool) {
	f.calls = append(f.calls, urls)
	return f.text, f.ok
}

type fakePeriod struct {
	period models.Period
	bodies []string
}

func (f *fakePeriod) InferPeriod(_ context.Context, body string) models.Period {
	f.bodies = append(f.bodies, body)
	return f.period
}

type fakeStore struct {
	saved []models.Notice
	seen  map[string]bool
	err   error
}

func (f *fakeStore) Save(_ context.Context, n models.Notice) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[n.ID] {
		return false, nil
	}
	f.seen[n.ID] = true
	f.saved = append(f.saved, n)
	return true, nil
}

func (f *fakeStore) ids() []string {
	ids := make([]string, 0, len(f.saved))
	for _, n := range f.saved {
		ids = append(ids, n.ID)
	}
	return ids
}

type fakeProgress struct {
	watermark string
	saved     []string
	cutoff    string
}

func (f *fakeProgress) LoadWatermark(context.Context) (string, bool, error) {
	return f.watermark, f.watermark != "", nil
}

func (f *fakeProgress) SaveWatermark(_ context.Context, id string) error {
	f.saved = append(f.saved, id)
	f.watermark = id
	return nil
}

func (f *fakeProgress) BeyondLookback(publishedAt string) bool {
	return f.cutoff != "" && models.DatePart(publishedAt) < f.cutoff
}

const longBody = "본문"

func item(id, published string) models.FeedItem {
	return models.FeedItem{
		Title:       "공지 " + id,
		Link:        "/bbs/hansung/143/" + id + "/artclView.do",
		PublishedAt: published,
		Category:    "진로",
	}
}

func abs(id string) string {
	return "https://www.hansung.ac.kr/bbs/hansung/143/" + id + "/artclView.do"
}

type harness struct {
	feed     *fakeFeed
	content  *fakeContent
	ocr      *fakeOCR
	period   *fakePeriod
	store    *fakeStore
	progress *fakeProgress
	sleeps   []time.Duration
}

func newHarness() *harness {
	return &harness{
		feed:     &fakeFeed{pages: map[int][]models.FeedItem{}, errs: map[int]error{}},
		content:  &fakeContent{byLink: map[string]models.Content{}, errs: map[string]error{}},
		ocr:      &fakeOCR{},
		period:   &fakePeriod{},
		store:    &fakeStore{},
		progress: &fakeProgress{},
	}
}

func (h *harness) controller(t *testing.T) *Controller {
	t.Helper()
	resolver, err := sources.NewResolver("https://www.hansung.ac.kr")
	require.NoError(t, err)

	return New(Deps{
		Feed:      h.feed,
		Content:   h.content,
		OCR:       h.ocr,
		Period:    h.period,
		Store:     h.store,
		Progress:  h.progress,
		ExtractID: sources.NewIDExtractor("143").Extract,
		Normalize: category.Normalize,
		Resolve:   resolver.Resolve,
	}, Options{
		MinTextLength: 10,
		AIDelay:       3 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	}, logger.NewNop())
}

func (h *harness) withBody(id, body string, images ...string) {
	h.content.byLink[abs(id)] = models.Content{Body: body, Images: images, Attachments: []string{}}
}

func TestRun_StopsAtWatermarkAndPersistsFirstID(t *testing.T) {
	h := newHarness()
	h.progress.watermark = "2"
	h.feed.pages[1] = []models.FeedItem{item("5", "2025-09-05"), item("4", "2025-09-04")}
	h.feed.pages[2] = []models.FeedItem{item("3", "2025-09-03"), item("2", "2025-09-02"), item("1", "2025-09-01")}
	for _, id := range []string{"5", "4", "3"} {
		h.withBody(id, longBody+id)
	}

	summary, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{"5", "4", "3"}, h.store.ids())
	assert.Equal(t, []string{"5"}, h.progress.saved)
	assert.Equal(t, HaltWatermark, summary.HaltReason)
	assert.Equal(t, "5", summary.Watermark)
	assert.Equal(t, 3, summary.Saved)
	assert.Equal(t, []int{1, 2}, h.feed.calls)
}

func TestRun_LookbackOnlyOnInitialRuns(t *testing.T) {
	newFeed := func() *harness {
		h := newHarness()
		h.progress.cutoff = "2024-09-16"
		h.feed.pages[1] = []models.FeedItem{
			item("3", "2024-09-17 10:00:00"),
			item("2", "2024-09-15 10:00:00"),
			item("1", "2024-09-14 10:00:00"),
		}
		return h
	}

	h := newFeed()
	summary, err := h.controller(t).Run(context.Background(), RunOptions{Initial: true, MaxPages: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, h.store.ids())
	assert.Equal(t, HaltLookback, summary.HaltReason)
	assert.Equal(t, []string{"3"}, h.progress.saved)

	h = newFeed()
	summary, err = h.controller(t).Run(context.Background(), RunOptions{MaxPages: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, h.store.ids())
	assert.Equal(t, HaltPageBudget, summary.HaltReason)
}

func TestRun_EmptyPageEndsFeed(t *testing.T) {
	h := newHarness()
	h.feed.pages[1] = []models.FeedItem{item("9", "2025-09-09")}

	summary, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 10})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, h.feed.calls)
	assert.Equal(t, HaltEndOfFeed, summary.HaltReason)
	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, []string{"9"}, h.progress.saved)
}

func TestRun_NothingProcessedKeepsWatermark(t *testing.T) {
	h := newHarness()
	h.progress.watermark = "9"
	h.feed.pages[1] = []models.FeedItem{item("9", "2025-09-09")}

	summary, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 1})
	require.NoError(t, err)

	assert.Empty(t, h.store.saved)
	assert.Empty(t, h.progress.saved)
	assert.Empty(t, summary.Watermark)
}

func TestRun_FeedErrorMovesToNextPage(t *testing.T) {
	h := newHarness()
	h.feed.errs[1] = errors.New("parse feed: unexpected EOF")
	h.feed.pages[2] = []models.FeedItem{item("7", "2025-09-07")}

	summary, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FeedErrors)
	assert.Equal(t, []string{"7"}, h.store.ids())
}

func TestRun_ItemWithoutIDIsSkipped(t *testing.T) {
	h := newHarness()
	bad := models.FeedItem{Title: "외부 링크", Link: "https://example.com/event", PublishedAt: "2025-09-08", Category: "한성"}
	h.feed.pages[1] = []models.FeedItem{bad, item("6", "2025-09-06")}

	summary, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"6"}, h.store.ids())
	assert.Equal(t, []string{"6"}, h.progress.saved)
}

func TestRun_NormalizesAndResolves(t *testing.T) {
	h := newHarness()
	h.feed.pages[1] = []models.FeedItem{item("8", "2025-09-08 11:00:00")}

	_, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 1})
	require.NoError(t, err)

	require.Len(t, h.store.saved, 1)
	got := h.store.saved[0]
	assert.Equal(t, category.Career, got.Category)
	assert.Equal(t, abs("8"), got.Link)
	assert.Equal(t, []string{abs("8")}, h.content.links)
}

func TestRun_FetchFailureDegradesToEmptyContent(t *testing.T) {
	h := newHarness()
	h.feed.pages[1] = []models.FeedItem{item("4", "2025-09-04")}
	h.content.errs[abs("4")] = errors.New("timeout")

	summary, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 1})
	require.NoError(t, err)

	require.Len(t, h.store.saved, 1)
	assert.Empty(t, h.store.saved[0].Body)
	assert.Empty(t, h.period.bodies)
	assert.Empty(t, h.sleeps)
	assert.Zero(t, summary.OCRRuns)
}

func TestRun_OCRPolicy(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		images   []string
		ocrText  string
		ocrOK    bool
		wantBody string
		wantOCR  bool
	}{
		{"empty body uses ocr", "", []string{"a.png"}, "이미지 본문", true, "이미지 본문", true},
		{"empty body uses empty ocr verbatim", "", []string{"a.png"}, "", true, "", true},
		{"empty body keeps empty when ocr fails", "", []string{"a.png"}, "", false, "", true},
		{"short body replaced by longer ocr", "짧음", []string{"a.png"}, "훨씬 더 긴 텍스트", true, "훨씬 더 긴 텍스트", true},
		{"short body kept when ocr not longer", "짧은본문", []string{"a.png"}, "네글자", true, "짧은본문", true},
		{"short body kept when ocr equal length", "짧은본문", []string{"a.png"}, "같은길이", true, "짧은본문", true},
		{"short body kept when ocr fails", "짧음", []string{"a.png"}, "", false, "짧음", true},
		{"long body skips ocr", strings.Repeat("가", 10), []string{"a.png"}, "x", true, strings.Repeat("가", 10), false},
		{"no images skips ocr", "", nil, "x", true, "", false},
		{"short body without images skips ocr", "짧음", nil, "x", true, "짧음", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.feed.pages[1] = []models.FeedItem{item("1", "2025-09-01")}
			h.withBody("1", tt.body, tt.images...)
			h.ocr.text, h.ocr.ok = tt.ocrText, tt.ocrOK

			summary, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 1})
			require.NoError(t, err)

			require.Len(t, h.store.saved, 1)
			assert.Equal(t, tt.wantBody, h.store.saved[0].Body)
			if tt.wantOCR {
				assert.Equal(t, 1, summary.OCRRuns)
				assert.Equal(t, [][]string{tt.images}, h.ocr.calls)
			} else {
				assert.Zero(t, summary.OCRRuns)
				assert.Empty(t, h.ocr.calls)
			}
		})
	}
}

func TestRun_InferenceAndDateDefaulting(t *testing.T) {
	h := newHarness()
	h.feed.pages[1] = []models.FeedItem{item("1", "2025-09-01 09:30:00")}
	h.withBody("1", "접수 마감 10월 5일")
	h.period.period = models.Period{End: "2025-10-05"}

	_, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 1})
	require.NoError(t, err)

	require.Len(t, h.store.saved, 1)
	assert.Equal(t, "2025-09-01", h.store.saved[0].ApplicationStart)
	assert.Equal(t, "2025-10-05", h.store.saved[0].ApplicationEnd)
	assert.Equal(t, []string{"접수 마감 10월 5일"}, h.period.bodies)
	assert.Equal(t, []time.Duration{3 * time.Second}, h.sleeps)
}

func TestRun_DateDefaultingNeedsParsableDate(t *testing.T) {
	h := newHarness()
	h.feed.pages[1] = []models.FeedItem{item("1", models.PlaceholderDate)}
	h.withBody("1", "접수 마감 10월 5일")
	h.period.period = models.Period{End: "2025-10-05"}

	_, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 1})
	require.NoError(t, err)

	assert.Empty(t, h.store.saved[0].ApplicationStart)
	assert.Equal(t, "2025-10-05", h.store.saved[0].ApplicationEnd)
}

func TestRun_DuplicatesAreCountedAndDoNotStop(t *testing.T) {
	h := newHarness()
	h.feed.pages[1] = []models.FeedItem{item("3", "2025-09-03"), item("2", "2025-09-02")}
	h.feed.pages[2] = []models.FeedItem{item("2", "2025-09-02"), item("1", "2025-09-01")}

	summary, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Saved)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, []string{"3", "2", "1"}, h.store.ids())
}

func TestRun_StoreErrorAbortsWithoutWatermark(t *testing.T) {
	h := newHarness()
	h.feed.pages[1] = []models.FeedItem{item("1", "2025-09-01")}
	h.store.err = errors.New("disk full")

	_, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 1})
	require.Error(t, err)
	assert.Empty(t, h.progress.saved)
}

func TestRun_CancelledRunDoesNotPersist(t *testing.T) {
	h := newHarness()
	h.feed.pages[1] = []models.FeedItem{item("2", "2025-09-02"), item("1", "2025-09-01")}
	h.withBody("2", "본문 2")
	h.withBody("1", "본문 1")

	ctx, cancel := context.WithCancel(context.Background())
	c := h.controller(t)
	c.opts.Sleep = func(ctx context.Context, _ time.Duration) error {
		if len(h.store.saved) == 1 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	_, err := c.Run(ctx, RunOptions{MaxPages: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"2"}, h.store.ids())
	assert.Empty(t, h.progress.saved)
}

func TestRun_WalksPagesInOrder(t *testing.T) {
	h := newHarness()
	for page := 1; page <= 3; page++ {
		id := fmt.Sprint(10 - page)
		h.feed.pages[page] = []models.FeedItem{item(id, "2025-09-01")}
	}

	summary, err := h.controller(t).Run(context.Background(), RunOptions{MaxPages: 2})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, h.feed.calls)
	assert.Equal(t, []string{"9", "8"}, h.store.ids())
	assert.Equal(t, "9", summary.Watermark)
}
