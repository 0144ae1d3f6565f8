// Package progress persists the crawl watermark and decides when an initial run has gone back far enough.
package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ObiAU/noticecrawler/internal/models"
)

const (
	// WatermarkKey stores the id of the newest notice seen by the last run.
	WatermarkKey = "crawled_id"
	// DefaultLookbackDays bounds how far back an initial run walks.
	DefaultLookbackDays = 365
)

const dateLayout = "2006-01-02"

// feedLayouts are tried when the date portion is not an ISO date.
var feedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

type Tracker struct {
	kv           KV
	lookbackDays int
	now          func() time.Time
}

func NewTracker(kv KV, lookbackDays int, now func() time.Time) *Tracker {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{kv: kv, lookbackDays: lookbackDays, now: now}
}

// LoadWatermark returns the persisted watermark; ok is false when none exists.
func (t *Tracker) LoadWatermark(ctx context.Context) (string, bool, error) {
	id, ok, err := t.kv.Get(ctx, WatermarkKey)
	if err != nil {
		return "", false, fmt.Errorf("load watermark: %w", err)
	}
	return id, ok, nil
}

func (t *Tracker) SaveWatermark(ctx context.Context, id string) error {
	if err := t.kv.Set(ctx, WatermarkKey, id); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	return nil
}

// IsInitial reports whether no run has completed yet.
func (t *Tracker) IsInitial(ctx context.Context) (bool, error) {
	_, ok, err := t.LoadWatermark(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.kv.Delete(ctx, WatermarkKey); err != nil {
		return fmt.Errorf("reset watermark: %w", err)
	}
	return nil
}

// Cutoff is the oldest calendar day an initial run still collects.
func (t *Tracker) Cutoff() time.Time {
	now := t.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -t.lookbackDays)
}

// BeyondLookback reports whether a notice was published strictly before the cutoff.
// Dates that cannot be parsed never stop a run.
func (t *Tracker) BeyondLookback(publishedAt string) bool {
	day, ok := publishedDay(publishedAt)
	if !ok {
		return false
	}
	return day.Before(t.Cutoff())
}

func publishedDay(publishedAt string) (time.Time, bool) {
	if d, err := time.Parse(dateLayout, models.DatePart(publishedAt)); err == nil {
		return d, true
	}

	raw := strings.TrimSpace(publishedAt)
	for _, layout := range feedLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
