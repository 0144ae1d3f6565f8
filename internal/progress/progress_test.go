package progress

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 9, 16, 14, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func TestFileKV(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	kv := NewFileKV(dir)

	_, ok, err := kv.Get(ctx, "crawled_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "crawled_id", "231045"))
	value, ok, err := kv.Get(ctx, "crawled_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "231045", value)

	data, err := os.ReadFile(filepath.Join(dir, "crawled_id.txt"))
	require.NoError(t, err)
	assert.Equal(t, "231045", string(data))

	require.NoError(t, kv.Delete(ctx, "crawled_id"))
	require.NoError(t, kv.Delete(ctx, "crawled_id"))
	_, ok, err = kv.Get(ctx, "crawled_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileKV_BlankFileIsAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crawled_id.txt"), []byte(" \n"), 0o644))

	_, ok, err := NewFileKV(dir).Get(context.Background(), "crawled_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTracker_Watermark(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewFileKV(t.TempDir()), 0, fixedNow)

	initial, err := tracker.IsInitial(ctx)
	require.NoError(t, err)
	assert.True(t, initial)

	require.NoError(t, tracker.SaveWatermark(ctx, "5"))
	id, ok, err := tracker.LoadWatermark(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "5", id)

	initial, err = tracker.IsInitial(ctx)
	require.NoError(t, err)
	assert.False(t, initial)

	require.NoError(t, tracker.Reset(ctx))
	initial, err = tracker.IsInitial(ctx)
	require.NoError(t, err)
	assert.True(t, initial)
}

func TestTracker_BeyondLookback(t *testing.T) {
	tracker := NewTracker(NewFileKV(t.TempDir()), DefaultLookbackDays, fixedNow)

	daysAgo := func(n int) string {
		return now.AddDate(0, 0, -n).Format("2006-01-02") + " 09:00:00"
	}

	assert.True(t, tracker.BeyondLookback(daysAgo(366)))
	assert.False(t, tracker.BeyondLookback(daysAgo(365)))
	assert.False(t, tracker.BeyondLookback(daysAgo(364)))
	assert.False(t, tracker.BeyondLookback("2025-09-16"))

	assert.True(t, tracker.BeyondLookback("Mon, 02 Sep 2024 10:00:00 +0900"))
	assert.False(t, tracker.BeyondLookback("Mon, 01 Sep 2025 10:00:00 +0900"))

	assert.False(t, tracker.BeyondLookback("No Date"))
	assert.False(t, tracker.BeyondLookback(""))
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "crawl.lock")

	first, err := Lock(path)
	require.NoError(t, err)

	_, err = Lock(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Unlock())

	again, err := Lock(path)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}
