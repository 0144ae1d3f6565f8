package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/noticecrawler/internal/crawler"
	"github.com/ObiAU/noticecrawler/internal/logger"
)

type botServer struct {
	mu     sync.Mutex
	calls  []string
	bodies []string
}

func (s *botServer) handler(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.calls = append(s.calls, method)
	s.bodies = append(s.bodies, string(body))
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"crawler","username":"crawler_bot"}}`))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1700000000,"chat":{"id":42,"type":"private"}}}`))
	}
}

func newTestBot(t *testing.T) (*Bot, *botServer) {
	t.Helper()
	srv := &botServer{}
	server := httptest.NewServer(http.HandlerFunc(srv.handler))
	t.Cleanup(server.Close)

	bot, err := NewBot("TOKEN", 42, server.URL+"/bot%s/%s", logger.NewNop())
	require.NoError(t, err)
	return bot, srv
}

func TestNewBot_NotConfigured(t *testing.T) {
	_, err := NewBot("", 42, "", logger.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewBot("TOKEN", 0, "", logger.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDeliver_SendsDocument(t *testing.T) {
	bot, srv := newTestBot(t)

	path := filepath.Join(t.TempDir(), "notice_db.txt")
	require.NoError(t, os.WriteFile(path, []byte("ID: 1\n"), 0o644))

	summary := crawler.Summary{Saved: 3, OCRRuns: 1, HaltReason: crawler.HaltWatermark, Watermark: "231045"}
	require.NoError(t, bot.Deliver(context.Background(), summary, path))

	require.Equal(t, []string{"getMe", "sendDocument"}, srv.calls)
	assert.Contains(t, srv.bodies[1], "notice_db.txt")
	assert.Contains(t, srv.bodies[1], "ID: 1")
	assert.Contains(t, srv.bodies[1], "231045")
}

func TestDeliver_NothingSavedSendsMessage(t *testing.T) {
	bot, srv := newTestBot(t)

	summary := crawler.Summary{HaltReason: crawler.HaltWatermark}
	require.NoError(t, bot.Deliver(context.Background(), summary, "/does/not/matter.txt"))

	require.Equal(t, []string{"getMe", "sendMessage"}, srv.calls)
}

func TestDeliver_CancelledContext(t *testing.T) {
	bot, srv := newTestBot(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, bot.Deliver(ctx, crawler.Summary{Saved: 1}, "x"), context.Canceled)
	assert.Equal(t, []string{"getMe"}, srv.calls)
}

func TestFormatSummary(t *testing.T) {
	text := FormatSummary(crawler.Summary{
		Initial:    true,
		Saved:      12,
		Duplicates: 1,
		OCRRuns:    4,
		Pages:      3,
		HaltReason: crawler.HaltLookback,
		Watermark:  "264213",
	})

	assert.Contains(t, text, "초기 크롤링")
	assert.Contains(t, text, "저장: 12")
	assert.Contains(t, text, "OCR: 4")
	assert.Contains(t, text, "종료 사유: lookback")
	assert.Contains(t, text, "최신 ID: 264213")
	assert.NotContains(t, FormatSummary(crawler.Summary{}), "최신 ID")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "가나다", truncate("가나다", 3))
	assert.Equal(t, "가…", truncate("가나다", 2))
}
