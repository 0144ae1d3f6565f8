package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ObiAU/noticecrawler/internal/crawler"
	"github.com/ObiAU/noticecrawler/internal/logger"
)

// maxCaption is Telegram's caption limit in characters.
const maxCaption = 1024

var ErrNotConfigured = errors.New("telegram delivery not configured")

type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    logger.Logger
}

// NewBot connects to the Bot API. An empty endpoint uses the public API.
func NewBot(token string, chatID int64, endpoint string, log logger.Logger) (*Bot, error) {
	if token == "" || chatID == 0 {
		return nil, ErrNotConfigured
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Bot{api: api, chatID: chatID, log: log}, nil
}

// Deliver sends the run report. When the run saved anything the store file goes
// along as a document with the report as its caption.
func (b *Bot) Deliver(ctx context.Context, summary crawler.Summary, storePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	report := FormatSummary(summary)

	if summary.Saved == 0 || storePath == "" {
		return b.sendMessage(report)
	}

	doc := tgbotapi.NewDocument(b.chatID, tgbotapi.FilePath(storePath))
	doc.Caption = truncate(report, maxCaption)

	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send store document: %w", err)
	}

	b.log.Info("run delivered", zap.Int64("chat_id", b.chatID), zap.String("file", storePath))
	return nil
}

func (b *Bot) sendMessage(text string) error {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	b.log.Info("run report sent", zap.Int64("chat_id", b.chatID))
	return nil
}

func FormatSummary(s crawler.Summary) string {
	kind := "일일 크롤링"
	if s.Initial {
		kind = "초기 크롤링"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📰 공지 크롤링 완료 (%s)\n\n", kind))
	sb.WriteString(fmt.Sprintf("✅ 저장: %d\n", s.Saved))
	sb.WriteString(fmt.Sprintf("🔁 중복: %d\n", s.Duplicates))
	sb.WriteString(fmt.Sprintf("⚠️ 건너뜀: %d\n", s.Skipped))
	sb.WriteString(fmt.Sprintf("🖼️ OCR: %d\n", s.OCRRuns))
	sb.WriteString(fmt.Sprintf("📄 페이지: %d\n", s.Pages))
	sb.WriteString(fmt.Sprintf("⏹️ 종료 사유: %s\n", s.HaltReason))
	if s.Watermark != "" {
		sb.WriteString(fmt.Sprintf("🔖 최신 ID: %s\n", s.Watermark))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
