// Package ocr recovers notice text from images when the page body is missing or too short.
package ocr

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ObiAU/noticecrawler/internal/logger"
	"github.com/ObiAU/noticecrawler/internal/pace"
)

// PDFName is the single reusable file the engine assembles images into.
const PDFName = "temp.pdf"

// Backend turns a PDF of page images into text.
type Backend interface {
	Recognize(ctx context.Context, pdfPath string) (Result, error)
}

// Downloader fetches an image.
type Downloader interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Options configures an Engine.
type Options struct {
	WorkDir string
	// Delay is waited before every backend call.
	Delay time.Duration
	Sleep pace.Sleeper
}

// Engine downloads images, assembles them into a PDF and runs OCR on it.
// It is not safe for concurrent use: the PDF path is shared between calls.
type Engine struct {
	downloader Downloader
	backend    Backend
	workDir    string
	pdfPath    string
	delay      time.Duration
	sleep      pace.Sleeper
	log        logger.Logger
}

// NewEngine creates an Engine.
func NewEngine(downloader Downloader, backend Backend, opts Options, log logger.Logger) *Engine {
	if opts.WorkDir == "" {
		opts.WorkDir = "pdf"
	}
	if opts.Sleep == nil {
		opts.Sleep = pace.Sleep
	}

	return &Engine{
		downloader: downloader,
		backend:    backend,
		workDir:    opts.WorkDir,
		pdfPath:    filepath.Join(opts.WorkDir, PDFName),
		delay:      opts.Delay,
		sleep:      opts.Sleep,
		log:        log,
	}
}

// PDFPath is where the temporary PDF lives while a call is in flight.
func (e *Engine) PDFPath() string {
	return e.pdfPath
}

// ExtractTextFromImages returns the OCR text of the images. ok is false when OCR
// could not run at all (nothing downloadable, PDF failure, backend failure);
// ok with an empty text means OCR ran and found nothing.
func (e *Engine) ExtractTextFromImages(ctx context.Context, urls []string) (string, bool) {
	images := e.download(ctx, urls)
	if len(images) == 0 {
		e.log.Warn("no image downloaded, skipping ocr", zap.Int("requested", len(urls)))
		return "", false
	}

	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		e.log.Error("failed to create ocr work dir", zap.String("dir", e.workDir), zap.Error(err))
		return "", false
	}

	return e.recognize(ctx, images)
}

func (e *Engine) download(ctx context.Context, urls []string) []picture {
	images := make([]picture, 0, len(urls))
	for _, url := range urls {
		data, err := e.downloader.Get(ctx, url)
		if err != nil {
			e.log.Warn("image download failed", zap.String("url", url), zap.Error(err))
			continue
		}

		kind, ok := imageKind(data)
		if !ok {
			e.log.Warn("unsupported image format", zap.String("url", url))
			continue
		}

		images = append(images, picture{url: url, data: data, kind: kind})
	}
	return images
}

func (e *Engine) recognize(ctx context.Context, images []picture) (string, bool) {
	defer e.release()

	pages, err := e.writePDF(images)
	if err != nil {
		e.log.Error("failed to assemble pdf", zap.Error(err))
		return "", false
	}

	if err := e.sleep(ctx, e.delay); err != nil {
		e.log.Warn("ocr delay interrupted", zap.Error(err))
		return "", false
	}

	result, err := e.backend.Recognize(ctx, e.pdfPath)
	if err != nil {
		e.log.Error("ocr backend failed", zap.Int("pages", pages), zap.Error(err))
		return "", false
	}

	text := CleanText(result.Text())
	if text == "" {
		e.log.Warn("ocr produced no text", zap.Int("pages", pages))
	}

	return text, true
}

// release removes the temporary PDF. It runs on every exit path of recognize.
func (e *Engine) release() {
	if err := os.Remove(e.pdfPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.log.Error("failed to remove temporary pdf", zap.String("path", e.pdfPath), zap.Error(err))
	}
}
