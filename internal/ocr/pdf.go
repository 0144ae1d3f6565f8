package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

var errNoPages = errors.New("no image could be placed in the pdf")

type picture struct {
	url  string
	data []byte
	kind string
}

// imageKind sniffs the formats the PDF writer can embed.
func imageKind(data []byte) (string, bool) {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return "JPG", true
	case "image/png":
		return "PNG", true
	case "image/gif":
		return "GIF", true
	default:
		return "", false
	}
}

// writePDF puts every image on its own page sized to the image, in input order.
func (e *Engine) writePDF(images []picture) (int, error) {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	pages := 0
	for i, img := range images {
		name := fmt.Sprintf("image-%d", i)
		opt := fpdf.ImageOptions{ImageType: img.kind}

		info := doc.RegisterImageOptionsReader(name, opt, bytes.NewReader(img.data))
		if doc.Err() || info == nil {
			e.log.Warn("skipping undecodable image",
				zap.String("url", img.url),
				zap.Error(doc.Error()),
			)
			doc.ClearError()
			continue
		}

		w, h := info.Extent()
		doc.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		doc.ImageOptions(name, 0, 0, w, h, false, opt, 0, "")
		pages++
	}

	if pages == 0 {
		return 0, errNoPages
	}

	if err := doc.OutputFileAndClose(e.pdfPath); err != nil {
		return 0, fmt.Errorf("write pdf: %w", err)
	}

	return pages, nil
}
