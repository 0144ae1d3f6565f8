package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/ObiAU/noticecrawler/internal/models"
)

// Markup markers of the board's notice page.
const (
	BodySelector       = "div.view-con"
	AttachmentSelector = "div.view-file"
	DownloadMarker     = "download.do"
)

// PageExtractor fetches a notice page and splits it into text, images and attachments.
type PageExtractor struct {
	client   Getter
	resolver *Resolver
	conv     *md.Converter
}

// NewPageExtractor creates an extractor resolving relative references against resolver.
func NewPageExtractor(client Getter, resolver *Resolver) *PageExtractor {
	conv := md.NewConverter("", true, nil)
	// links and images are collected separately; keep only the anchor text
	conv.AddRules(
		md.Rule{
			Filter: []string{"a"},
			Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String(content)
			},
		},
		md.Rule{
			Filter: []string{"img"},
			Replacement: func(_ string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String("")
			},
		},
	)

	return &PageExtractor{client: client, resolver: resolver, conv: conv}
}

// Extract fetches link and parses it. On fetch failure the returned content is empty
// and the error describes the failure; callers treat it as recoverable.
func (p *PageExtractor) Extract(ctx context.Context, link string) (models.Content, error) {
	page, err := p.client.Get(ctx, link)
	if err != nil {
		return models.Content{}, fmt.Errorf("fetch notice page: %w", err)
	}
	return p.Parse(page)
}

// Parse extracts the notice content from raw page HTML.
func (p *PageExtractor) Parse(page []byte) (models.Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return models.Content{}, fmt.Errorf("parse notice page: %w", err)
	}

	content := models.Content{
		Images:      []string{},
		Attachments: []string{},
	}

	if body := doc.Find(BodySelector).First(); body.Length() > 0 {
		content.Body = strings.TrimSpace(p.conv.Convert(body))

		body.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("src")
			if strings.TrimSpace(src) == "" {
				return
			}
			content.Images = append(content.Images, p.resolver.Resolve(src))
		})
	}

	doc.Find(AttachmentSelector).First().Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, DownloadMarker) {
			return
		}
		name := strings.TrimSpace(a.Text())
		content.Attachments = append(content.Attachments, fmt.Sprintf("%s | %s", name, p.resolver.Resolve(href)))
	})

	return content, nil
}
