// Package sources reads the notice board: the paginated RSS feed and the individual notice pages.
package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/ObiAU/noticecrawler/internal/models"
)

// PagePlaceholder is substituted with the 1-based page number in the feed URL template.
const PagePlaceholder = "{page}"

// Getter fetches raw bytes for a URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Feed reads one page of the board's RSS listing at a time.
type Feed struct {
	client   Getter
	template string
}

// NewFeed creates a Feed for a URL template such as
// https://www.hansung.ac.kr/bbs/hansung/143/rssList.do?page={page}.
func NewFeed(client Getter, template string) *Feed {
	return &Feed{client: client, template: template}
}

// PageURL returns the feed URL for a page.
func (f *Feed) PageURL(page int) string {
	return strings.ReplaceAll(f.template, PagePlaceholder, strconv.Itoa(page))
}

// FetchPage fetches and parses one feed page. Items come back in feed order (newest first).
// A page without items yields an empty slice and no error.
func (f *Feed) FetchPage(ctx context.Context, page int) ([]models.FeedItem, error) {
	url := f.PageURL(page)

	body, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch feed page %d: %w", page, err)
	}

	return ParseFeed(body)
}

// ParseFeed parses an RSS document into feed items, filling missing sub-fields with placeholders.
func ParseFeed(body []byte) ([]models.FeedItem, error) {
	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]models.FeedItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}

		item := models.FeedItem{
			Title:       orPlaceholder(entry.Title, models.PlaceholderTitle),
			Link:        orPlaceholder(entry.Link, models.PlaceholderLink),
			PublishedAt: orPlaceholder(entry.Published, models.PlaceholderDate),
			Category:    models.PlaceholderCategory,
		}
		if len(entry.Categories) > 0 {
			item.Category = orPlaceholder(entry.Categories[0], models.PlaceholderCategory)
		}

		items = append(items, item)
	}

	return items, nil
}

func orPlaceholder(value, placeholder string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return placeholder
	}
	return value
}
