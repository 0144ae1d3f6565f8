package models

import (
	"strings"
)

// Placeholders used when an RSS item is missing a sub-field.
const (
	PlaceholderTitle    = "No Title"
	PlaceholderLink     = "No Link"
	PlaceholderDate     = "No Date"
	PlaceholderCategory = "No Category"
)

// Notice is one harvested announcement post.
type Notice struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Link             string   `json:"link"`
	PublishedAt      string   `json:"published_at"`
	Category         string   `json:"category"`
	Body             string   `json:"body"`
	ImageURLs        []string `json:"image_urls"`
	Attachments      []string `json:"attachments"`
	ApplicationStart string   `json:"application_start,omitempty"`
	ApplicationEnd   string   `json:"application_end,omitempty"`
}

// FeedItem is a single RSS entry as delivered by the board, before any enrichment.
type FeedItem struct {
	Title       string
	Link        string
	PublishedAt string
	Category    string
}

// Content is what the notice page itself yields.
type Content struct {
	Body        string
	Images      []string
	Attachments []string
}

// Period is an inferred application window. Empty strings mean absent.
type Period struct {
	Start string `json:"start_date,omitempty"`
	End   string `json:"end_date,omitempty"`
}

// IsZero reports whether no application period was detected.
func (p Period) IsZero() bool {
	return p.Start == "" && p.End == ""
}

// DatePart returns the date portion of a raw board timestamp such as
// "2025-09-16 14:30:00".
func DatePart(publishedAt string) string {
	publishedAt = strings.TrimSpace(publishedAt)
	if i := strings.IndexByte(publishedAt, ' '); i >= 0 {
		return publishedAt[:i]
	}
	return publishedAt
}
