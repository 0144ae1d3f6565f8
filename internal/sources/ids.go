package sources

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoNoticeID is returned when a link does not carry the board's numeric post id.
var ErrNoNoticeID = errors.New("no notice id in link")

// IDExtractor pulls the stable notice id out of a post URL such as
// https://www.hansung.ac.kr/bbs/hansung/143/264213/artclView.do.
type IDExtractor struct {
	pattern *regexp.Regexp
}

// NewIDExtractor builds an extractor for the given board id ("143").
func NewIDExtractor(boardID string) *IDExtractor {
	return &IDExtractor{
		pattern: regexp.MustCompile(regexp.QuoteMeta(boardID) + `/(\d+)`),
	}
}

// Extract returns the numeric id following the board segment.
func (x *IDExtractor) Extract(link string) (string, error) {
	m := x.pattern.FindStringSubmatch(link)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrNoNoticeID, link)
	}
	return m[1], nil
}

// Resolver turns board-relative references into absolute URLs.
type Resolver struct {
	base *url.URL
}

// NewResolver parses the board's base domain, e.g. https://www.hansung.ac.kr.
func NewResolver(baseURL string) (*Resolver, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", baseURL)
	}
	return &Resolver{base: base}, nil
}

// Resolve returns ref as an absolute URL. Unparseable refs are returned unchanged.
func (r *Resolver) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return r.base.ResolveReference(u).String()
}
