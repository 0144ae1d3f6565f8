package ocr

import (
	"fmt"
	"strings"
)

// Kind identifies which shape an OCR backend answered with.
type Kind int

const (
	// KindPages is a paginated result; every page carries its own text.
	KindPages Kind = iota
	// KindFields is a keyed map whose "markdown" entry holds the text.
	KindFields
	// KindRaw is a bare string.
	KindRaw
)

// MarkdownField is the key holding the text in a KindFields result.
const MarkdownField = "markdown"

// Page is one recognized page.
type Page struct {
	Number  int    `json:"page"`
	Content string `json:"content"`
}

// Result is the backend answer, resolved to one shape at the adapter boundary.
type Result struct {
	Kind   Kind
	Pages  []Page
	Fields map[string]any
	Raw    string
}

// PagesResult builds a KindPages result.
func PagesResult(pages []Page) Result {
	return Result{Kind: KindPages, Pages: pages}
}

// FieldsResult builds a KindFields result.
func FieldsResult(fields map[string]any) Result {
	return Result{Kind: KindFields, Fields: fields}
}

// RawResult builds a KindRaw result.
func RawResult(raw string) Result {
	return Result{Kind: KindRaw, Raw: raw}
}

// Text flattens the result into one blob. Pages are joined by a blank line.
func (r Result) Text() string {
	switch r.Kind {
	case KindPages:
		return pagesText(r.Pages)
	case KindFields:
		return fieldsText(r.Fields)
	default:
		return r.Raw
	}
}

func pagesText(pages []Page) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func fieldsText(fields map[string]any) string {
	v, ok := fields[MarkdownField]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
