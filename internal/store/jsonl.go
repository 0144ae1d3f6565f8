package store

import (
	"bytes"
	"encoding/json"

	"github.com/ObiAU/noticecrawler/internal/models"
)

// encodeJSONL writes one JSON object per line. Empty lists stay [] rather than null.
func encodeJSONL(n models.Notice) ([]byte, error) {
	if n.ImageURLs == nil {
		n.ImageURLs = []string{}
	}
	if n.Attachments == nil {
		n.Attachments = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
