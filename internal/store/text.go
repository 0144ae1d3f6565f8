package store

import (
	"strings"

	"github.com/ObiAU/noticecrawler/internal/models"
)

const (
	absent    = "없음"
	separator = "--------------------------------------------------"
)

// encodeText renders the labelled plain-text record read by the downstream importer.
func encodeText(n models.Notice) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("ID: " + n.ID + "\n")
	sb.WriteString("제목: " + n.Title + "\n")
	sb.WriteString("링크: " + n.Link + "?layout=unknown\n")
	sb.WriteString("게시 날짜: " + n.PublishedAt + "\n")
	sb.WriteString("카테고리: " + n.Category + "\n")
	sb.WriteString("시작일: " + orAbsent(n.ApplicationStart) + "\n")
	sb.WriteString("종료일: " + orAbsent(n.ApplicationEnd) + "\n")
	writeList(&sb, "이미지 URL", n.ImageURLs)
	writeList(&sb, "첨부파일", n.Attachments)
	sb.WriteString("내용:\n" + n.Body + "\n")
	sb.WriteString("\n" + separator + "\n\n")

	return []byte(sb.String()), nil
}

func writeList(sb *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		sb.WriteString(label + ": " + absent + "\n")
		return
	}

	sb.WriteString(label + ":\n")
	for _, v := range values {
		sb.WriteString("\t- " + v + "\n")
	}
}

func orAbsent(v string) string {
	if v == "" {
		return absent
	}
	return v
}
