// Package period asks a language model for the application window stated in a notice body.
package period

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ObiAU/noticecrawler/internal/logger"
	"github.com/ObiAU/noticecrawler/internal/models"
)

// DateLayout is the only date format accepted from the model.
const DateLayout = "2006-01-02"

// Completer sends a prompt and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type reply struct {
	HasPeriod bool    `json:"has_period"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type Inferencer struct {
	llm Completer
	log logger.Logger
	now func() time.Time
}

func NewInferencer(llm Completer, log logger.Logger, now func() time.Time) *Inferencer {
	if now == nil {
		now = time.Now
	}
	return &Inferencer{llm: llm, log: log, now: now}
}

// InferPeriod never fails: any backend or parse problem yields an empty period.
// A start date is only returned together with an end date.
func (i *Inferencer) InferPeriod(ctx context.Context, body string) models.Period {
	if strings.TrimSpace(body) == "" {
		return models.Period{}
	}

	answer, err := i.llm.Complete(ctx, BuildPrompt(body, i.now().Year()))
	if err != nil {
		i.log.Warn("period inference failed", zap.Error(err))
		return models.Period{}
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		i.log.Warn("period inference returned an empty reply")
		return models.Period{}
	}

	var r reply
	if err := json.Unmarshal([]byte(answer), &r); err != nil {
		i.log.Warn("period reply is not valid json", zap.String("reply", answer), zap.Error(err))
		return models.Period{}
	}

	if !r.HasPeriod {
		return models.Period{}
	}

	end := validDate(r.EndDate)
	if end == "" {
		return models.Period{}
	}

	return models.Period{Start: validDate(r.StartDate), End: end}
}

func validDate(v *string) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(*v)
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ""
	}
	return s
}

// BuildPrompt renders the extraction prompt. The year resolves dates written without one.
func BuildPrompt(body string, year int) string {
	var sb strings.Builder
	sb.WriteString("You extract the application period from a university notice and answer in JSON.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Find the period during which applications or registrations are accepted.\n")
	sb.WriteString("- Reply with the JSON object only. No explanation, no markdown, no code fences.\n")
	sb.WriteString("- Dates are always YYYY-MM-DD.\n")
	sb.WriteString(fmt.Sprintf("- When a date has no year, assume %d.\n", year))
	sb.WriteString(`- If no period is stated, "has_period" is false and both dates are null.` + "\n")
	sb.WriteString(`- If a period is found, "has_period" is true and "end_date" must be set. "start_date" is null when not stated.` + "\n\n")
	sb.WriteString("Format:\n")
	sb.WriteString(`{"has_period": boolean, "start_date": "YYYY-MM-DD" or null, "end_date": "YYYY-MM-DD" or null}` + "\n\n")
	sb.WriteString("Examples:\n")
	sb.WriteString(fmt.Sprintf("모집 기간은 9월 16일부터 10월 5일까지입니다.\n{\"has_period\": true, \"start_date\": \"%d-09-16\", \"end_date\": \"%d-10-05\"}\n", year, year))
	sb.WriteString(fmt.Sprintf("접수 마감은 9월 30일 18:00까지입니다.\n{\"has_period\": true, \"start_date\": null, \"end_date\": \"%d-09-30\"}\n", year))
	sb.WriteString("본 채용은 상시 모집으로 진행됩니다.\n{\"has_period\": false, \"start_date\": null, \"end_date\": null}\n\n")
	sb.WriteString("Notice:\n")
	sb.WriteString(body)
	return sb.String()
}
