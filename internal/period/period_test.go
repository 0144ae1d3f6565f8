package period

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ObiAU/noticecrawler/internal/logger"
	"github.com/ObiAU/noticecrawler/internal/models"
)

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func fixedNow() time.Time {
	return time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
}

func TestInferPeriod(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  models.Period
	}{
		{
			name:  "full period",
			reply: `{"has_period": true, "start_date": "2025-09-16", "end_date": "2025-10-05"}`,
			want:  models.Period{Start: "2025-09-16", End: "2025-10-05"},
		},
		{
			name:  "deadline only",
			reply: `{"has_period": true, "start_date": null, "end_date": "2025-09-30"}`,
			want:  models.Period{End: "2025-09-30"},
		},
		{
			name:  "no period",
			reply: `{"has_period": false, "start_date": null, "end_date": null}`,
		},
		{
			name:  "has_period false ignores dates",
			reply: `{"has_period": false, "start_date": "2025-09-16", "end_date": "2025-10-05"}`,
		},
		{
			name:  "start without end is dropped",
			reply: `{"has_period": true, "start_date": "2025-09-16", "end_date": null}`,
		},
		{
			name:  "malformed end drops both",
			reply: `{"has_period": true, "start_date": "2025-09-16", "end_date": "10월 5일"}`,
		},
		{
			name:  "malformed start is dropped",
			reply: `{"has_period": true, "start_date": "9/16", "end_date": "2025-10-05"}`,
			want:  models.Period{End: "2025-10-05"},
		},
		{
			name:  "fenced reply is a parse failure",
			reply: "```json\n{\"has_period\": true, \"start_date\": null, \"end_date\": \"2025-09-30\"}\n```",
		},
		{
			name:  "not json",
			reply: "기간은 9월 30일까지입니다.",
		},
		{
			name:  "empty reply",
			reply: "   ",
		},
		{
			name: "backend error",
			err:  errors.New("rate limited"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeCompleter{reply: tt.reply, err: tt.err}
			inf := NewInferencer(llm, logger.NewNop(), fixedNow)

			got := inf.InferPeriod(context.Background(), "신청 기간 안내 본문")
			assert.Equal(t, tt.want, got)
			assert.Len(t, llm.prompts, 1)
		})
	}
}

func TestInferPeriod_EmptyBodySkipsBackend(t *testing.T) {
	llm := &fakeCompleter{reply: `{"has_period": true, "end_date": "2025-09-30"}`}
	inf := NewInferencer(llm, logger.NewNop(), fixedNow)

	assert.True(t, inf.InferPeriod(context.Background(), "").IsZero())
	assert.True(t, inf.InferPeriod(context.Background(), " \n\t").IsZero())
	assert.Empty(t, llm.prompts)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("접수 마감 10월 1일", 2025)

	assert.Contains(t, prompt, "assume 2025")
	assert.Contains(t, prompt, `"has_period"`)
	assert.Contains(t, prompt, "Notice:\n접수 마감 10월 1일")
}
