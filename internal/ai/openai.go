package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/ObiAU/noticecrawler/internal/ocr"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultOCRModel    = "gpt-4o"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 200
	ocrMaxTokens       = 8000
)

var ErrEmptyResponse = errors.New("no response from openai")

const ocrInstruction = `The attached PDF contains scanned pages of a university notice.
Transcribe all visible text of every page in reading order, in the original language.
Keep tables and lists as markdown. Do not summarize or translate.
Respond with JSON only: {"pages": [{"page": 1, "content": "markdown text"}]}`

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	OCRModel    string
	Temperature float64
	MaxTokens   int64
}

type Client struct {
	client      openai.Client
	model       string
	ocrModel    string
	temperature float64
	maxTokens   int64
}

// NewClient builds a client with SDK retries disabled; the crawler paces its own calls.
func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.OCRModel == "" {
		opts.OCRModel = DefaultOCRModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Client{
		client:      openai.NewClient(reqOpts...),
		model:       opts.Model,
		ocrModel:    opts.OCRModel,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// Complete sends a single user prompt and returns the raw reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return response.Choices[0].Message.Content, nil
}

// Recognize sends the PDF to the OCR model and resolves the reply into an ocr.Result.
func (c *Client) Recognize(ctx context.Context, pdfPath string) (ocr.Result, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("read pdf: %w", err)
	}

	fileData := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data)

	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.ocrModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							{
								OfText: &openai.ChatCompletionContentPartTextParam{
									Text: ocrInstruction,
								},
							},
							{
								OfFile: &openai.ChatCompletionContentPartFileParam{
									File: openai.ChatCompletionContentPartFileFileParam{
										FileData: openai.String(fileData),
										Filename: openai.String(filepath.Base(pdfPath)),
									},
								},
							},
						},
					},
				},
			},
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(ocrMaxTokens),
	})
	if err != nil {
		return ocr.Result{}, fmt.Errorf("openai ocr request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return ocr.Result{}, ErrEmptyResponse
	}

	return ParseOCRReply(response.Choices[0].Message.Content), nil
}

// ParseOCRReply resolves a reply into one of the three result shapes: an object
// with a "pages" array, an object with a "markdown" key, or plain text.
func ParseOCRReply(content string) ocr.Result {
	body := unfence(content)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return ocr.RawResult(content)
	}

	if raw, ok := fields["pages"]; ok {
		var pages []ocr.Page
		if err := json.Unmarshal(raw, &pages); err == nil {
			return ocr.PagesResult(pages)
		}
	}

	if _, ok := fields[ocr.MarkdownField]; ok {
		var keyed map[string]any
		if err := json.Unmarshal([]byte(body), &keyed); err == nil {
			return ocr.FieldsResult(keyed)
		}
	}

	return ocr.RawResult(content)
}

func unfence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
