// Package config builds the crawler configuration from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingRSSURL       = errors.New("rss_url is required")
	ErrMissingPagePattern  = errors.New("rss_url must contain {page}")
	ErrMissingBaseURL      = errors.New("base_url is required")
	ErrMissingBoardID      = errors.New("board_id is required")
	ErrInvalidMaxPages     = errors.New("max_pages and initial_max_pages must be at least 1")
	ErrInvalidTimeout      = errors.New("request_timeout must be positive")
	ErrInvalidDelay        = errors.New("ocr_delay and ai_call_delay must be non-negative")
	ErrInvalidLookback     = errors.New("lookback_days must be at least 1")
	ErrInvalidTextLength   = errors.New("min_text_length must be at least 1")
	ErrInvalidStoreFormat  = errors.New("store_format must be one of: text, jsonl, sqlite")
	ErrMissingOpenAIAPIKey = errors.New("openai_api_key is required")
	ErrInvalidLogLevel     = errors.New("log_level must be one of: debug, info, warn, error")
)

type Config struct {
	RSSURL          string        `yaml:"rss_url"`
	BaseURL         string        `yaml:"base_url"`
	BoardID         string        `yaml:"board_id"`
	MaxPages        int           `yaml:"max_pages"`
	InitialMaxPages int           `yaml:"initial_max_pages"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	FetchRate       float64       `yaml:"fetch_rate"`
	UserAgent       string        `yaml:"user_agent"`

	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	Model         string        `yaml:"model"`
	OCRModel      string        `yaml:"ocr_model"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int64         `yaml:"max_tokens"`
	OCRDelay      time.Duration `yaml:"ocr_delay"`
	AICallDelay   time.Duration `yaml:"ai_call_delay"`

	MinTextLength int    `yaml:"min_text_length"`
	LookbackDays  int    `yaml:"lookback_days"`
	OCRWorkDir    string `yaml:"ocr_work_dir"`
	StateDir      string `yaml:"state_dir"`
	StoreFormat   string `yaml:"store_format"`
	StorePath     string `yaml:"store_path"`
	LogLevel      string `yaml:"log_level"`

	TelegramToken  string `yaml:"telegram_bot_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

// Default returns the configuration for the Hansung University notice board.
func Default() *Config {
	return &Config{
		RSSURL:          "https://www.hansung.ac.kr/bbs/hansung/143/rssList.do?page={page}",
		BaseURL:         "https://www.hansung.ac.kr",
		BoardID:         "143",
		MaxPages:        2,
		InitialMaxPages: 50,
		RequestTimeout:  30 * time.Second,
		FetchRate:       2,
		Model:           "gpt-4o-mini",
		OCRModel:        "gpt-4o",
		Temperature:     0.1,
		MaxTokens:       200,
		OCRDelay:        3 * time.Second,
		AICallDelay:     3 * time.Second,
		MinTextLength:   250,
		LookbackDays:    365,
		OCRWorkDir:      "pdf",
		StateDir:        ".",
		StoreFormat:     "text",
		LogLevel:        "info",
	}
}

// Load applies the YAML file at path (if any) and then the environment on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath(cfg.StoreFormat)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.RSSURL = getEnv("RSS_URL", c.RSSURL)
	c.BaseURL = getEnv("BASE_URL", c.BaseURL)
	c.BoardID = getEnv("BOARD_ID", c.BoardID)
	c.MaxPages = getEnvAsInt("MAX_PAGES", c.MaxPages)
	c.InitialMaxPages = getEnvAsInt("INITIAL_MAX_PAGES", c.InitialMaxPages)
	c.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.FetchRate = getEnvAsFloat("FETCH_RATE", c.FetchRate)
	c.UserAgent = getEnv("USER_AGENT", c.UserAgent)

	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.Model = getEnv("MODEL", c.Model)
	c.OCRModel = getEnv("OCR_MODEL", c.OCRModel)
	c.Temperature = getEnvAsFloat("TEMPERATURE", c.Temperature)
	c.MaxTokens = int64(getEnvAsInt("MAX_TOKENS", int(c.MaxTokens)))
	c.OCRDelay = getEnvAsDuration("OCR_DELAY", c.OCRDelay)
	c.AICallDelay = getEnvAsDuration("AI_CALL_DELAY", c.AICallDelay)

	c.MinTextLength = getEnvAsInt("MIN_TEXT_LENGTH", c.MinTextLength)
	c.LookbackDays = getEnvAsInt("LOOKBACK_DAYS", c.LookbackDays)
	c.OCRWorkDir = getEnv("OCR_WORK_DIR", c.OCRWorkDir)
	c.StateDir = getEnv("STATE_DIR", c.StateDir)
	c.StoreFormat = strings.ToLower(getEnv("STORE_FORMAT", c.StoreFormat))
	c.StorePath = getEnv("STORE_PATH", c.StorePath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramToken)
	c.TelegramChatID = getEnvAsInt64("TELEGRAM_CHAT_ID", c.TelegramChatID)
}

// DefaultStorePath is the output file name used when none is configured.
func DefaultStorePath(format string) string {
	switch format {
	case "jsonl":
		return "notices.jsonl"
	case "sqlite":
		return "notices.db"
	default:
		return "notice_db.txt"
	}
}

// Validate checks the settings a crawl cannot run without.
func (c *Config) Validate() error {
	if c.RSSURL == "" {
		return ErrMissingRSSURL
	}
	if !strings.Contains(c.RSSURL, "{page}") {
		return ErrMissingPagePattern
	}
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.BoardID == "" {
		return ErrMissingBoardID
	}
	if c.MaxPages < 1 || c.InitialMaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.OCRDelay < 0 || c.AICallDelay < 0 {
		return ErrInvalidDelay
	}
	if c.LookbackDays < 1 {
		return ErrInvalidLookback
	}
	if c.MinTextLength < 1 {
		return ErrInvalidTextLength
	}

	switch c.StoreFormat {
	case "text", "jsonl", "sqlite":
	default:
		return ErrInvalidStoreFormat
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel
	}

	if c.OpenAIAPIKey == "" {
		return ErrMissingOpenAIAPIKey
	}

	return nil
}

// TelegramEnabled reports whether run delivery is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("3s") and bare seconds ("3").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return defaultValue
}
