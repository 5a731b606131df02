package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath          string
	OutputDir       string
	AccountCodePath string

	// Segmentation
	RowGapPx        int
	ColumnGapPx     int
	ColumnMinWords  int
	SegmentMinConf  float64

	// OCR source
	OCRDPI          int
	OCRLanguages    []string
	OCRRateLimitRPS int
	OCRMaxRetries   int

	// Validation
	FiscalSlackDays    int
	HighConfThreshold  float64
	LowConfThreshold   float64

	// Reconciliation
	DedupWindowDays int

	// Verification
	DefaultToleranceDollars float64

	// Watcher
	WatchInboxDir      string
	WatchIntervalSec   int
	WatchAutoExport    bool
	PipelineMaxWorkers int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:          getEnv("DB_PATH", filepath.Join(cwd, "data", "ledger.db")),
		OutputDir:       getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		AccountCodePath: getEnv("ACCOUNT_CODE_PATH", filepath.Join(cwd, "data", "account_codes.csv")),

		RowGapPx:       getEnvInt("SEGMENT_ROW_GAP_PX", 20),
		ColumnGapPx:    getEnvInt("SEGMENT_COLUMN_GAP_PX", 60),
		ColumnMinWords: getEnvInt("SEGMENT_COLUMN_MIN_WORDS", 3),
		SegmentMinConf: getEnvFloat("SEGMENT_MIN_CONFIDENCE", 0.30),

		OCRDPI:          getEnvInt("OCR_DPI", 300),
		OCRLanguages:    splitList(getEnv("OCR_LANGUAGES", "eng")),
		OCRRateLimitRPS: getEnvInt("OCR_RATE_LIMIT_RPS", 2),
		OCRMaxRetries:   getEnvInt("OCR_MAX_RETRIES", 2),

		FiscalSlackDays:   getEnvInt("FISCAL_SLACK_DAYS", 7),
		HighConfThreshold: getEnvFloat("CONFIDENCE_HIGH_THRESHOLD", 0.90),
		LowConfThreshold:  getEnvFloat("CONFIDENCE_LOW_THRESHOLD", 0.60),

		DedupWindowDays: getEnvInt("DEDUP_WINDOW_DAYS", 3),

		DefaultToleranceDollars: getEnvFloat("CLAIM_DEFAULT_TOLERANCE_DOLLARS", 1.0),

		WatchInboxDir:      getEnv("WATCH_INBOX_DIR", filepath.Join(cwd, "inbox")),
		WatchIntervalSec:   getEnvInt("WATCH_INTERVAL_SEC", 30),
		WatchAutoExport:    getEnvBool("WATCH_AUTO_EXPORT", true),
		PipelineMaxWorkers: getEnvInt("PIPELINE_MAX_WORKERS", 4),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
