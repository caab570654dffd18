package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	TranscriptBaseURL string
	AnalysisKeysJSON  string
	AnalysisBaseURL   string
	AnalysisModel     string
	SecondaryBaseURL  string
	SecondaryModel    string
	SecondaryToken    string

	MailboxBaseURL string
	MailboxToken   string
	MailboxDomains []string
	InboxBaseURL   string
	InboxAPIKey    string
	InboxNamespace string

	StorageDriver   string
	StoragePath     string
	StorageBaseURL  string
	StorageEndpoint string
	StorageToken    string

	WorkerCount int
	TaskLimit   int
	CookiesFile string
	WorkDir     string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		TranscriptBaseURL: getEnv("TRANSCRIPT_BASE_URL", "https://transcriptapi.com/api"),
		AnalysisKeysJSON:  getEnv("ANALYSIS_KEYS_JSON", "[]"),
		AnalysisBaseURL:   getEnv("ANALYSIS_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		AnalysisModel:     getEnv("ANALYSIS_MODEL", "gemini-2.5-pro"),
		SecondaryBaseURL:  getEnv("SECONDARY_BASE_URL", "https://router.huggingface.co/v1"),
		SecondaryModel:    getEnv("SECONDARY_MODEL", "deepseek-ai/DeepSeek-V3.2-Exp"),
		SecondaryToken:    os.Getenv("SECONDARY_API_TOKEN"),

		MailboxBaseURL: getEnv("MAILBOX_BASE_URL", "https://tempmail.id.vn/api"),
		MailboxToken:   os.Getenv("MAILBOX_API_TOKEN"),
		MailboxDomains: splitList(getEnv("MAILBOX_DOMAINS", "tempmail.id.vn")),
		InboxBaseURL:   getEnv("INBOX_BASE_URL", "https://api.testmail.app/api/json"),
		InboxAPIKey:    os.Getenv("INBOX_API_KEY"),
		InboxNamespace: os.Getenv("INBOX_NAMESPACE"),

		StorageDriver:   getEnv("STORAGE_DRIVER", "file"),
		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		StorageEndpoint: os.Getenv("STORAGE_ENDPOINT"),
		StorageToken:    os.Getenv("STORAGE_TOKEN"),

		WorkerCount: getEnvInt("WORKER_COUNT", 1),
		TaskLimit:   getEnvInt("TASK_LIMIT", 5),
		CookiesFile: os.Getenv("COOKIES_FILE"),
		WorkDir:     getEnv("WORK_DIR", os.TempDir()),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
