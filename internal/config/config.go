// Package config provides configuration for the scanner's external services,
// signing key and time budgets
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// API Keys
	ExplorerAPIKey   string
	XBearerToken     string
	GitHubToken      string
	TelegramBotToken string
	DatabaseURL      string

	// Service endpoints. Empty means the client's public default.
	ExplorerAPIURL  string
	HoneypotAPIURL  string
	GoPlusAPIURL    string
	DexScreenerURL  string
	XAPIURL         string
	ScrapeBaseURL   string
	GitHubAPIURL    string
	RDAPURL         string
	TelegramAPIURL  string
	SentimentAPIURL string
	IPFSAPIURL      string

	// Group size reported when no Telegram bot is configured; 0 means none
	StubGroupMembers int

	// Result signing: a secp256k1 hex key, or an HMAC secret
	SigningKey string
	HMACSecret string

	// Time budgets
	ScanDeadline    time.Duration
	TaskTimeout     time.Duration
	ProviderTimeout time.Duration

	// NetworksFile replaces the embedded network catalogue when set
	NetworksFile string

	UseIPFS   bool
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ExplorerAPIKey:   firstEnv("EXPLORER_API_KEY", "ETHERSCAN_API_KEY", "BSCSCAN_API_KEY"),
		XBearerToken:     os.Getenv("X_BEARER_TOKEN"),
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),

		ExplorerAPIURL:  os.Getenv("EXPLORER_API_URL"),
		HoneypotAPIURL:  os.Getenv("HONEYPOT_API_URL"),
		GoPlusAPIURL:    os.Getenv("GOPLUS_API_URL"),
		DexScreenerURL:  os.Getenv("DEXSCREENER_API_URL"),
		XAPIURL:         os.Getenv("X_API_URL"),
		ScrapeBaseURL:   os.Getenv("SCRAPE_BASE_URL"),
		GitHubAPIURL:    os.Getenv("GITHUB_API_URL"),
		RDAPURL:         os.Getenv("RDAP_URL"),
		TelegramAPIURL:  os.Getenv("TELEGRAM_API_URL"),
		SentimentAPIURL: os.Getenv("SENTIMENT_API_URL"),
		IPFSAPIURL:      os.Getenv("IPFS_API_URL"),

		StubGroupMembers: getEnvInt("STUB_GROUP_MEMBERS", 0),

		SigningKey: os.Getenv("SIGNING_KEY"),
		HMACSecret: os.Getenv("HMAC_SECRET"),

		ScanDeadline:    getEnvDuration("SCAN_DEADLINE", 30*time.Second),
		TaskTimeout:     getEnvDuration("TASK_TIMEOUT", 10*time.Second),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 5*time.Second),

		NetworksFile: os.Getenv("NETWORKS_FILE"),

		UseIPFS:   getEnvBool("USE_IPFS", os.Getenv("IPFS_API_URL") != ""),
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "console"),
	}
}

// Validate reports every problem that would stop the scanner from starting
func (c *Config) Validate() error {
	var errs []error
	if c.SigningKey == "" && c.HMACSecret == "" {
		errs = append(errs, errors.New("SIGNING_KEY or HMAC_SECRET must be set"))
	}
	if c.ScanDeadline <= 0 || c.TaskTimeout <= 0 || c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("time budgets must be positive"))
	}
	if c.TaskTimeout >= c.ScanDeadline {
		errs = append(errs, fmt.Errorf("TASK_TIMEOUT %s must be shorter than SCAN_DEADLINE %s", c.TaskTimeout, c.ScanDeadline))
	}
	if c.ProviderTimeout > c.TaskTimeout {
		errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT %s exceeds TASK_TIMEOUT %s", c.ProviderTimeout, c.TaskTimeout))
	}
	if c.StubGroupMembers < 0 {
		errs = append(errs, errors.New("STUB_GROUP_MEMBERS must not be negative"))
	}
	return errors.Join(errs...)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15")
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return b
}
