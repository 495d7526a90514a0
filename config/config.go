package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

// SelectorKeys lists the logical fields a selector override may target.
var SelectorKeys = []string{"name", "price", "description", "image", "categories", "tags", "sku", "product_links"}

// Config holds scraper configuration. A Config is treated as an immutable value
// for the duration of one operation; use Settings to change it between operations.
type Config struct {
	Proxy           string
	MinInterval     time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryPause      time.Duration
	UserAgent       string
	AcceptLanguage  string
	Selectors       map[string]string
	DownloadImages  bool
	ImageFolder     string
	Debug           bool
	DebugFile       string
	ProductsPerFile int
	ProbeIDMax      int
	Parallelism     int
	OutputFile      string
	OutputFormat    string // csv, txt, json, marketplace or batch; comma separated for several
	MetricsAddr     string
	Verbose         bool
}

// DefaultConfig returns the default scraper configuration.
func DefaultConfig() *Config {
	return &Config{
		Proxy:           "",
		MinInterval:     1 * time.Second,
		MaxInterval:     3 * time.Second,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryPause:      2 * time.Second,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		AcceptLanguage:  "zh-CN,zh;q=0.9,en;q=0.8",
		Selectors:       map[string]string{},
		DownloadImages:  false,
		ImageFolder:     "product_images",
		Debug:           false,
		DebugFile:       "debug_page.html",
		ProductsPerFile: 5,
		ProbeIDMax:      30,
		Parallelism:     2,
		OutputFile:      "output/products.csv",
		OutputFormat:    "csv",
		Verbose:         false,
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Selectors = make(map[string]string, len(c.Selectors))
	for k, v := range c.Selectors {
		out.Selectors[k] = v
	}
	return &out
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateProxy(c.Proxy); err != nil {
		return err
	}
	if err := validateInterval(c.MinInterval, c.MaxInterval); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.RetryPause < 0 {
		return fmt.Errorf("retry pause cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if err := validateSelectors(c.Selectors); err != nil {
		return err
	}
	if c.DownloadImages && c.ImageFolder == "" {
		return fmt.Errorf("image folder cannot be empty when image download is enabled")
	}
	if c.Debug && c.DebugFile == "" {
		return fmt.Errorf("debug file cannot be empty when debug mode is enabled")
	}
	if c.ProductsPerFile <= 0 {
		return fmt.Errorf("products per file must be positive")
	}
	if c.ProbeIDMax < 0 {
		return fmt.Errorf("probe id max cannot be negative")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	for _, format := range strings.Split(c.OutputFormat, ",") {
		switch strings.TrimSpace(format) {
		case "csv", "txt", "json", "marketplace", "batch":
		default:
			return fmt.Errorf("output format must be csv, txt, json, marketplace or batch, got %q", format)
		}
	}
	return nil
}

func validateProxy(proxy string) error {
	if proxy == "" {
		return nil
	}
	parsed, err := url.Parse(proxy)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" && parsed.Scheme != "socks5" {
		return fmt.Errorf("proxy URL must use http, https or socks5, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("proxy URL must include a host")
	}
	return nil
}

func validateInterval(minInterval, maxInterval time.Duration) error {
	if minInterval < 0 {
		return fmt.Errorf("min interval cannot be negative")
	}
	if maxInterval < minInterval {
		return fmt.Errorf("min interval (%s) cannot exceed max interval (%s)", minInterval, maxInterval)
	}
	return nil
}

func validateSelectors(selectors map[string]string) error {
	for key, value := range selectors {
		if !isSelectorKey(key) {
			return fmt.Errorf("unknown selector field %q", key)
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, err := cascadia.Compile(value); err != nil {
			return fmt.Errorf("invalid %s selector %q: %w", key, value, err)
		}
	}
	return nil
}

func isSelectorKey(key string) bool {
	for _, k := range SelectorKeys {
		if k == key {
			return true
		}
	}
	return false
}

// EnvString returns the trimmed value of an environment variable when set.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses an integer environment variable when set.
func EnvInt(name string) (int, bool, error) {
	value, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return parsed, true, nil
}

// EnvDuration parses a duration environment variable (e.g. "1500ms") when set.
func EnvDuration(name string) (time.Duration, bool, error) {
	value, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return parsed, true, nil
}
