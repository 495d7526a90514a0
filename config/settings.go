package config

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Settings is the live, concurrency-safe configuration holder. Operations take a
// Snapshot when they start, so changes only affect operations started afterwards.
type Settings struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewSettings validates cfg and wraps a private copy of it.
func NewSettings(cfg *Config) (*Settings, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Settings{cfg: cfg.Clone()}, nil
}

// Snapshot returns an independent copy of the current configuration.
func (s *Settings) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// SetProxy sets a single HTTP/HTTPS proxy URL; an empty string disables it.
func (s *Settings) SetProxy(proxy string) error {
	proxy = strings.TrimSpace(proxy)
	if err := validateProxy(proxy); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg.Proxy = proxy
	s.mu.Unlock()
	return nil
}

// SetRequestInterval sets the bounds of the randomised pause between fetches.
func (s *Settings) SetRequestInterval(minInterval, maxInterval time.Duration) error {
	if err := validateInterval(minInterval, maxInterval); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg.MinInterval = minInterval
	s.cfg.MaxInterval = maxInterval
	s.mu.Unlock()
	return nil
}

// SetSelectors merges non-empty selector overrides into the active profile.
// Unknown keys and selectors that do not compile are rejected as a whole.
func (s *Settings) SetSelectors(overrides map[string]string) error {
	cleaned := make(map[string]string, len(overrides))
	for key, value := range overrides {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		cleaned[key] = value
	}
	if err := validateSelectors(cleaned); err != nil {
		return err
	}
	s.mu.Lock()
	for key, value := range cleaned {
		s.cfg.Selectors[key] = value
	}
	s.mu.Unlock()
	return nil
}

// ResetSelectors drops every selector override.
func (s *Settings) ResetSelectors() {
	s.mu.Lock()
	s.cfg.Selectors = map[string]string{}
	s.mu.Unlock()
}

// SetRetry sets the attempt limit and per-request timeout.
func (s *Settings) SetRetry(maxRetries int, timeout time.Duration) error {
	if maxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	s.mu.Lock()
	s.cfg.MaxRetries = maxRetries
	s.cfg.Timeout = timeout
	s.mu.Unlock()
	return nil
}

// SetDownloadImages toggles downloading of accepted product images.
func (s *Settings) SetDownloadImages(enabled bool) {
	s.mu.Lock()
	s.cfg.DownloadImages = enabled
	s.mu.Unlock()
}

// SetImageFolder sets the directory downloaded images are written to.
func (s *Settings) SetImageFolder(folder string) error {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return fmt.Errorf("image folder cannot be empty")
	}
	s.mu.Lock()
	s.cfg.ImageFolder = folder
	s.mu.Unlock()
	return nil
}

// SetDebug toggles writing the last fetched page to the debug file.
func (s *Settings) SetDebug(enabled bool) {
	s.mu.Lock()
	s.cfg.Debug = enabled
	s.mu.Unlock()
}
