package config

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "min interval above max",
			mutate: func(cfg *Config) {
				cfg.MinInterval = 5 * time.Second
				cfg.MaxInterval = time.Second
			},
			wantErr: "min interval",
		},
		{
			name: "negative min interval",
			mutate: func(cfg *Config) {
				cfg.MinInterval = -time.Second
			},
			wantErr: "min interval",
		},
		{
			name: "zero retries",
			mutate: func(cfg *Config) {
				cfg.MaxRetries = 0
			},
			wantErr: "max retries",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "proxy without scheme host",
			mutate: func(cfg *Config) {
				cfg.Proxy = "ftp://proxy.local:21"
			},
			wantErr: "proxy",
		},
		{
			name: "invalid selector",
			mutate: func(cfg *Config) {
				cfg.Selectors = map[string]string{"name": "h1[["}
			},
			wantErr: "selector",
		},
		{
			name: "unknown selector field",
			mutate: func(cfg *Config) {
				cfg.Selectors = map[string]string{"colour": ".swatch"}
			},
			wantErr: "unknown selector",
		},
		{
			name: "unsupported format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "csv,xml"
			},
			wantErr: "output format",
		},
		{
			name: "zero products per file",
			mutate: func(cfg *Config) {
				cfg.ProductsPerFile = 0
			},
			wantErr: "products per file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestSettingsRejectsInvertedInterval(t *testing.T) {
	s, err := NewSettings(nil)
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	if err := s.SetRequestInterval(3*time.Second, time.Second); err == nil {
		t.Fatalf("expected inverted interval to be rejected")
	}
	snap := s.Snapshot()
	if snap.MinInterval != time.Second || snap.MaxInterval != 3*time.Second {
		t.Fatalf("interval changed after rejected update: %s-%s", snap.MinInterval, snap.MaxInterval)
	}
	if err := s.SetRequestInterval(0, 500*time.Millisecond); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	if got := s.Snapshot().MaxInterval; got != 500*time.Millisecond {
		t.Fatalf("max interval = %s, want 500ms", got)
	}
}

func TestSettingsSelectorsMergeAndReset(t *testing.T) {
	s, err := NewSettings(nil)
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	if err := s.SetSelectors(map[string]string{"name": " .title ", "price": "   "}); err != nil {
		t.Fatalf("set selectors: %v", err)
	}
	snap := s.Snapshot()
	if snap.Selectors["name"] != ".title" {
		t.Fatalf("name selector = %q, want .title", snap.Selectors["name"])
	}
	if _, ok := snap.Selectors["price"]; ok {
		t.Fatalf("blank override should be ignored")
	}

	if err := s.SetSelectors(map[string]string{"sku": "span[[", "tags": ".tag"}); err == nil {
		t.Fatalf("expected invalid selector to be rejected")
	}
	if _, ok := s.Snapshot().Selectors["tags"]; ok {
		t.Fatalf("rejected batch must not be partially applied")
	}

	s.ResetSelectors()
	if len(s.Snapshot().Selectors) != 0 {
		t.Fatalf("selectors not reset")
	}
}

func TestSettingsSnapshotIsIndependent(t *testing.T) {
	s, err := NewSettings(nil)
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	snap := s.Snapshot()
	snap.Selectors["name"] = "h2"
	snap.Proxy = "http://mutated:8080"

	fresh := s.Snapshot()
	if fresh.Proxy != "" || fresh.Selectors["name"] != "" {
		t.Fatalf("snapshot mutation leaked into settings: %+v", fresh)
	}
}

func TestSettingsConcurrentUpdates(t *testing.T) {
	s, err := NewSettings(nil)
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.SetProxy("http://proxy.local:3128")
			s.SetDebug(true)
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	if got := s.Snapshot().Proxy; got != "http://proxy.local:3128" {
		t.Fatalf("proxy = %q", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SCRAPER_TEST_INT", "7")
	t.Setenv("SCRAPER_TEST_DURATION", "1500ms")
	t.Setenv("SCRAPER_TEST_BAD", "seven")

	if v, ok, err := EnvInt("SCRAPER_TEST_INT"); err != nil || !ok || v != 7 {
		t.Fatalf("EnvInt = %d %v %v", v, ok, err)
	}
	if v, ok, err := EnvDuration("SCRAPER_TEST_DURATION"); err != nil || !ok || v != 1500*time.Millisecond {
		t.Fatalf("EnvDuration = %s %v %v", v, ok, err)
	}
	if _, _, err := EnvInt("SCRAPER_TEST_BAD"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, ok := EnvString("SCRAPER_TEST_MISSING"); ok {
		t.Fatalf("missing variable reported as set")
	}
}
