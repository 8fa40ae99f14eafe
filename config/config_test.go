package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
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
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "zero page size",
			mutate: func(cfg *Config) {
				cfg.PageSize = 0
			},
			wantErr: "page size",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "no categories",
			mutate: func(cfg *Config) {
				cfg.Categories = nil
			},
			wantErr: "category",
		},
		{
			name: "blank category",
			mutate: func(cfg *Config) {
				cfg.Categories = []string{"men-clothing", " "}
			},
			wantErr: "empty entries",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "postgres without url",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "postgres"
				cfg.PostgresURL = ""
			},
			wantErr: "postgres",
		},
		{
			name: "zero in-flight",
			mutate: func(cfg *Config) {
				cfg.MaxInFlight = 0
			},
			wantErr: "in-flight",
		},
		{
			name: "mirror sink without settings",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "json,redis"
				cfg.RedisAddr = ""
			},
			wantErr: "redis",
		},
		{
			name: "format listed twice",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "dual,csv"
			},
			wantErr: "listed twice",
		},
		{
			name: "blank format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = " , "
			},
			wantErr: "output format",
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
	if cfg.PageSize != 50 || cfg.MaxPages != 5 || cfg.MaxRetries != 3 {
		t.Fatalf("unexpected defaults: page size %d, max pages %d, retries %d", cfg.PageSize, cfg.MaxPages, cfg.MaxRetries)
	}
}

func TestOutputFormats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{format: "json", want: []string{"json"}},
		{format: "dual", want: []string{"csv", "json"}},
		{format: "JSON, kafka", want: []string{"json", "kafka"}},
		{format: "dual,redis,", want: []string{"csv", "json", "redis"}},
		{format: "", want: nil},
	}
	for _, tt := range tests {
		cfg := &Config{OutputFormat: tt.format}
		if got := cfg.OutputFormats(); !slices.Equal(got, tt.want) {
			t.Fatalf("OutputFormats(%q) = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded defaults should validate, got %v", err)
	}
	if cfg.Delay != time.Second {
		t.Fatalf("delay = %v, want 1s", cfg.Delay)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARVEST_MAX_PAGES", "9")
	t.Setenv("HARVEST_RETRY_BACKOFF", "250ms")
	t.Setenv("HARVEST_STRICT_FORBIDDEN", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPages != 9 {
		t.Fatalf("max pages = %d, want 9", cfg.MaxPages)
	}
	if cfg.RetryBackoff != 250*time.Millisecond {
		t.Fatalf("retry backoff = %v, want 250ms", cfg.RetryBackoff)
	}
	if !cfg.StrictForbidden {
		t.Fatalf("strict forbidden should be enabled")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvest.yaml")
	content := "categories:\n  - women-dresses\n  - kids-shoes\npage_size: 20\ntimeout: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[0] != "women-dresses" {
		t.Fatalf("categories = %v", cfg.Categories)
	}
	if cfg.PageSize != 20 {
		t.Fatalf("page size = %d, want 20", cfg.PageSize)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.MaxPages != 5 {
		t.Fatalf("max pages should keep default, got %d", cfg.MaxPages)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
