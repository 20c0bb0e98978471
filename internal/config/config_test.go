package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
scraping:
  max_workers: 3
  min_delay_seconds: 1.5
  max_delay_seconds: 4
  request_timeout_seconds: 20
  max_retries: 2
  retry_base_delay_seconds: 1
  run_deadline_seconds: 120
processing:
  keywords: ["funding", "acquisition"]
  min_content_length: 150
headless:
  enabled: true
  max_parallel: 2
  nav_timeout_seconds: 30
dedup:
  path: /tmp/seen.db
  persist: true
reports:
  output_dir: out
  formats: ["markdown", "csv"]
dashboard:
  port: 9000
logging:
  development: true
sources:
  tier1:
    - name: techcrunch
      url: https://techcrunch.com/startups/
      rss: https://techcrunch.com/feed/
      min_delay_seconds: 3
      max_delay_seconds: 6
      selectors:
        - container: article.post-block
          title: h2
          body: div.post-block__content
  tier2:
    - name: hackernews
      url: https://news.ycombinator.com/
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scraping.MaxWorkers != 3 {
		t.Fatalf("expected 3 workers, got %d", cfg.Scraping.MaxWorkers)
	}
	if got := cfg.RunDeadline(); got != 2*time.Minute {
		t.Fatalf("expected 2m deadline, got %v", got)
	}
	if got := cfg.RequestTimeout(); got != 20*time.Second {
		t.Fatalf("expected 20s request timeout, got %v", got)
	}
	if len(cfg.Processing.Keywords) != 2 {
		t.Fatalf("expected keywords to load: %+v", cfg.Processing.Keywords)
	}
	if !cfg.Headless.Enabled || cfg.Headless.MaxParallel != 2 {
		t.Fatalf("expected headless overrides to apply: %+v", cfg.Headless)
	}
	if len(cfg.Reports.Formats) != 2 || cfg.Reports.Formats[1] != "csv" {
		t.Fatalf("expected report formats to load: %+v", cfg.Reports.Formats)
	}

	sources := cfg.EngineSources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 flattened sources, got %d", len(sources))
	}
	first := sources[0]
	if first.Name != "techcrunch" || first.Tier != 1 {
		t.Fatalf("expected techcrunch at tier 1, got %+v", first)
	}
	if first.MinDelay != 3*time.Second || first.MaxDelay != 6*time.Second {
		t.Fatalf("expected per-source delay window, got %v-%v", first.MinDelay, first.MaxDelay)
	}
	if len(first.Selectors) != 1 || first.Selectors[0].Container != "article.post-block" {
		t.Fatalf("expected selector rules to carry through: %+v", first.Selectors)
	}
	second := sources[1]
	if second.Tier != 2 {
		t.Fatalf("expected hackernews at tier 2, got %d", second.Tier)
	}
	// No per-source window set, so it inherits the global one.
	if second.MinDelay != 1500*time.Millisecond || second.MaxDelay != 4*time.Second {
		t.Fatalf("expected inherited delay window, got %v-%v", second.MinDelay, second.MaxDelay)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scraping.MaxWorkers != 5 {
		t.Fatalf("expected default worker count, got %d", cfg.Scraping.MaxWorkers)
	}
	if cfg.Dashboard.Port != 8050 {
		t.Fatalf("expected default dashboard port, got %d", cfg.Dashboard.Port)
	}
	if cfg.Processing.BodyParagraphs != 3 {
		t.Fatalf("expected default paragraph cap, got %d", cfg.Processing.BodyParagraphs)
	}
	if got := cfg.RunDeadline(); got != 0 {
		t.Fatalf("expected unlimited deadline by default, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Scraping: ScrapingConfig{
			MaxWorkers:         2,
			MinDelaySeconds:    1,
			MaxDelaySeconds:    3,
			RequestTimeoutSecs: 10,
			MaxRetries:         3,
			RetryBaseSeconds:   2,
		},
		Dashboard: DashboardConfig{Port: 8050},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid workers",
			cfg: func() Config {
				c := base
				c.Scraping.MaxWorkers = 0
				return c
			}(),
			want: "scraping.max_workers",
		},
		{
			name: "inverted delay window",
			cfg: func() Config {
				c := base
				c.Scraping.MaxDelaySeconds = 0.5
				return c
			}(),
			want: "scraping.max_delay_seconds",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.Scraping.RequestTimeoutSecs = 0
				return c
			}(),
			want: "scraping.request_timeout_seconds",
		},
		{
			name: "headless missing max parallel",
			cfg: func() Config {
				c := base
				c.Headless.Enabled = true
				return c
			}(),
			want: "headless.max_parallel",
		},
		{
			name: "persist without path",
			cfg: func() Config {
				c := base
				c.Dedup.Persist = true
				return c
			}(),
			want: "dedup.path",
		},
		{
			name: "unknown report format",
			cfg: func() Config {
				c := base
				c.Reports.Formats = []string{"pdf"}
				return c
			}(),
			want: "report format",
		},
		{
			name: "source without url or rss",
			cfg: func() Config {
				c := base
				c.Sources.Tier1 = []SourceConfig{{Name: "broken"}}
				return c
			}(),
			want: "url or rss",
		},
		{
			name: "source without name",
			cfg: func() Config {
				c := base
				c.Sources.Tier3 = []SourceConfig{{URL: "https://example.com"}}
				return c
			}(),
			want: "name is required",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
