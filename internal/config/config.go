// Package config loads and validates tracker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jbouvier/intelwatch/internal/scrape"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scraping   ScrapingConfig   `mapstructure:"scraping"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ScrapingConfig governs the fetch engine.
type ScrapingConfig struct {
	MaxWorkers         int      `mapstructure:"max_workers"`
	MinDelaySeconds    float64  `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds    float64  `mapstructure:"max_delay_seconds"`
	RequestTimeoutSecs int      `mapstructure:"request_timeout_seconds"`
	MaxRetries         int      `mapstructure:"max_retries"`
	RetryBaseSeconds   float64  `mapstructure:"retry_base_delay_seconds"`
	RunDeadlineSecs    int      `mapstructure:"run_deadline_seconds"`
	UserAgents         []string `mapstructure:"user_agents"`
	RotateAfter        int      `mapstructure:"rotate_identity_after"`
}

// SourcesConfig groups sources by tier; tier1 is the highest priority.
type SourcesConfig struct {
	Tier1 []SourceConfig `mapstructure:"tier1"`
	Tier2 []SourceConfig `mapstructure:"tier2"`
	Tier3 []SourceConfig `mapstructure:"tier3"`
}

// SourceConfig is one scrape target as written in the config file.
type SourceConfig struct {
	Name            string           `mapstructure:"name"`
	URL             string           `mapstructure:"url"`
	RSS             string           `mapstructure:"rss"`
	Alternate       string           `mapstructure:"alternate"`
	Selectors       []SelectorConfig `mapstructure:"selectors"`
	DateFormats     []string         `mapstructure:"date_formats"`
	MinDelaySeconds float64          `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds float64          `mapstructure:"max_delay_seconds"`
}

// SelectorConfig is one CSS selector rule set, highest priority first.
type SelectorConfig struct {
	Container string `mapstructure:"container"`
	Title     string `mapstructure:"title"`
	Body      string `mapstructure:"body"`
	Date      string `mapstructure:"date"`
	Link      string `mapstructure:"link"`
}

// ProcessingConfig governs validation, relevance, and enrichment.
type ProcessingConfig struct {
	Keywords         []string `mapstructure:"keywords"`
	MinKeywordHits   int      `mapstructure:"min_keyword_hits"`
	MinContentLength int      `mapstructure:"min_content_length"`
	MaxContentLength int      `mapstructure:"max_content_length"`
	SummaryWords     int      `mapstructure:"summary_words"`
	KeyPhraseLimit   int      `mapstructure:"key_phrase_limit"`
	BodyParagraphs   int      `mapstructure:"body_paragraphs"`
}

// HeadlessConfig configures the headless fallback strategy.
type HeadlessConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
}

// DedupConfig locates the persisted seen-set.
type DedupConfig struct {
	Path    string `mapstructure:"path"`
	Persist bool   `mapstructure:"persist"`
}

// ReportsConfig controls report output.
type ReportsConfig struct {
	OutputDir string   `mapstructure:"output_dir"`
	Formats   []string `mapstructure:"formats"`
}

// DashboardConfig controls the results dashboard server.
type DashboardConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment. Env vars use the
// INTELWATCH prefix with underscores, e.g. INTELWATCH_DASHBOARD_PORT.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INTELWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraping.max_workers", 5)
	v.SetDefault("scraping.min_delay_seconds", 2.0)
	v.SetDefault("scraping.max_delay_seconds", 5.0)
	v.SetDefault("scraping.request_timeout_seconds", 30)
	v.SetDefault("scraping.max_retries", 3)
	v.SetDefault("scraping.retry_base_delay_seconds", 2.0)
	v.SetDefault("scraping.run_deadline_seconds", 0)
	v.SetDefault("scraping.rotate_identity_after", 25)
	v.SetDefault("processing.min_keyword_hits", 1)
	v.SetDefault("processing.min_content_length", 100)
	v.SetDefault("processing.max_content_length", 50000)
	v.SetDefault("processing.summary_words", 80)
	v.SetDefault("processing.key_phrase_limit", 5)
	v.SetDefault("processing.body_paragraphs", 3)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.domain_qps", 0.5)
	v.SetDefault("dedup.path", "data/seen.db")
	v.SetDefault("dedup.persist", true)
	v.SetDefault("reports.output_dir", "reports")
	v.SetDefault("reports.formats", []string{"markdown", "json"})
	v.SetDefault("dashboard.host", "127.0.0.1")
	v.SetDefault("dashboard.port", 8050)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and sensible limits.
func (c Config) Validate() error {
	if c.Scraping.MaxWorkers <= 0 {
		return fmt.Errorf("scraping.max_workers must be > 0")
	}
	if c.Scraping.MinDelaySeconds < 0 {
		return fmt.Errorf("scraping.min_delay_seconds must be >= 0")
	}
	if c.Scraping.MaxDelaySeconds < c.Scraping.MinDelaySeconds {
		return fmt.Errorf("scraping.max_delay_seconds must be >= scraping.min_delay_seconds")
	}
	if c.Scraping.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("scraping.request_timeout_seconds must be > 0")
	}
	if c.Scraping.MaxRetries <= 0 {
		return fmt.Errorf("scraping.max_retries must be > 0")
	}
	if c.Scraping.RetryBaseSeconds <= 0 {
		return fmt.Errorf("scraping.retry_base_delay_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Dedup.Persist && c.Dedup.Path == "" {
		return fmt.Errorf("dedup.path must be set when dedup.persist is enabled")
	}
	if c.Dashboard.Port <= 0 {
		return fmt.Errorf("dashboard.port must be > 0")
	}
	for _, format := range c.Reports.Formats {
		switch format {
		case "markdown", "json", "csv":
		default:
			return fmt.Errorf("unknown report format %q", format)
		}
	}
	for tier, group := range map[string][]SourceConfig{
		"tier1": c.Sources.Tier1, "tier2": c.Sources.Tier2, "tier3": c.Sources.Tier3,
	} {
		for i, sc := range group {
			if sc.Name == "" {
				return fmt.Errorf("sources.%s[%d]: name is required", tier, i)
			}
			if sc.URL == "" && sc.RSS == "" {
				return fmt.Errorf("sources.%s[%d] (%s): url or rss is required", tier, i, sc.Name)
			}
			if sc.MaxDelaySeconds != 0 && sc.MaxDelaySeconds < sc.MinDelaySeconds {
				return fmt.Errorf("sources.%s[%d] (%s): max_delay_seconds must be >= min_delay_seconds", tier, i, sc.Name)
			}
		}
	}
	return nil
}

// EngineSources flattens the tier groups into engine sources, tier order
// preserved. Sources without their own politeness window inherit the global
// one.
func (c Config) EngineSources() []scrape.Source {
	var out []scrape.Source
	for tier, group := range [][]SourceConfig{c.Sources.Tier1, c.Sources.Tier2, c.Sources.Tier3} {
		for _, sc := range group {
			out = append(out, sc.toSource(tier+1, c.MinDelay(), c.MaxDelay()))
		}
	}
	return out
}

func (sc SourceConfig) toSource(tier int, defaultMin, defaultMax time.Duration) scrape.Source {
	selectors := make([]scrape.SelectorRules, 0, len(sc.Selectors))
	for _, sel := range sc.Selectors {
		selectors = append(selectors, scrape.SelectorRules{
			Container: sel.Container,
			Title:     sel.Title,
			Body:      sel.Body,
			Date:      sel.Date,
			Link:      sel.Link,
		})
	}
	minDelay := secondsToDuration(sc.MinDelaySeconds)
	maxDelay := secondsToDuration(sc.MaxDelaySeconds)
	if maxDelay == 0 {
		minDelay, maxDelay = defaultMin, defaultMax
	}
	return scrape.Source{
		Name:         sc.Name,
		URL:          sc.URL,
		RSSURL:       sc.RSS,
		AlternateURL: sc.Alternate,
		Selectors:    selectors,
		DateLayouts:  sc.DateFormats,
		Tier:         tier,
		MinDelay:     minDelay,
		MaxDelay:     maxDelay,
	}
}

// MinDelay returns the default politeness window floor.
func (c Config) MinDelay() time.Duration {
	return secondsToDuration(c.Scraping.MinDelaySeconds)
}

// MaxDelay returns the default politeness window ceiling.
func (c Config) MaxDelay() time.Duration {
	return secondsToDuration(c.Scraping.MaxDelaySeconds)
}

// RequestTimeout returns the per-request HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Scraping.RequestTimeoutSecs) * time.Second
}

// RetryBaseDelay returns the backoff seed between retry attempts.
func (c Config) RetryBaseDelay() time.Duration {
	return secondsToDuration(c.Scraping.RetryBaseSeconds)
}

// RunDeadline returns the whole-run budget, zero when unlimited.
func (c Config) RunDeadline() time.Duration {
	return time.Duration(c.Scraping.RunDeadlineSecs) * time.Second
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
