// Package scrape defines core types shared across the gathering engine.
package scrape

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Strategy identifies one retrieval method for a source. Strategies are
// tried in a fixed priority order; advancing to the next one is a fallback,
// not a retry.
type Strategy string

// Retrieval strategies in priority order.
const (
	StrategyHTML      Strategy = "html"
	StrategyRSS       Strategy = "rss"
	StrategyAlternate Strategy = "alternate"
	StrategyHeadless  Strategy = "headless"
)

// SelectorRules is one rule set of CSS selectors used to pull articles out
// of an HTML page. Rule sets are ordered by priority on the Source; the
// first one that yields a plausible result wins.
type SelectorRules struct {
	Container string
	Title     string
	Body      string
	Date      string
	Link      string
}

// Source is a configured scrape target. It is immutable for the duration
// of a run; the engine only reads it.
type Source struct {
	Name         string
	URL          string
	RSSURL       string
	AlternateURL string
	Selectors    []SelectorRules
	DateLayouts  []string
	Tier         int
	MinDelay     time.Duration
	MaxDelay     time.Duration
}

// Domain returns the lowercase host the source lives on, taken from the
// first endpoint that parses. Feed-only sources resolve through their RSS
// URL.
func (s Source) Domain() string {
	for _, raw := range []string{s.URL, s.RSSURL, s.AlternateURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
	}
	return ""
}

// Page is the raw result of one HTTP or headless retrieval.
type Page struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	UsedHeadless bool
	Duration     time.Duration
}

// RawContent is the fetched payload handed to extraction, tagged with the
// strategy that produced it. It is consumed exactly once.
type RawContent struct {
	Source    Source
	Strategy  Strategy
	Body      []byte
	FetchedAt time.Time
}

// CandidateArticle is one extracted article before dedup/relevance checks.
type CandidateArticle struct {
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Published *time.Time `json:"published,omitempty"`
	URL       string     `json:"url"`
	Source    string     `json:"source"`
	Tier      int        `json:"tier"`
	RuleSet   int        `json:"rule_set"`
}

// Article is an accepted, deduplicated article. Never mutated after
// acceptance.
type Article struct {
	CandidateArticle
	Fingerprint  string    `json:"fingerprint"`
	CanonicalURL string    `json:"canonical_url"`
	Summary      string    `json:"summary"`
	KeyPhrases   []string  `json:"key_phrases,omitempty"`
	Relevant     bool      `json:"relevant"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// ErrorKind classifies fetch and extraction failures so callers can act on
// them without string matching.
type ErrorKind string

// Failure taxonomy. Transient failures are retried with backoff, blocked
// responses trigger identity rotation, not-found advances the strategy.
const (
	ErrKindNone           ErrorKind = ""
	ErrKindTransient      ErrorKind = "transient_network"
	ErrKindBlocked        ErrorKind = "blocked"
	ErrKindNotFound       ErrorKind = "not_found"
	ErrKindExtractionMiss ErrorKind = "extraction_miss"
	ErrKindMalformed      ErrorKind = "malformed_content"
	ErrKindConfig         ErrorKind = "configuration"
	ErrKindDeadline       ErrorKind = "deadline"
	ErrKindInternal       ErrorKind = "internal"
)

// OutcomeStatus is the terminal state of one source in a run.
type OutcomeStatus string

// Per-source terminal states.
const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// SourceOutcome records how one source fared, whatever happened.
type SourceOutcome struct {
	Source      string        `json:"source"`
	Status      OutcomeStatus `json:"status"`
	Strategy    Strategy      `json:"strategy,omitempty"`
	Attempts    int           `json:"attempts"`
	Fallback    bool          `json:"fallback"`
	ErrorKind   ErrorKind     `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Articles    int           `json:"articles"`
	Duplicates  int           `json:"duplicates"`
	NonRelevant int           `json:"non_relevant"`
	Elapsed     time.Duration `json:"elapsed"`
}

// RunStats aggregates counters across the whole run.
type RunStats struct {
	SourcesAttempted int `json:"sources_attempted"`
	SourcesSucceeded int `json:"sources_succeeded"`
	SourcesFailed    int `json:"sources_failed"`
	SourcesSkipped   int `json:"sources_skipped"`
	ArticlesAccepted int `json:"articles_accepted"`
	Duplicates       int `json:"duplicates"`
	NonRelevant      int `json:"non_relevant"`
	FallbacksUsed    int `json:"fallbacks_used"`
}

// RunResult is everything one gathering pass produced.
type RunResult struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Articles   []Article       `json:"articles"`
	Outcomes   []SourceOutcome `json:"outcomes"`
	Stats      RunStats        `json:"stats"`
	Incomplete bool            `json:"incomplete"`
}
