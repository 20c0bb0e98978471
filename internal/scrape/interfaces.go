package scrape

import (
	"context"
	"time"
)

// Extractor turns raw content into candidate articles. Implementations pick
// the parsing path from the content's strategy (selector cascade for HTML,
// direct entry mapping for feeds).
type Extractor interface {
	Extract(raw RawContent) ([]CandidateArticle, error)
}

// Decision is the result of admitting one candidate.
type Decision int

// Admission decisions.
const (
	DecisionAccepted Decision = iota
	DecisionDuplicate
	DecisionNotRelevant
)

// Admitter applies dedup and relevance checks atomically. A check-then-insert
// race must never let two duplicates both pass.
type Admitter interface {
	Admit(candidate CandidateArticle) (Article, Decision)
}

// Renderer produces a DOM snapshot via a headless browser.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Pauser abstracts how the engine sleeps during backoff and politeness waits.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// SystemClock implements Clock using time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// TimerPauser implements Pauser with a context-aware timer.
type TimerPauser struct{}

// Pause blocks for delay or until the context finishes.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
