package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// attemptOutcome is the resolution of a single fetch attempt. Expected
// failures (404, 429, timeouts) flow through this enum instead of error
// string matching.
type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeRetry
	outcomeAdvance
	outcomeFail
)

// FetchError is the terminal failure of one strategy (or of the whole
// source when every strategy is exhausted).
type FetchError struct {
	Kind     ErrorKind
	Strategy Strategy
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Strategy, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Strategy, e.Kind)
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// FetcherConfig tunes retry behavior.
type FetcherConfig struct {
	// MaxAttempts is the retry budget per strategy.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff between attempts:
	// base, 2*base, 4*base, ...
	BaseDelay time.Duration
}

// Fetcher performs the "get content for a source" operation: politeness
// acquisition, request through the domain session, retry with backoff,
// identity rotation on blocking responses. Strategy advancement is driven
// by the caller, which alone knows whether extraction succeeded.
type Fetcher struct {
	limiter  *RateLimiter
	sessions *SessionStore
	client   *HTTPFetcher
	headless Renderer
	cfg      FetcherConfig
	pauser   Pauser
	clock    Clock
	logger   *zap.Logger
}

// NewFetcher wires a Fetcher. headless may be nil, which removes the
// headless strategy from every source's cascade.
func NewFetcher(
	limiter *RateLimiter,
	sessions *SessionStore,
	client *HTTPFetcher,
	headless Renderer,
	cfg FetcherConfig,
	logger *zap.Logger,
) *Fetcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		limiter:  limiter,
		sessions: sessions,
		client:   client,
		headless: headless,
		cfg:      cfg,
		pauser:   TimerPauser{},
		clock:    SystemClock{},
		logger:   logger,
	}
}

// Strategies returns the retrieval cascade configured for src, in priority
// order. Only strategies with a usable endpoint appear; a feed-only source
// starts (and may end) at RSS. Headless renders the listing page, so it
// needs a page URL too.
func (f *Fetcher) Strategies(src Source) []Strategy {
	var out []Strategy
	if src.URL != "" {
		out = append(out, StrategyHTML)
	}
	if src.RSSURL != "" {
		out = append(out, StrategyRSS)
	}
	if src.AlternateURL != "" {
		out = append(out, StrategyAlternate)
	}
	if f.headless != nil && src.URL != "" {
		out = append(out, StrategyHeadless)
	}
	return out
}

// FetchStrategy runs the attempt loop for one strategy. It returns the raw
// content on success, or a FetchError whose kind tells the caller whether to
// advance the cascade or give up on the source. The returned count is the
// number of attempts consumed.
func (f *Fetcher) FetchStrategy(ctx context.Context, src Source, strat Strategy) (RawContent, int, error) {
	target := f.strategyURL(src, strat)
	if target == "" {
		return RawContent{}, 0, &FetchError{Kind: ErrKindConfig, Strategy: strat, Err: errors.New("no endpoint configured")}
	}
	domain := src.Domain()

	var lastKind ErrorKind
	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := f.cfg.BaseDelay << (attempt - 2)
			f.logger.Debug("backing off before retry",
				zap.String("source", src.Name),
				zap.String("strategy", string(strat)),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			f.pauser.Pause(ctx, backoff)
			retriesTotal.Inc()
		}
		if err := ctx.Err(); err != nil {
			return RawContent{}, attempt - 1, &FetchError{Kind: ErrKindDeadline, Strategy: strat, Err: err}
		}
		if err := f.limiter.Acquire(ctx, domain); err != nil {
			return RawContent{}, attempt - 1, &FetchError{Kind: ErrKindDeadline, Strategy: strat, Err: err}
		}

		page, err := f.get(ctx, strat, target, domain)
		requestsTotal.Inc()
		outcome, kind := classifyAttempt(page, err)

		switch outcome {
		case outcomeSuccess:
			f.logger.Debug("fetch succeeded",
				zap.String("source", src.Name),
				zap.String("strategy", string(strat)),
				zap.Int("attempt", attempt),
				zap.Int("status", page.StatusCode),
			)
			return RawContent{
				Source:    src,
				Strategy:  strat,
				Body:      page.Body,
				FetchedAt: f.clock.Now(),
			}, attempt, nil
		case outcomeAdvance:
			return RawContent{}, attempt, &FetchError{Kind: kind, Strategy: strat, Err: err}
		case outcomeFail:
			return RawContent{}, attempt, &FetchError{Kind: kind, Strategy: strat, Err: err}
		case outcomeRetry:
			if kind == ErrKindBlocked {
				blockedTotal.Inc()
				f.sessions.Rotate(domain)
				f.logger.Warn("blocking response, rotated identity",
					zap.String("source", src.Name),
					zap.String("domain", domain),
					zap.Int("status", page.StatusCode),
				)
			}
			lastKind = kind
			lastErr = err
		}
	}

	return RawContent{}, f.cfg.MaxAttempts, &FetchError{Kind: lastKind, Strategy: strat, Err: lastErr}
}

func (f *Fetcher) get(ctx context.Context, strat Strategy, target, domain string) (Page, error) {
	if strat == StrategyHeadless {
		return f.headless.Render(ctx, target)
	}
	sess := f.sessions.Get(domain)
	return f.client.Get(ctx, target, sess)
}

func (f *Fetcher) strategyURL(src Source, strat Strategy) string {
	switch strat {
	case StrategyRSS:
		return src.RSSURL
	case StrategyAlternate:
		return src.AlternateURL
	default:
		return src.URL
	}
}

// classifyAttempt maps a raw page/error pair onto the failure taxonomy.
// The blocked-vs-not-found split is status-code based; that heuristic is the
// weakest point of the classification and may need per-site refinement.
func classifyAttempt(page Page, err error) (attemptOutcome, ErrorKind) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return outcomeFail, ErrKindDeadline
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return outcomeRetry, ErrKindTransient
		}
		return outcomeRetry, ErrKindTransient
	}

	switch {
	case page.StatusCode == 404 || page.StatusCode == 410:
		return outcomeAdvance, ErrKindNotFound
	case page.StatusCode == 403 || page.StatusCode == 429:
		return outcomeRetry, ErrKindBlocked
	case page.StatusCode >= 500:
		return outcomeRetry, ErrKindTransient
	case page.StatusCode >= 200 && page.StatusCode < 300 && len(page.Body) > 0:
		return outcomeSuccess, ErrKindNone
	case page.StatusCode == 0 && len(page.Body) > 0:
		// Headless renders may not surface a status code.
		return outcomeSuccess, ErrKindNone
	default:
		return outcomeRetry, ErrKindTransient
	}
}
