package scrape

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jbouvier/intelwatch/internal/logging"
)

// OrchestratorConfig controls the worker pool.
type OrchestratorConfig struct {
	// Workers bounds how many sources are processed in parallel.
	Workers int
	// Deadline caps the whole run. Zero means no deadline. On expiry,
	// in-flight sources finish their current attempt, no new source is
	// dispatched, and the result is flagged incomplete.
	Deadline time.Duration
}

// Orchestrator fans a bounded worker pool out over the configured sources
// and joins results into one RunResult. A single source's failure is never
// fatal to the run.
type Orchestrator struct {
	fetcher   *Fetcher
	extractor Extractor
	admitter  Admitter
	limiter   *RateLimiter
	cfg       OrchestratorConfig
	clock     Clock
	logger    *zap.Logger
}

// NewOrchestrator wires the engine together.
func NewOrchestrator(
	fetcher *Fetcher,
	extractor Extractor,
	admitter Admitter,
	limiter *RateLimiter,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		admitter:  admitter,
		limiter:   limiter,
		cfg:       cfg,
		clock:     SystemClock{},
		logger:    logger,
	}
}

type sourceReport struct {
	outcome  SourceOutcome
	articles []Article
}

// Run processes every source and returns the aggregate result. It always
// returns a RunResult; per-source failures surface only in the outcome
// records.
func (o *Orchestrator) Run(ctx context.Context, sources []Source) RunResult {
	started := o.clock.Now()
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.cfg.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.Deadline)
	}
	defer cancel()

	jobs := make(chan Source)
	reports := make(chan sourceReport)

	var producers sync.WaitGroup
	producers.Add(o.cfg.Workers + 1)

	for i := 0; i < o.cfg.Workers; i++ {
		go func() {
			defer producers.Done()
			for src := range jobs {
				reports <- o.processSource(runCtx, src)
			}
		}()
	}

	go func() {
		defer producers.Done()
		defer close(jobs)
		for _, src := range sources {
			select {
			case <-runCtx.Done():
				reports <- skippedReport(src, runCtx.Err())
			case jobs <- src:
			}
		}
	}()

	go func() {
		producers.Wait()
		close(reports)
	}()

	result := RunResult{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	for rep := range reports {
		o.record(&result, rep)
	}

	sortArticles(result.Articles)
	result.FinishedAt = o.clock.Now()
	result.Incomplete = runCtx.Err() != nil || result.Stats.SourcesSkipped > 0

	o.logger.Info("run finished",
		zap.String("run_id", result.RunID),
		zap.Int("sources_attempted", result.Stats.SourcesAttempted),
		zap.Int("sources_succeeded", result.Stats.SourcesSucceeded),
		zap.Int("sources_failed", result.Stats.SourcesFailed),
		zap.Int("articles", result.Stats.ArticlesAccepted),
		zap.Int("duplicates", result.Stats.Duplicates),
		zap.Bool("incomplete", result.Incomplete),
	)
	return result
}

func (o *Orchestrator) record(result *RunResult, rep sourceReport) {
	result.Outcomes = append(result.Outcomes, rep.outcome)
	result.Articles = append(result.Articles, rep.articles...)

	switch rep.outcome.Status {
	case OutcomeSuccess:
		result.Stats.SourcesAttempted++
		result.Stats.SourcesSucceeded++
		sourcesSucceededTotal.Inc()
		if rep.outcome.Fallback {
			result.Stats.FallbacksUsed++
			fallbacksTotal.WithLabelValues(string(rep.outcome.Strategy)).Inc()
		}
	case OutcomeFailed:
		result.Stats.SourcesAttempted++
		result.Stats.SourcesFailed++
		sourcesFailedTotal.Inc()
	case OutcomeSkipped:
		result.Stats.SourcesSkipped++
	}
	result.Stats.ArticlesAccepted += rep.outcome.Articles
	result.Stats.Duplicates += rep.outcome.Duplicates
	result.Stats.NonRelevant += rep.outcome.NonRelevant
	for i := 0; i < rep.outcome.Articles; i++ {
		articlesAcceptedTotal.Inc()
	}
	for i := 0; i < rep.outcome.Duplicates; i++ {
		duplicatesTotal.Inc()
	}
	for i := 0; i < rep.outcome.NonRelevant; i++ {
		nonRelevantTotal.Inc()
	}
}

// processSource runs the full pipeline for one source. Errors, including
// panics from misbehaving parsers, are contained at this boundary.
func (o *Orchestrator) processSource(ctx context.Context, src Source) (rep sourceReport) {
	logger := logging.ForSource(o.logger, src.Name)
	start := o.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing source", zap.Any("panic", r))
			rep = failedReport(src, &FetchError{Kind: ErrKindInternal, Err: fmt.Errorf("panic: %v", r)}, 0)
		}
		rep.outcome.Elapsed = o.clock.Now().Sub(start)
	}()

	if err := validateSource(src); err != nil {
		logger.Warn("source misconfigured", zap.Error(err))
		return failedReport(src, &FetchError{Kind: ErrKindConfig, Err: err}, 0)
	}
	o.limiter.Configure(src.Domain(), src.MinDelay, src.MaxDelay)

	strategies := o.fetcher.Strategies(src)
	var last *FetchError
	attempts := 0
	for i, strat := range strategies {
		if ctx.Err() != nil {
			return skippedReport(src, ctx.Err())
		}

		raw, n, err := o.fetcher.FetchStrategy(ctx, src, strat)
		attempts += n
		if err != nil {
			var fe *FetchError
			if !errors.As(err, &fe) {
				fe = &FetchError{Kind: ErrKindTransient, Strategy: strat, Err: err}
			}
			if fe.Kind == ErrKindDeadline {
				rep := skippedReport(src, fe.Err)
				rep.outcome.Attempts = attempts
				return rep
			}
			logger.Debug("strategy exhausted, advancing",
				zap.String("strategy", string(strat)),
				zap.String("kind", string(fe.Kind)),
			)
			last = fe
			continue
		}

		candidates, xerr := o.extractor.Extract(raw)
		if xerr != nil {
			last = &FetchError{Kind: ErrKindMalformed, Strategy: strat, Err: xerr}
			continue
		}
		if len(candidates) == 0 {
			// Not an error: the next strategy supplies content instead.
			last = &FetchError{Kind: ErrKindExtractionMiss, Strategy: strat}
			continue
		}

		rep = sourceReport{outcome: SourceOutcome{
			Source:   src.Name,
			Status:   OutcomeSuccess,
			Strategy: strat,
			Attempts: attempts,
			Fallback: i > 0,
		}}
		for _, cand := range candidates {
			article, decision := o.admitter.Admit(cand)
			switch decision {
			case DecisionAccepted:
				rep.articles = append(rep.articles, article)
				rep.outcome.Articles++
			case DecisionDuplicate:
				rep.outcome.Duplicates++
			case DecisionNotRelevant:
				rep.outcome.NonRelevant++
			}
		}
		logger.Info("source scraped",
			zap.String("strategy", string(strat)),
			zap.Int("articles", rep.outcome.Articles),
			zap.Int("duplicates", rep.outcome.Duplicates),
			zap.Bool("fallback", rep.outcome.Fallback),
		)
		return rep
	}

	logger.Warn("source failed, all strategies exhausted", zap.Int("attempts", attempts))
	return failedReport(src, last, attempts)
}

func validateSource(src Source) error {
	if src.Name == "" {
		return errors.New("source name is required")
	}
	if src.URL == "" && src.RSSURL == "" {
		return errors.New("source url or rss url is required")
	}
	if src.Domain() == "" {
		return fmt.Errorf("source %s has no resolvable domain", src.Name)
	}
	return nil
}

func failedReport(src Source, fe *FetchError, attempts int) sourceReport {
	outcome := SourceOutcome{
		Source:   src.Name,
		Status:   OutcomeFailed,
		Attempts: attempts,
	}
	if fe != nil {
		outcome.ErrorKind = fe.Kind
		outcome.Strategy = fe.Strategy
		outcome.Error = fe.Error()
	}
	return sourceReport{outcome: outcome}
}

func skippedReport(src Source, cause error) sourceReport {
	outcome := SourceOutcome{
		Source:    src.Name,
		Status:    OutcomeSkipped,
		ErrorKind: ErrKindDeadline,
	}
	if cause != nil {
		outcome.Error = cause.Error()
	}
	return sourceReport{outcome: outcome}
}

// sortArticles orders by tier, then newest first; articles with unknown
// publish times sort last within their tier.
func sortArticles(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		switch {
		case a.Published == nil && b.Published == nil:
			return false
		case a.Published == nil:
			return false
		case b.Published == nil:
			return true
		default:
			return a.Published.After(*b.Published)
		}
	})
}
