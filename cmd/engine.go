package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jbouvier/intelwatch/internal/config"
	"github.com/jbouvier/intelwatch/internal/dedup"
	"github.com/jbouvier/intelwatch/internal/extract"
	"github.com/jbouvier/intelwatch/internal/report"
	"github.com/jbouvier/intelwatch/internal/scrape"
)

// engine bundles the wired gathering pipeline and its lifecycle.
type engine struct {
	orch     *scrape.Orchestrator
	detector *dedup.Detector
	store    dedup.SeenStore
	headless *scrape.HeadlessRenderer
	sources  []scrape.Source
	cfg      config.Config
	logger   *zap.Logger
}

// buildEngine assembles the pipeline from configuration.
func buildEngine(cfg config.Config, logger *zap.Logger) (*engine, error) {
	sources := cfg.EngineSources()
	if len(sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	limiter := scrape.NewRateLimiter(cfg.MinDelay(), cfg.MaxDelay())
	sessions := scrape.NewSessionStore(cfg.Scraping.UserAgents, cfg.Scraping.RotateAfter, logger)
	client := scrape.NewHTTPFetcher(scrape.HTTPFetcherConfig{
		RequestTimeout: cfg.RequestTimeout(),
	}, logger)

	var renderer scrape.Renderer
	var headless *scrape.HeadlessRenderer
	if cfg.Headless.Enabled {
		r, err := scrape.NewHeadlessRenderer(scrape.HeadlessConfig{
			MaxConcurrency: cfg.Headless.MaxParallel,
			NavTimeout:     time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			DomainQPS:      cfg.Headless.DomainQPS,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("start headless renderer: %w", err)
		}
		renderer = r
		headless = r
	}

	fetcher := scrape.NewFetcher(limiter, sessions, client, renderer, scrape.FetcherConfig{
		MaxAttempts: cfg.Scraping.MaxRetries,
		BaseDelay:   cfg.RetryBaseDelay(),
	}, logger)

	extractor := extract.New(extract.Config{
		BodyParagraphs: cfg.Processing.BodyParagraphs,
	}, logger)

	detector := dedup.NewDetector(dedup.Config{
		Keywords:       cfg.Processing.Keywords,
		MinKeywordHits: cfg.Processing.MinKeywordHits,
		MinBodyLength:  cfg.Processing.MinContentLength,
		MaxBodyLength:  cfg.Processing.MaxContentLength,
		SummaryWords:   cfg.Processing.SummaryWords,
		KeyPhraseLimit: cfg.Processing.KeyPhraseLimit,
	}, logger)

	var store dedup.SeenStore
	if cfg.Dedup.Persist {
		s, err := dedup.NewSQLiteStore(cfg.Dedup.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open dedup store: %w", err)
		}
		store = s
	} else {
		store = dedup.NewMemoryStore()
	}

	orch := scrape.NewOrchestrator(fetcher, extractor, detector, limiter, scrape.OrchestratorConfig{
		Workers:  cfg.Scraping.MaxWorkers,
		Deadline: cfg.RunDeadline(),
	}, logger)

	return &engine{
		orch:     orch,
		detector: detector,
		store:    store,
		headless: headless,
		sources:  sources,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// runOnce executes a full gathering pass: seed the detector from the store,
// run every source, persist the grown seen-set, and write the reports.
func (e *engine) runOnce(ctx context.Context) (*scrape.RunResult, error) {
	seen, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load seen-set: %w", err)
	}
	e.detector.Seed(seen)

	result := e.orch.Run(ctx, e.sources)

	if err := e.store.Save(context.WithoutCancel(ctx), e.detector.Snapshot()); err != nil {
		// Reports still have value even if persistence failed.
		e.logger.Error("persist seen-set failed", zap.Error(err))
	}

	if _, err := report.SaveAll(&result, e.cfg.Reports.OutputDir, e.cfg.Reports.Formats, e.logger); err != nil {
		e.logger.Error("write reports failed", zap.Error(err))
	}

	return &result, nil
}

// close releases long-lived resources.
func (e *engine) close() {
	if e.headless != nil {
		if err := e.headless.Close(); err != nil {
			e.logger.Warn("close headless renderer", zap.Error(err))
		}
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close dedup store", zap.Error(err))
	}
}
