package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// stubExtractor serves canned candidates keyed by strategy.
type stubExtractor struct {
	byStrategy map[Strategy][]CandidateArticle
	err        error
	panics     bool
}

func (s *stubExtractor) Extract(raw RawContent) ([]CandidateArticle, error) {
	if s.panics {
		panic("parser exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.byStrategy[raw.Strategy], nil
}

// stubAdmitter accepts everything once per title, shared across sources.
type stubAdmitter struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newStubAdmitter() *stubAdmitter {
	return &stubAdmitter{seen: make(map[string]struct{})}
}

func (a *stubAdmitter) Admit(c CandidateArticle) (Article, Decision) {
	if c.Title == "off-topic" {
		return Article{}, DecisionNotRelevant
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.seen[c.Title]; dup {
		return Article{}, DecisionDuplicate
	}
	a.seen[c.Title] = struct{}{}
	return Article{CandidateArticle: c, Relevant: true}, DecisionAccepted
}

func newTestOrchestrator(extractor Extractor, admitter Admitter, cfg OrchestratorConfig) *Orchestrator {
	return newLoggedOrchestrator(extractor, admitter, cfg, nil)
}

func newLoggedOrchestrator(extractor Extractor, admitter Admitter, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	limiter := NewRateLimiter(0, 0)
	limiter.pauser = &recordingPauser{}
	sessions := NewSessionStore([]string{"test-agent"}, 0, nil)
	client := NewHTTPFetcher(HTTPFetcherConfig{RequestTimeout: 5 * time.Second}, nil)
	fetcher := NewFetcher(limiter, sessions, client, nil, FetcherConfig{MaxAttempts: 1, BaseDelay: time.Millisecond}, nil)
	fetcher.pauser = &recordingPauser{}
	return NewOrchestrator(fetcher, extractor, admitter, limiter, cfg, logger)
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>page</html>"))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunAggregatesSuccessAndFailure(t *testing.T) {
	t.Parallel()

	good := okServer(t)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	published := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	extractor := &stubExtractor{byStrategy: map[Strategy][]CandidateArticle{
		StrategyHTML: {
			{Title: "story one", Body: "body", Published: &published, Tier: 1},
			{Title: "off-topic", Body: "noise", Tier: 1},
		},
	}}

	orch := newTestOrchestrator(extractor, newStubAdmitter(), OrchestratorConfig{Workers: 2})
	result := orch.Run(context.Background(), []Source{
		{Name: "good", URL: good.URL, Tier: 1},
		{Name: "bad", URL: bad.URL, Tier: 2},
	})

	require.NotEmpty(t, result.RunID)
	require.False(t, result.Incomplete)
	require.Equal(t, 2, result.Stats.SourcesAttempted)
	require.Equal(t, 1, result.Stats.SourcesSucceeded)
	require.Equal(t, 1, result.Stats.SourcesFailed)
	require.Equal(t, 1, result.Stats.ArticlesAccepted)
	require.Equal(t, 1, result.Stats.NonRelevant)
	require.Len(t, result.Articles, 1)
	require.Len(t, result.Outcomes, 2)

	var goodOutcome, badOutcome SourceOutcome
	for _, o := range result.Outcomes {
		switch o.Source {
		case "good":
			goodOutcome = o
		case "bad":
			badOutcome = o
		}
	}
	require.Equal(t, OutcomeSuccess, goodOutcome.Status)
	require.Equal(t, StrategyHTML, goodOutcome.Strategy)
	require.False(t, goodOutcome.Fallback)
	require.Equal(t, OutcomeFailed, badOutcome.Status)
	require.Equal(t, ErrKindTransient, badOutcome.ErrorKind)
	require.NotEmpty(t, badOutcome.Error)
}

func TestRunFallsBackWhenExtractionMisses(t *testing.T) {
	t.Parallel()

	ts := okServer(t)
	extractor := &stubExtractor{byStrategy: map[Strategy][]CandidateArticle{
		// HTML yields nothing; the RSS strategy supplies the content.
		StrategyRSS: {{Title: "from feed", Body: "body", Tier: 1}},
	}}

	orch := newTestOrchestrator(extractor, newStubAdmitter(), OrchestratorConfig{Workers: 1})
	result := orch.Run(context.Background(), []Source{
		{Name: "feedy", URL: ts.URL, RSSURL: ts.URL + "/feed", Tier: 1},
	})

	require.Equal(t, 1, result.Stats.SourcesSucceeded)
	require.Equal(t, 1, result.Stats.FallbacksUsed)
	require.Len(t, result.Outcomes, 1)
	require.Equal(t, StrategyRSS, result.Outcomes[0].Strategy)
	require.True(t, result.Outcomes[0].Fallback)
	require.Len(t, result.Articles, 1)
}

func TestRunFeedOnlySourceStartsAtRSS(t *testing.T) {
	t.Parallel()

	ts := okServer(t)
	extractor := &stubExtractor{byStrategy: map[Strategy][]CandidateArticle{
		StrategyRSS: {{Title: "feed story", Body: "body", Tier: 1}},
	}}

	orch := newTestOrchestrator(extractor, newStubAdmitter(), OrchestratorConfig{Workers: 1})
	result := orch.Run(context.Background(), []Source{
		{Name: "feed-only", RSSURL: ts.URL + "/feed", Tier: 1},
	})

	require.Equal(t, 1, result.Stats.SourcesSucceeded)
	require.Len(t, result.Outcomes, 1)
	require.Equal(t, OutcomeSuccess, result.Outcomes[0].Status)
	require.Equal(t, StrategyRSS, result.Outcomes[0].Strategy)
	// The feed is this source's primary strategy, not a fallback.
	require.False(t, result.Outcomes[0].Fallback)
	require.Zero(t, result.Stats.FallbacksUsed)
	require.Len(t, result.Articles, 1)
}

func TestRunLogsCarrySourceField(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ts := okServer(t)
	extractor := &stubExtractor{byStrategy: map[Strategy][]CandidateArticle{
		StrategyHTML: {{Title: "tagged story", Body: "body", Tier: 1}},
	}}

	orch := newLoggedOrchestrator(extractor, newStubAdmitter(), OrchestratorConfig{Workers: 1}, zap.New(core))
	orch.Run(context.Background(), []Source{{Name: "tagged", URL: ts.URL, Tier: 1}})

	entries := logs.FilterMessage("source scraped").All()
	require.Len(t, entries, 1)
	require.Equal(t, "tagged", entries[0].ContextMap()["source"])
}

func TestRunFailsWhenAllStrategiesExhausted(t *testing.T) {
	t.Parallel()

	ts := okServer(t)
	// Extraction yields nothing for any strategy.
	extractor := &stubExtractor{}

	orch := newTestOrchestrator(extractor, newStubAdmitter(), OrchestratorConfig{Workers: 1})
	result := orch.Run(context.Background(), []Source{
		{Name: "empty", URL: ts.URL, RSSURL: ts.URL + "/feed", Tier: 1},
	})

	require.Equal(t, 1, result.Stats.SourcesFailed)
	require.Equal(t, OutcomeFailed, result.Outcomes[0].Status)
	require.Equal(t, ErrKindExtractionMiss, result.Outcomes[0].ErrorKind)
}

func TestRunCountsDuplicatesAcrossSources(t *testing.T) {
	t.Parallel()

	a := okServer(t)
	b := okServer(t)
	extractor := &stubExtractor{byStrategy: map[Strategy][]CandidateArticle{
		StrategyHTML: {{Title: "syndicated story", Body: "body", Tier: 1}},
	}}

	orch := newTestOrchestrator(extractor, newStubAdmitter(), OrchestratorConfig{Workers: 1})
	result := orch.Run(context.Background(), []Source{
		{Name: "first", URL: a.URL, Tier: 1},
		{Name: "second", URL: b.URL, Tier: 2},
	})

	require.Equal(t, 2, result.Stats.SourcesSucceeded)
	require.Equal(t, 1, result.Stats.ArticlesAccepted)
	require.Equal(t, 1, result.Stats.Duplicates)
	require.Len(t, result.Articles, 1)
}

func TestRunMalformedContentAdvancesThenFails(t *testing.T) {
	t.Parallel()

	ts := okServer(t)
	extractor := &stubExtractor{err: errors.New("bad markup")}

	orch := newTestOrchestrator(extractor, newStubAdmitter(), OrchestratorConfig{Workers: 1})
	result := orch.Run(context.Background(), []Source{
		{Name: "broken", URL: ts.URL, Tier: 1},
	})

	require.Equal(t, 1, result.Stats.SourcesFailed)
	require.Equal(t, ErrKindMalformed, result.Outcomes[0].ErrorKind)
}

func TestRunContainsPanics(t *testing.T) {
	t.Parallel()

	ts := okServer(t)
	extractor := &stubExtractor{panics: true}

	orch := newTestOrchestrator(extractor, newStubAdmitter(), OrchestratorConfig{Workers: 1})
	result := orch.Run(context.Background(), []Source{
		{Name: "panicky", URL: ts.URL, Tier: 1},
	})

	require.Equal(t, 1, result.Stats.SourcesFailed)
	require.Equal(t, ErrKindInternal, result.Outcomes[0].ErrorKind)
	require.Positive(t, result.Outcomes[0].Elapsed)
}

func TestRunRejectsMisconfiguredSource(t *testing.T) {
	t.Parallel()

	orch := newTestOrchestrator(&stubExtractor{}, newStubAdmitter(), OrchestratorConfig{Workers: 1})
	result := orch.Run(context.Background(), []Source{
		{Name: "", URL: "https://example.com"},
	})

	require.Equal(t, 1, result.Stats.SourcesFailed)
	require.Equal(t, ErrKindConfig, result.Outcomes[0].ErrorKind)
}

func TestRunDeadlineSkipsRemainingSources(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte("slow page"))
	}))
	t.Cleanup(slow.Close)

	extractor := &stubExtractor{byStrategy: map[Strategy][]CandidateArticle{
		StrategyHTML: {{Title: "late story", Body: "body", Tier: 1}},
	}}

	orch := newTestOrchestrator(extractor, newStubAdmitter(), OrchestratorConfig{
		Workers:  1,
		Deadline: 20 * time.Millisecond,
	})
	result := orch.Run(context.Background(), []Source{
		{Name: "slow-1", URL: slow.URL, Tier: 1},
		{Name: "slow-2", URL: slow.URL, Tier: 1},
		{Name: "slow-3", URL: slow.URL, Tier: 1},
	})

	require.True(t, result.Incomplete)
	require.GreaterOrEqual(t, result.Stats.SourcesSkipped, 1)
	require.Len(t, result.Outcomes, 3)
}

func TestSortArticlesTierThenRecency(t *testing.T) {
	t.Parallel()

	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	articles := []Article{
		{CandidateArticle: CandidateArticle{Title: "t2 undated", Tier: 2}},
		{CandidateArticle: CandidateArticle{Title: "t1 old", Tier: 1, Published: &older}},
		{CandidateArticle: CandidateArticle{Title: "t2 new", Tier: 2, Published: &newer}},
		{CandidateArticle: CandidateArticle{Title: "t1 new", Tier: 1, Published: &newer}},
		{CandidateArticle: CandidateArticle{Title: "t1 undated", Tier: 1}},
	}
	sortArticles(articles)

	titles := make([]string, len(articles))
	for i, a := range articles {
		titles[i] = a.Title
	}
	require.Equal(t, []string{"t1 new", "t1 old", "t1 undated", "t2 new", "t2 undated"}, titles)
}
