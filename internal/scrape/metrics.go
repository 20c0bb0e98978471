package scrape

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelwatch_requests_total",
		Help: "The total number of fetch attempts dispatched.",
	})
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelwatch_retries_total",
		Help: "The total number of retry attempts after backoff.",
	})
	blockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelwatch_blocked_responses_total",
		Help: "The total number of 403/429 responses that triggered identity rotation.",
	})
	// SourcesSucceeded counts sources that produced at least one successful fetch.
	sourcesSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelwatch_sources_succeeded_total",
		Help: "The total number of sources scraped successfully.",
	})
	sourcesFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelwatch_sources_failed_total",
		Help: "The total number of sources that exhausted every strategy.",
	})
	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intelwatch_fallbacks_total",
		Help: "The total number of sources served by a non-primary strategy.",
	}, []string{"strategy"})
	articlesAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelwatch_articles_accepted_total",
		Help: "The total number of unique, relevant articles accepted.",
	})
	duplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelwatch_duplicates_total",
		Help: "The total number of candidates rejected as duplicates.",
	})
	nonRelevantTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelwatch_non_relevant_total",
		Help: "The total number of candidates rejected by the relevance filter.",
	})
)
