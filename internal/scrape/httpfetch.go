package scrape

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// HTTPFetcher retrieves single pages over plain HTTP using a Colly collector.
// The base collector carries the shared transport; every request runs on a
// clone wired to the caller's domain session.
type HTTPFetcher struct {
	base   *colly.Collector
	logger *zap.Logger
}

// HTTPFetcherConfig tunes the shared transport.
type HTTPFetcherConfig struct {
	RequestTimeout  time.Duration
	MaxConnsPerHost int
}

// NewHTTPFetcher constructs a configured Colly-backed fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig, logger *zap.Logger) *HTTPFetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := colly.NewCollector(colly.Async(false))
	base.AllowURLRevisit = true
	base.IgnoreRobotsTxt = true
	// Deliver non-2xx responses through OnResponse instead of turning them
	// into Visit errors; the status code must reach classification.
	base.ParseHTTPErrorResponse = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &HTTPFetcher{
		base:   base,
		logger: logger,
	}
}

// Get fetches rawURL through the given session identity. Non-2xx statuses are
// returned in the Page, not as an error; the caller classifies them.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, sess Session) (Page, error) {
	collector := f.base.Clone()
	collector.AllowURLRevisit = true
	if sess.Jar != nil {
		collector.SetCookieJar(sess.Jar)
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range sess.Headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
		if sess.UserAgent != "" {
			r.Headers.Set("User-Agent", sess.UserAgent)
		}
	})

	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{page: pageFromResponse(rawURL, r, start)})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		res := fetchResult{err: err}
		if r != nil {
			res.page = pageFromResponse(rawURL, r, start)
		}
		send(res)
	})

	visitErr := collector.Visit(rawURL)
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		if res.page.StatusCode != 0 {
			// Status carried alongside the transport error lets the caller
			// classify 403/404/429 without string matching.
			return res.page, nil
		}
		return res.page, res.err
	default:
	}
	if visitErr != nil {
		return Page{}, visitErr
	}
	return Page{}, errors.New("colly fetch produced no result")
}

func pageFromResponse(rawURL string, r *colly.Response, start time.Time) Page {
	headers := http.Header{}
	if r.Headers != nil {
		for k, v := range *r.Headers {
			cp := make([]string, len(v))
			copy(cp, v)
			headers[k] = cp
		}
	}
	finalURL := rawURL
	if r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}
	return Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       append([]byte{}, r.Body...),
		Duration:   time.Since(start),
	}
}

type fetchResult struct {
	page Page
	err  error
}
