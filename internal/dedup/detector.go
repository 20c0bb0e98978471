// Package dedup rejects duplicate and non-relevant candidate articles and
// manages the persisted seen-set that makes dedup stable across runs.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jbouvier/intelwatch/internal/extract"
	"github.com/jbouvier/intelwatch/internal/scrape"
)

// Config tunes admission checks and article enrichment.
type Config struct {
	// Keywords is the domain-relevance term list. Empty disables the filter.
	Keywords []string
	// MinKeywordHits is the overlap threshold below which a candidate is
	// rejected as non-relevant.
	MinKeywordHits int
	// MinBodyLength and MaxBodyLength bound acceptable body sizes in bytes.
	MinBodyLength int
	MaxBodyLength int
	// SummaryWords caps the enriched summary length.
	SummaryWords int
	// KeyPhraseLimit caps how many key phrases are attached per article.
	KeyPhraseLimit int
	// FingerprintBodyPrefix is how many characters of normalized body feed
	// the content hash.
	FingerprintBodyPrefix int
}

// Detector implements scrape.Admitter. The seen sets are shared across all
// workers; check-then-insert runs under one lock so two identical candidates
// can never both pass.
type Detector struct {
	mu     sync.Mutex
	hashes map[string]struct{}
	urls   map[string]struct{}
	cfg    Config
	clock  scrape.Clock
	logger *zap.Logger
}

// NewDetector creates a Detector with empty seen sets.
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if cfg.MinKeywordHits <= 0 {
		cfg.MinKeywordHits = 1
	}
	if cfg.SummaryWords <= 0 {
		cfg.SummaryWords = 80
	}
	if cfg.KeyPhraseLimit <= 0 {
		cfg.KeyPhraseLimit = 5
	}
	if cfg.FingerprintBodyPrefix <= 0 {
		cfg.FingerprintBodyPrefix = 400
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		hashes: make(map[string]struct{}),
		urls:   make(map[string]struct{}),
		cfg:    cfg,
		clock:  scrape.SystemClock{},
		logger: logger,
	}
}

// Seed loads fingerprints and canonical URLs from a prior run so articles
// already reported are rejected again this run.
func (d *Detector) Seed(set SeenSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range set.Fingerprints {
		d.hashes[h] = struct{}{}
	}
	for _, u := range set.URLs {
		d.urls[u] = struct{}{}
	}
}

// Snapshot returns the current seen sets, including entries admitted this
// run, for persisting.
func (d *Detector) Snapshot() SeenSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := SeenSet{
		Fingerprints: make([]string, 0, len(d.hashes)),
		URLs:         make([]string, 0, len(d.urls)),
	}
	for h := range d.hashes {
		set.Fingerprints = append(set.Fingerprints, h)
	}
	for u := range d.urls {
		set.URLs = append(set.URLs, u)
	}
	return set
}

// Admit applies relevance and dedup checks and returns the accepted Article.
// Two articles with the same content fingerprint are the same development
// even when served at different URLs; a previously seen canonical URL is
// rejected even with a different fingerprint, which catches edited-in-place
// updates.
func (d *Detector) Admit(c scrape.CandidateArticle) (scrape.Article, scrape.Decision) {
	if !d.relevant(c) {
		return scrape.Article{}, scrape.DecisionNotRelevant
	}

	fingerprint := d.fingerprint(c.Title, c.Body)
	canonical := CanonicalURL(c.URL)

	d.mu.Lock()
	_, hashSeen := d.hashes[fingerprint]
	_, urlSeen := d.urls[canonical]
	if hashSeen || urlSeen {
		d.mu.Unlock()
		d.logger.Debug("duplicate rejected",
			zap.String("title", c.Title),
			zap.Bool("by_hash", hashSeen),
			zap.Bool("by_url", urlSeen),
		)
		return scrape.Article{}, scrape.DecisionDuplicate
	}
	d.hashes[fingerprint] = struct{}{}
	if canonical != "" {
		d.urls[canonical] = struct{}{}
	}
	d.mu.Unlock()

	text := c.Title + " " + c.Body
	return scrape.Article{
		CandidateArticle: c,
		Fingerprint:      fingerprint,
		CanonicalURL:     canonical,
		Summary:          extract.Summarize(c.Body, d.cfg.SummaryWords),
		KeyPhrases:       extract.KeyPhrases(text, d.cfg.Keywords, d.cfg.KeyPhraseLimit),
		Relevant:         true,
		ProcessedAt:      d.clock.Now(),
	}, scrape.DecisionAccepted
}

func (d *Detector) relevant(c scrape.CandidateArticle) bool {
	if d.cfg.MinBodyLength > 0 && len(c.Body) < d.cfg.MinBodyLength {
		return false
	}
	if d.cfg.MaxBodyLength > 0 && len(c.Body) > d.cfg.MaxBodyLength {
		return false
	}
	if len(d.cfg.Keywords) == 0 {
		return true
	}
	return extract.KeywordHits(c.Title+" "+c.Body, d.cfg.Keywords) >= d.cfg.MinKeywordHits
}

// fingerprint hashes the normalized title plus a body prefix. Lower-casing
// and whitespace collapsing make syndicated copies with cosmetic differences
// hash identically.
func (d *Detector) fingerprint(title, body string) string {
	norm := normalizeText(title) + "\n" + prefix(normalizeText(body), d.cfg.FingerprintBodyPrefix)
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
