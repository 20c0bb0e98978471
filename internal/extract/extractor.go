// Package extract turns raw fetched content into candidate articles, using
// a selector-rule-set cascade for HTML and direct entry mapping for feeds.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jbouvier/intelwatch/internal/scrape"
)

// boilerplateSelector matches elements that never carry article content.
const boilerplateSelector = "script, style, noscript, iframe, nav, aside, footer, .ad, .ads, .advertisement"

// Config tunes extraction behavior.
type Config struct {
	// BodyParagraphs caps how many paragraphs feed the candidate body.
	BodyParagraphs int
}

// Extractor implements scrape.Extractor.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.BodyParagraphs <= 0 {
		cfg.BodyParagraphs = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract dispatches on the strategy that produced the content.
func (e *Extractor) Extract(raw scrape.RawContent) ([]scrape.CandidateArticle, error) {
	if raw.Strategy == scrape.StrategyRSS {
		return e.extractFeed(raw)
	}
	return e.extractHTML(raw)
}

// extractHTML tries the source's rule sets in priority order and stops at
// the first one that yields at least one complete article. Results are never
// merged across rule sets; overlapping selectors would produce partial
// duplicates.
func (e *Extractor) extractHTML(raw scrape.RawContent) ([]scrape.CandidateArticle, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html for %s: %w", raw.Source.Name, err)
	}
	doc.Find(boilerplateSelector).Remove()

	ruleSets := raw.Source.Selectors
	if len(ruleSets) == 0 {
		ruleSets = []scrape.SelectorRules{{}}
	}

	for idx, rules := range ruleSets {
		candidates := e.applyRules(doc, rules, raw.Source, idx)
		if len(candidates) > 0 {
			e.logger.Debug("rule set matched",
				zap.String("source", raw.Source.Name),
				zap.Int("rule_set", idx),
				zap.Int("candidates", len(candidates)),
			)
			return candidates, nil
		}
	}
	return nil, nil
}

func (e *Extractor) applyRules(doc *goquery.Document, rules scrape.SelectorRules, src scrape.Source, idx int) []scrape.CandidateArticle {
	container := rules.Container
	if container == "" {
		container = "article"
	}
	titleSel := rules.Title
	if titleSel == "" {
		titleSel = "h1, h2, h3"
	}
	bodySel := rules.Body
	if bodySel == "" {
		bodySel = "p"
	}
	dateSel := rules.Date
	if dateSel == "" {
		dateSel = "time"
	}
	linkSel := rules.Link
	if linkSel == "" {
		linkSel = "a[href]"
	}

	var out []scrape.CandidateArticle
	doc.Find(container).Each(func(_ int, sel *goquery.Selection) {
		title := collapseWhitespace(sel.Find(titleSel).First().Text())
		if title == "" {
			return
		}

		var paragraphs []string
		sel.Find(bodySel).EachWithBreak(func(i int, p *goquery.Selection) bool {
			if text := collapseWhitespace(p.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
			return len(paragraphs) < e.cfg.BodyParagraphs
		})
		body := strings.Join(paragraphs, " ")
		if body == "" {
			return
		}

		out = append(out, scrape.CandidateArticle{
			Title:     title,
			Body:      body,
			Published: e.extractDate(sel, dateSel, src),
			URL:       e.extractLink(sel, linkSel, src),
			Source:    src.Name,
			Tier:      src.Tier,
			RuleSet:   idx,
		})
	})
	return out
}

func (e *Extractor) extractDate(sel *goquery.Selection, dateSel string, src scrape.Source) *time.Time {
	node := sel.Find(dateSel).First()
	if node.Length() == 0 {
		return nil
	}
	if dt, ok := node.Attr("datetime"); ok && dt != "" {
		if t := ParseTime(dt, src.DateLayouts); t != nil {
			return t
		}
	}
	return ParseTime(collapseWhitespace(node.Text()), src.DateLayouts)
}

func (e *Extractor) extractLink(sel *goquery.Selection, linkSel string, src scrape.Source) string {
	href, ok := sel.Find(linkSel).First().Attr("href")
	if !ok || href == "" {
		return src.URL
	}
	return resolveURL(src.URL, href)
}

// resolveURL makes a possibly relative link absolute against base.
func resolveURL(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return base
	}
	if ref.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

var whitespaceReplacer = strings.NewReplacer("\n", " ", "\t", " ", "\r", " ")

// collapseWhitespace trims and squeezes runs of whitespace to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(whitespaceReplacer.Replace(s)), " ")
}
