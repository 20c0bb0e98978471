package extract

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/jbouvier/intelwatch/internal/scrape"
)

// rssRuleSet marks candidates that came from a feed rather than a selector
// rule set.
const rssRuleSet = -1

// extractFeed maps RSS/Atom entries straight onto candidates; feeds carry
// their structure explicitly so no selector cascade is involved.
func (e *Extractor) extractFeed(raw scrape.RawContent) ([]scrape.CandidateArticle, error) {
	parser := gofeed.NewParser()
	feed, err := parser.Parse(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed for %s: %w", raw.Source.Name, err)
	}

	out := make([]scrape.CandidateArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := collapseWhitespace(item.Title)
		body := feedItemBody(item)
		if title == "" || body == "" {
			continue
		}
		link := item.Link
		if link == "" {
			link = raw.Source.URL
		}
		out = append(out, scrape.CandidateArticle{
			Title:     title,
			Body:      body,
			Published: feedItemTime(item, raw.Source),
			URL:       link,
			Source:    raw.Source.Name,
			Tier:      raw.Source.Tier,
			RuleSet:   rssRuleSet,
		})
	}
	e.logger.Debug("feed parsed",
		zap.String("source", raw.Source.Name),
		zap.Int("entries", len(feed.Items)),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

func feedItemBody(item *gofeed.Item) string {
	raw := item.Description
	if raw == "" {
		raw = item.Content
	}
	return htmlToText(raw)
}

func feedItemTime(item *gofeed.Item, src scrape.Source) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		return &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		return &t
	case item.Published != "":
		return ParseTime(item.Published, src.DateLayouts)
	default:
		return nil
	}
}

// htmlToText strips markup from feed descriptions, which frequently embed
// HTML fragments.
func htmlToText(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseWhitespace(s)
	}
	return collapseWhitespace(doc.Text())
}
