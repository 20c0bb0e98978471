package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/jbouvier/intelwatch/internal/scrape"
)

// timeResolution keeps elapsed times readable in tables.
const timeResolution = 10 * time.Millisecond

// MarkdownWriter renders the digest humans read: run summary, per-source
// outcomes, then articles grouped by tier.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full digest in Markdown format.
func (w *MarkdownWriter) Write(result *scrape.RunResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeStats(md, result)
	w.writeOutcomes(md, result)
	w.writeArticles(md, result)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *scrape.RunResult) {
	md.H1("Competitor Intelligence Digest")
	md.PlainText("")

	status := "Complete"
	if result.Incomplete {
		status = "Incomplete (deadline reached or sources skipped)"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + result.RunID + "`"},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Finished", result.FinishedAt.Format("2006-01-02 15:04:05 MST")},
			{"Status", status},
		},
	})
	md.PlainText("")

	if result.Incomplete {
		md.Warningf("This run did not cover every source; %d source(s) were skipped.",
			result.Stats.SourcesSkipped)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, result *scrape.RunResult) {
	s := result.Stats
	md.H2("Run Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Sources attempted", strconv.Itoa(s.SourcesAttempted)},
			{"Sources succeeded", strconv.Itoa(s.SourcesSucceeded)},
			{"Sources failed", strconv.Itoa(s.SourcesFailed)},
			{"Sources skipped", strconv.Itoa(s.SourcesSkipped)},
			{"Articles accepted", strconv.Itoa(s.ArticlesAccepted)},
			{"Duplicates rejected", strconv.Itoa(s.Duplicates)},
			{"Non-relevant rejected", strconv.Itoa(s.NonRelevant)},
			{"Strategy fallbacks", strconv.Itoa(s.FallbacksUsed)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, result *scrape.RunResult) {
	md.H2("Source Outcomes")
	md.PlainText("")

	if len(result.Outcomes) == 0 {
		md.PlainText("No sources were processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.Outcomes))
	for i, o := range result.Outcomes {
		detail := "-"
		if o.Error != "" {
			detail = truncate(o.Error, 60)
		}
		rows[i] = []string{
			o.Source,
			string(o.Status),
			string(o.Strategy),
			strconv.Itoa(o.Attempts),
			strconv.Itoa(o.Articles),
			o.Elapsed.Round(timeResolution).String(),
			detail,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Status", "Strategy", "Attempts", "Articles", "Elapsed", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeArticles(md *markdown.Markdown, result *scrape.RunResult) {
	md.H2("Articles")
	md.PlainText("")

	if len(result.Articles) == 0 {
		md.PlainText("No new articles this run.")
		md.PlainText("")
		return
	}

	currentTier := 0
	for _, a := range result.Articles {
		if a.Tier != currentTier {
			currentTier = a.Tier
			md.PlainText(fmt.Sprintf("### Tier %d", currentTier))
			md.PlainText("")
		}
		w.writeArticle(md, a)
	}
}

func (w *MarkdownWriter) writeArticle(md *markdown.Markdown, a scrape.Article) {
	md.PlainText("#### " + a.Title)
	md.PlainText("")

	meta := "*" + a.Source + "*"
	if a.Published != nil {
		meta += " — " + a.Published.Format("2006-01-02")
	}
	md.PlainText(meta)
	md.PlainText("")

	if a.Summary != "" {
		md.PlainText(a.Summary)
		md.PlainText("")
	}
	if len(a.KeyPhrases) > 0 {
		md.PlainText("Key phrases: " + joinPhrases(a.KeyPhrases))
		md.PlainText("")
	}
	if a.URL != "" {
		md.PlainTextf("[Read more](%s)", a.URL)
		md.PlainText("")
	}
}

func joinPhrases(phrases []string) string {
	out := ""
	for i, p := range phrases {
		if i > 0 {
			out += ", "
		}
		out += "`" + p + "`"
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
