package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/jbouvier/intelwatch/internal/scrape"
)

// csvHeader is the article export schema. Column order is part of the
// format; downstream spreadsheets depend on it.
var csvHeader = []string{
	"source", "tier", "title", "published", "url", "summary", "key_phrases", "fingerprint",
}

// CSVWriter exports accepted articles one row each. Run metadata is not
// included; use the JSON report for that.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs every accepted article as a CSV row.
func (w *CSVWriter) Write(result *scrape.RunResult) (int, error) {
	cw := csv.NewWriter(w.output)

	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	rows := 1
	for _, a := range result.Articles {
		published := ""
		if a.Published != nil {
			published = a.Published.Format("2006-01-02")
		}
		record := []string{
			a.Source,
			strconv.Itoa(a.Tier),
			a.Title,
			published,
			a.URL,
			a.Summary,
			strings.Join(a.KeyPhrases, "; "),
			a.Fingerprint,
		}
		if err := cw.Write(record); err != nil {
			return rows, err
		}
		rows++
	}

	cw.Flush()
	return rows, cw.Error()
}
