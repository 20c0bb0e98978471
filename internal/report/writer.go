// Package report renders run results as Markdown, JSON, and CSV.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jbouvier/intelwatch/internal/scrape"
)

// Writer renders one run result to its configured destination.
type Writer interface {
	Write(result *scrape.RunResult) (int, error)
}

// MultiWriter fans one result out to several Writers, stopping on the
// first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to every configured Writer and returns the
// total bytes written.
func (m *MultiWriter) Write(result *scrape.RunResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// extensions maps report format names to file extensions.
var extensions = map[string]string{
	"markdown": ".md",
	"json":     ".json",
	"csv":      ".csv",
}

// SaveAll writes the result to dir once per requested format, file names
// keyed by the run's start timestamp. Returns the written paths.
func SaveAll(result *scrape.RunResult, dir string, formats []string, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	stamp := result.StartedAt.UTC().Format("20060102_150405")
	if result.StartedAt.IsZero() {
		stamp = time.Now().UTC().Format("20060102_150405")
	}

	var paths []string
	for _, format := range formats {
		ext, ok := extensions[format]
		if !ok {
			return paths, fmt.Errorf("unknown report format %q", format)
		}
		path := filepath.Join(dir, "intel_report_"+stamp+ext)
		if err := saveOne(result, format, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
		logger.Info("report written",
			zap.String("format", format),
			zap.String("path", path),
		)
	}
	return paths, nil
}

func saveOne(result *scrape.RunResult, format, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var w Writer
	switch format {
	case "markdown":
		w = NewMarkdownWriter(f)
	case "json":
		w = NewJSONWriter(f, WithPrettyPrint())
	case "csv":
		w = NewCSVWriter(f)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	if _, err := w.Write(result); err != nil {
		return fmt.Errorf("write %s report: %w", format, err)
	}
	return nil
}
