package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/dubsync/internal/analysis"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// FormatReport renders a report in the requested output format
func FormatReport(report *analysis.Report, format string) ([]byte, error) {
	switch format {
	case "", "table":
		return renderTable(report), nil
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %q", format)
	}
}

// renderTable builds the human-readable summary table
func renderTable(report *analysis.Report) []byte {
	printer := message.NewPrinter(language.English)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Candidate", "Offset (ms)", "Match %", "Review", "Issues"})

	for _, result := range report.Results {
		if result.Failed() {
			t.AppendRow(table.Row{result.Filename, "-", "-", "error", result.Error})
			continue
		}
		review := ""
		if result.NeedsReview {
			review = "yes"
		}
		t.AppendRow(table.Row{
			result.Filename,
			fmt.Sprintf("%.2f", result.OffsetMs),
			fmt.Sprintf("%.2f", result.MatchConfidence),
			review,
			strings.Join(result.Issues, "; "),
		})
	}

	t.AppendFooter(table.Row{
		printer.Sprintf("%d candidates", report.Summary.Candidates),
		"",
		"",
		printer.Sprintf("%d flagged", report.Summary.Flagged),
		printer.Sprintf("%d ms", report.Summary.ElapsedMs),
	})

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Reference: %s\n", report.Reference)
	buf.WriteString(t.Render())
	buf.WriteByte('\n')
	return buf.Bytes()
}

// WriteOutput writes formatted results to the file or stdout
func WriteOutput(data []byte, outputFile string, logger logging.Logger) error {
	if outputFile == "" {
		_, err := os.Stdout.Write(data)
		return err
	}

	dir := filepath.Dir(outputFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if logger != nil {
		logger.Debug("Results written to file", logging.Fields{
			"output_file": outputFile,
			"size_bytes":  len(data),
		})
	}

	return nil
}
