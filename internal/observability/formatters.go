// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/pipeline"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 64
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintSummary outputs the outcome of a download run.
func (p *Printer) PrintSummary(s *pipeline.Summary) {
	if s == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Ingestion:  %s\n", s.IngestionID))
	sb.WriteString(fmt.Sprintf("Case files: %d (ok %d, failed %d)\n", s.Total, s.Succeeded, s.Failed))
	sb.WriteString(fmt.Sprintf("Records:    %d\n", len(s.Records)))
	sb.WriteString(fmt.Sprintf("Duration:   %s\n", s.Duration.Round(time.Second)))

	cases := append([]pipeline.CaseResult(nil), s.Cases...)
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].Failed && !cases[j].Failed })

	if len(cases) > 0 {
		sb.WriteString("\n")
	}
	count := min(len(cases), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := cases[i]
		mark := "✓"
		if c.Failed {
			mark = "✗"
		}
		sb.WriteString(fmt.Sprintf("%s %s  %s\n", mark, c.CaseFile.Key(), c.State))
		if c.Failed {
			sb.WriteString(fmt.Sprintf("    %s\n", c.Error))
		} else if len(c.Rows) > 0 {
			sb.WriteString(fmt.Sprintf("    %s\n", formatCounts(c.Rows)))
		}
	}
	if len(cases) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more case files\n", len(cases)-maxItemsToShow))
	}

	p.printBox("FUR DOWNLOAD RUN", strings.TrimSuffix(sb.String(), "\n"))
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

// PrintWindow outputs a computed search window.
func (p *Printer) PrintWindow(year int, quarters []int, w types.SearchWindow) {
	start, end := w.Format()
	q := "all"
	if len(quarters) > 0 {
		parts := make([]string, len(quarters))
		for i, n := range quarters {
			parts[i] = fmt.Sprintf("T%d", n)
		}
		q = strings.Join(parts, ", ")
	}
	p.printBox("SEARCH WINDOW", fmt.Sprintf("Year:     %d\nQuarters: %s\nStart:    %s\nEnd:      %s", year, q, start, end))
}

// PrintUploads outputs the storage keys written by an upload.
func (p *Printer) PrintUploads(root string, keys []string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Root:     %s\n", root))
	sb.WriteString(fmt.Sprintf("Uploaded: %d\n", len(keys)))

	count := min(len(keys), maxItemsToShow)
	if count > 0 {
		sb.WriteString("\n")
	}
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("• %s\n", keys[i]))
	}
	if len(keys) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more objects\n", len(keys)-maxItemsToShow))
	}
	p.printBox("UPLOAD", strings.TrimSuffix(sb.String(), "\n"))
}
