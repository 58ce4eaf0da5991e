package extract

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// Row is a parsed results-table row whose date has not been interpreted yet.
type Row struct {
	types.ExtractedRow
	DateText string
}

// ParseRows reads the results table of one category page. Row indexes follow
// the DOM order of the table body, so they can be used to address the row in
// the browser afterwards.
func ParseRows(html string, cat Category, page int) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results HTML: %w", err)
	}

	table := doc.Find(cat.Table).First()
	if table.Length() == 0 {
		return nil, nil
	}

	var headers []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, fold(th.Text()))
	})
	dateCol := columnIndex(headers, cat.DateHeader, cat.DateColumn)
	statusCol := columnIndex(headers, cat.StatusHeader, cat.StatusColumn)

	var rows []Row
	table.Find("tbody tr").Each(func(i int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.Join(strings.Fields(td.Text()), " "))
		})
		// Empty tables render a single placeholder cell.
		if len(cells) < 2 {
			return
		}
		rows = append(rows, Row{
			ExtractedRow: types.ExtractedRow{
				Category:    cat.Name,
				Page:        page,
				Index:       i,
				HasArtifact: tr.Find(cat.Artifact).Length() > 0,
				StatusText:  cell(cells, statusCol),
				Cells:       cells,
			},
			DateText: cell(cells, dateCol),
		})
	})
	return rows, nil
}

// ParseEvidenceDate reads the dd/mm/yyyy date at the start of a cell.
func ParseEvidenceDate(text string) (time.Time, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return time.Time{}, &DateParseError{Text: text, Message: "empty date cell"}
	}
	d, err := time.ParseInLocation(types.DateLayout, fields[0], time.UTC)
	if err != nil {
		return time.Time{}, &DateParseError{Text: text, Message: "expected dd/mm/yyyy", Cause: err}
	}
	return d, nil
}

// IsSkippedStatus reports whether a row status marks a FUR that must not be downloaded.
func IsSkippedStatus(status string) bool {
	switch fold(status) {
	case "vencido", "anulado":
		return true
	}
	return false
}

func columnIndex(headers []string, header string, fallback int) int {
	if header != "" {
		want := fold(header)
		for i, h := range headers {
			if strings.Contains(h, want) {
				return i
			}
		}
	}
	return fallback
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// fold lowercases s, strips diacritics and collapses whitespace.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}
