package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/layout"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

const pdfIcon = `<a class="jqNodivLoadingForm fa fa-file-pdf-o" href="#"></a>`

func table(dateHeader string, rows ...string) string {
	var b strings.Builder
	b.WriteString(`<div><table class="scrollBarProcesada"><thead><tr>`)
	b.WriteString(`<th>NIT</th><th>Expediente</th><th>` + dateHeader + `</th><th>Estado FUR</th><th>PDF</th>`)
	b.WriteString(`</tr></thead><tbody>`)
	for _, r := range rows {
		b.WriteString(r)
	}
	b.WriteString(`</tbody></table></div>`)
	return b.String()
}

func row(date, status string, artifact bool) string {
	icon := ""
	if artifact {
		icon = pdfIcon
	}
	return fmt.Sprintf(`<tr><td>900014381</td><td>96002150</td><td>%s</td><td>%s</td><td>%s</td></tr>`, date, status, icon)
}

type fakePage struct {
	pages     map[string][]string
	current   map[string]int
	hidden    map[string]bool
	failRows  map[int]bool
	downloads []string
	captures  []string
}

func newFakePage(pages map[string][]string) *fakePage {
	return &fakePage{pages: pages, current: map[string]int{}, hidden: map[string]bool{}, failRows: map[int]bool{}}
}

func (f *fakePage) OpenCategory(_ context.Context, category string) (bool, error) {
	return len(f.pages[category]) > 0 && !f.hidden[category], nil
}

func (f *fakePage) ResultsHTML(_ context.Context, category string) (string, error) {
	return f.pages[category][f.current[category]], nil
}

func (f *fakePage) DownloadRow(_ context.Context, category string, row int, dir string) (string, error) {
	if f.failRows[row] {
		return "", errors.New("download canceled")
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_p%d_r%d.pdf", category, f.current[category], row))
	f.downloads = append(f.downloads, path)
	return path, os.WriteFile(path, []byte("%PDF"), 0o644)
}

func (f *fakePage) Capture(_ context.Context, _ string, path string, _ bool) error {
	f.captures = append(f.captures, path)
	return os.WriteFile(path, []byte("PNG"), 0o644)
}

func (f *fakePage) NextPage(_ context.Context, category string) (bool, error) {
	if f.current[category]+1 >= len(f.pages[category]) {
		return false, nil
	}
	f.current[category]++
	return true, nil
}

var target = layout.Target{Section: "ia", TaxID: "900014381", CaseNumber: "96002150"}

func TestExtract_WritesRowsUnderInferredPeriod(t *testing.T) {
	l := layout.New(t.TempDir())
	page := newFakePage(map[string][]string{
		layout.CategorySelfAssessment: {table("Fecha Presentación",
			row("10/02/2024 09:30", "Pagado", true),
			row("02/04/2024", "Pagado", true),
		)},
	})

	res, err := New(l, zap.NewNop()).Extract(context.Background(), page, target, 2024)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count(Downloaded))
	assert.Equal(t, []types.Period{{Year: 2024, Quarter: 1}, {Year: 2024, Quarter: 2}}, res.Populated)
	assert.DirExists(t, l.CategoryPath(target, types.Period{Year: 2024, Quarter: 1}, layout.CategorySelfAssessment))
	assert.DirExists(t, l.CategoryPath(target, types.Period{Year: 2024, Quarter: 2}, layout.CategorySelfAssessment))
	assert.Equal(t, time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC), res.Rows[0].Row.EvidenceDate)
}

func TestExtract_RowOutcomes(t *testing.T) {
	l := layout.New(t.TempDir())
	page := newFakePage(map[string][]string{
		layout.CategorySelfAssessment: {table("Fecha Presentación",
			row("10/02/2024", "Vencido", true),
			row("11/02/2024", "ANULADO", true),
			row("12/02/2024", "Pagado", false),
			row("2024-02-13", "Pagado", true),
			row("14/02/2024", "Pagado", true),
			row("15/02/2024", "Pagado", true),
		)},
	})
	page.failRows[4] = true

	res, err := New(l, zap.NewNop()).Extract(context.Background(), page, target, 2024)
	require.NoError(t, err)

	outcomes := make([]Outcome, 0, len(res.Rows))
	for _, r := range res.Rows {
		outcomes = append(outcomes, r.Outcome)
	}
	assert.Equal(t, []Outcome{SkippedStatus, SkippedStatus, NoArtifact, DateError, DownloadFailed, Downloaded}, outcomes)

	var dateErr *DateParseError
	assert.True(t, errors.As(res.Rows[3].Err, &dateErr))
	assert.Len(t, page.downloads, 1, "skipped rows must not trigger downloads")
}

func TestExtract_FollowsPagination(t *testing.T) {
	l := layout.New(t.TempDir())
	page := newFakePage(map[string][]string{
		layout.CategoryObligation: {
			table("Fecha Límite", row("05/01/2024", "Pagado", true)),
			table("Fecha Límite", row("05/07/2024", "Pagado", true)),
		},
	})

	res, err := New(l, zap.NewNop()).Extract(context.Background(), page, target, 2024)
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, 1, res.Rows[0].Row.Page)
	assert.Equal(t, 2, res.Rows[1].Row.Page)
	assert.Equal(t, []types.Period{{Year: 2024, Quarter: 1}, {Year: 2024, Quarter: 3}}, res.Populated)
}

func TestExtract_CopiesScreenshotsIntoPopulatedPeriods(t *testing.T) {
	l := layout.New(t.TempDir())
	page := newFakePage(map[string][]string{
		layout.CategorySelfAssessment: {table("Fecha Presentación", row("10/02/2024", "Pagado", true))},
	})

	res, err := New(l, zap.NewNop()).Extract(context.Background(), page, target, 2024)
	require.NoError(t, err)

	require.Len(t, res.Screenshots, 2)
	for _, shot := range res.Screenshots {
		assert.Equal(t, l.CaseRoot(target, 2024), filepath.Dir(shot))
		assert.FileExists(t, filepath.Join(l.PeriodPath(target, types.Period{Year: 2024, Quarter: 1}), filepath.Base(shot)))
	}
	assert.Contains(t, res.Screenshots, filepath.Join(l.CaseRoot(target, 2024), "900014381_autoliquidacion_p1_expandido.png"))
}

func TestExtract_HiddenCategoryIsSkipped(t *testing.T) {
	l := layout.New(t.TempDir())
	page := newFakePage(map[string][]string{
		layout.CategorySelfAssessment: {table("Fecha Presentación", row("10/02/2024", "Pagado", true))},
	})
	page.hidden[layout.CategorySelfAssessment] = true

	res, err := New(l, zap.NewNop()).Extract(context.Background(), page, target, 2024)
	require.NoError(t, err)

	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Populated)
	assert.Empty(t, page.captures)
}

func TestEnsureRequested_CreatesEmptyFolders(t *testing.T) {
	l := layout.New(t.TempDir())
	e := New(l, zap.NewNop())

	dirs, err := e.EnsureRequested(target, 2024, []int{1, 3})
	require.NoError(t, err)

	require.Len(t, dirs, 2)
	for _, q := range []int{1, 3} {
		p := types.Period{Year: 2024, Quarter: q}
		assert.DirExists(t, l.CategoryPath(target, p, layout.CategorySelfAssessment))
		assert.DirExists(t, l.CategoryPath(target, p, layout.CategoryObligation))
	}
	assert.NoDirExists(t, l.PeriodPath(target, types.Period{Year: 2024, Quarter: 2}))
}

func TestParseRows_FallsBackToColumnIndex(t *testing.T) {
	html := `<table class="scrollBarProcesada"><tbody>
		<tr><td>a</td><td>b</td><td>c</td><td>d</td><td>03/03/2024</td><td>x</td><td>x</td><td>x</td><td>x</td><td>Vencido</td></tr>
	</tbody></table>`

	rows, err := ParseRows(html, DefaultCategories[0], 1)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "03/03/2024", rows[0].DateText)
	assert.Equal(t, "Vencido", rows[0].StatusText)
	assert.False(t, rows[0].HasArtifact)
}

func TestParseRows_IgnoresPlaceholderRow(t *testing.T) {
	html := table("Fecha Presentación", `<tr><td colspan="5">No se encontraron registros</td></tr>`)

	rows, err := ParseRows(html, DefaultCategories[0], 1)
	require.NoError(t, err)

	assert.Empty(t, rows)
}

func TestIsSkippedStatus(t *testing.T) {
	tests := []struct {
		status string
		skip   bool
	}{
		{"Vencido", true},
		{"  VENCIDO ", true},
		{"Anulado", true},
		{"ANULÁDO", true},
		{"Pagado", false},
		{"Vencido parcialmente", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.skip, IsSkippedStatus(tt.status), tt.status)
	}
}

func TestParseEvidenceDate(t *testing.T) {
	d, err := ParseEvidenceDate("31/12/2023 23:59:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseEvidenceDate("")
	assert.Error(t, err)

	_, err = ParseEvidenceDate("31-12-2023")
	var dateErr *DateParseError
	assert.True(t, errors.As(err, &dateErr))
}
