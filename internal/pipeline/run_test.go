package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/audit"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/layout"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/lock"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/storage"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

func resultsTable(dates ...string) string {
	var b strings.Builder
	b.WriteString(`<table class="scrollBarProcesada"><thead><tr><th>NIT</th><th>Fecha Presentación</th><th>Estado FUR</th><th>PDF</th></tr></thead><tbody>`)
	for _, d := range dates {
		fmt.Fprintf(&b, `<tr><td>1</td><td>%s</td><td>Pagado</td><td><a class="fa fa-file-pdf-o"></a></td></tr>`, d)
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

type fakeSession struct {
	html        string
	panicSearch bool
	searched    []types.SearchWindow
	closed      bool
}

func (f *fakeSession) Search(_ context.Context, _, _ string, w types.SearchWindow) error {
	if f.panicSearch {
		panic("portal went away")
	}
	f.searched = append(f.searched, w)
	return nil
}

func (f *fakeSession) OpenCategory(_ context.Context, category string) (bool, error) {
	return category == layout.CategorySelfAssessment && f.html != "", nil
}

func (f *fakeSession) ResultsHTML(context.Context, string) (string, error) {
	return f.html, nil
}

func (f *fakeSession) DownloadRow(_ context.Context, category string, row int, dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%d.pdf", category, row))
	return path, os.WriteFile(path, []byte("%PDF"), 0o644)
}

func (f *fakeSession) Capture(_ context.Context, _ string, path string, _ bool) error {
	return os.WriteFile(path, []byte("PNG"), 0o644)
}

func (f *fakeSession) NextPage(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeSession) Close() {
	f.closed = true
}

type memoryStore struct {
	mu   sync.Mutex
	keys []string
	fail map[string]bool // local base names whose upload is rejected
}

func (m *memoryStore) Put(_ context.Context, localPath string, key string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[filepath.Base(localPath)] {
		return "", "", errors.New("bucket rejected " + key)
	}
	m.keys = append(m.keys, key)
	return "https://blobs.test/" + key, "mem://" + key, nil
}

type memorySink struct {
	mu   sync.Mutex
	rows []types.AuditRecord
}

func (m *memorySink) Insert(_ context.Context, rec types.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rec)
	return nil
}

type fixture struct {
	layout *layout.Layout
	store  *memoryStore
	sink   *memorySink
	open   func() (*fakeSession, error)
}

func newFixture(t *testing.T, open func() (*fakeSession, error)) *fixture {
	t.Helper()
	return &fixture{
		layout: layout.New(filepath.Join(t.TempDir(), "downloads")),
		store:  &memoryStore{},
		sink:   &memorySink{},
		open:   open,
	}
}

func (f *fixture) factories() Factories {
	return Factories{
		OpenSession: func(context.Context) (Session, error) {
			s, err := f.open()
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		NewStore: func(context.Context) (storage.BlobStore, error) { return f.store, nil },
		NewSink:  func(context.Context) (audit.Sink, error) { return f.sink, nil },
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Section = "ia"
	opts.Workers = 2
	opts.Now = func() time.Time { return time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC) }
	opts.Fanout.RatePerSecond = 0
	return opts
}

func caseFile(tax, number string, year int, quarters ...int) types.CaseFile {
	return types.CaseFile{TaxID: tax, CaseNumber: number, Year: types.IntPtr(year), Quarters: quarters, FilingNumber: "R-" + number}
}

func TestRun_RecordsEveryRequestedQuarter(t *testing.T) {
	session := &fakeSession{html: resultsTable("10/02/2024", "15/03/2024")}
	f := newFixture(t, func() (*fakeSession, error) { return session, nil })

	summary, err := New(f.layout, f.factories(), nil, testOptions(), zap.NewNop()).
		Run(context.Background(), []types.CaseFile{caseFile("900014381", "96002150", 2024, 1, 2)})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Records, 2)

	q1, q2 := summary.Records[0], summary.Records[1]
	assert.Equal(t, 1, q1.Quarter)
	assert.True(t, q1.Uploaded)
	assert.True(t, q1.Persisted)
	assert.Len(t, q1.DocumentKeys, 4, "two documents, each under its natural and flattened key")
	assert.Equal(t, "R-96002150", q1.FilingNumber)
	assert.Equal(t, summary.IngestionID, q1.IngestionID)

	assert.Equal(t, 2, q2.Quarter)
	assert.Empty(t, q2.DocumentKeys)

	assert.Len(t, f.sink.rows, 2)
	assert.True(t, session.closed)
	require.Len(t, session.searched, 1)
	assert.Equal(t, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), session.searched[0].Start, "new year holiday is skipped")

	require.Len(t, summary.Cases, 1)
	assert.Equal(t, "closed", summary.Cases[0].State)
	assert.Equal(t, 2, summary.Cases[0].Rows["downloaded"])
}

func TestRun_RowsOutsideRequestedQuarterLandInTheirOwnFolder(t *testing.T) {
	session := &fakeSession{html: resultsTable("10/02/2024", "02/04/2024")}
	f := newFixture(t, func() (*fakeSession, error) { return session, nil })
	cf := caseFile("900014381", "96002150", 2024, 1)

	summary, err := New(f.layout, f.factories(), nil, testOptions(), zap.NewNop()).
		Run(context.Background(), []types.CaseFile{cf})
	require.NoError(t, err)

	target := layout.TargetFor("ia", cf)
	for _, p := range []types.Period{{Year: 2024, Quarter: 1}, {Year: 2024, Quarter: 2}} {
		var pdfs []string
		err := filepath.WalkDir(f.layout.PeriodPath(target, p), func(name string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(name) == ".pdf" {
				pdfs = append(pdfs, name)
			}
			return nil
		})
		require.NoError(t, err, p.String())
		assert.Len(t, pdfs, 1, "period %s", p)
	}

	require.Len(t, summary.Records, 1, "only the requested quarter is recorded")
	rec := summary.Records[0]
	assert.Equal(t, 1, rec.Quarter)
	assert.Equal(t, 2024, rec.Year)
	assert.True(t, rec.Uploaded)
	for _, k := range rec.DocumentKeys {
		assert.NotContains(t, k, "/2T/")
	}
	assert.Len(t, f.sink.rows, 1)
}

func TestRun_PartialUploadRecordsOnlyStoredFiles(t *testing.T) {
	session := &fakeSession{html: resultsTable("10/02/2024", "15/03/2024")}
	f := newFixture(t, func() (*fakeSession, error) { return session, nil })
	f.store.fail = map[string]bool{"autoliquidacion_0.pdf": true}

	summary, err := New(f.layout, f.factories(), nil, testOptions(), zap.NewNop()).
		Run(context.Background(), []types.CaseFile{caseFile("900014381", "96002150", 2024, 1)})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Empty(t, summary.Cases[0].Error)

	require.Len(t, summary.Records, 1)
	rec := summary.Records[0]
	assert.True(t, rec.Uploaded)
	assert.True(t, rec.Persisted)
	require.Len(t, rec.DocumentKeys, 2, "the stored file under its natural and flattened key")
	require.Len(t, rec.DocumentURLs, 2)
	for i := range rec.DocumentKeys {
		assert.Contains(t, rec.DocumentKeys[i], "autoliquidacion_1.pdf")
		assert.Contains(t, rec.DocumentURLs[i], "autoliquidacion_1.pdf")
	}
	for _, k := range f.store.keys {
		assert.NotContains(t, k, "autoliquidacion_0.pdf")
	}
}

func TestRun_RecordsPopulatedPeriodsWithoutQuarters(t *testing.T) {
	session := &fakeSession{html: resultsTable("10/02/2024", "05/08/2024")}
	f := newFixture(t, func() (*fakeSession, error) { return session, nil })

	summary, err := New(f.layout, f.factories(), nil, testOptions(), zap.NewNop()).
		Run(context.Background(), []types.CaseFile{caseFile("900014381", "96002150", 2024)})
	require.NoError(t, err)

	require.Len(t, summary.Records, 2)
	assert.Equal(t, 1, summary.Records[0].Quarter)
	assert.Equal(t, 3, summary.Records[1].Quarter)
}

func TestRun_AuthFailureIsolatesCaseFile(t *testing.T) {
	var calls int
	var mu sync.Mutex
	f := newFixture(t, func() (*fakeSession, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, errors.New("login rejected")
		}
		return &fakeSession{html: resultsTable("10/02/2024")}, nil
	})
	opts := testOptions()
	opts.Workers = 1

	summary, err := New(f.layout, f.factories(), nil, opts, zap.NewNop()).Run(context.Background(), []types.CaseFile{
		caseFile("900014381", "1", 2024, 1),
		caseFile("900014381", "2", 2024, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Len(t, summary.Records, 1)
	for _, c := range summary.Cases {
		assert.Equal(t, "closed", c.State)
		if c.Failed {
			assert.Contains(t, c.Error, "login rejected")
			assert.Empty(t, c.Records)
		}
	}
}

func TestRun_RecoversWorkerPanic(t *testing.T) {
	session := &fakeSession{html: resultsTable("10/02/2024"), panicSearch: true}
	f := newFixture(t, func() (*fakeSession, error) { return session, nil })

	summary, err := New(f.layout, f.factories(), nil, testOptions(), zap.NewNop()).
		Run(context.Background(), []types.CaseFile{caseFile("900014381", "96002150", 2024, 1)})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, summary.Records)
	assert.Contains(t, summary.Cases[0].Error, "portal went away")
	assert.True(t, session.closed, "session must be closed after a panic")
}

func TestRun_FutureWindowFailsCaseFile(t *testing.T) {
	f := newFixture(t, func() (*fakeSession, error) { return &fakeSession{}, nil })

	summary, err := New(f.layout, f.factories(), nil, testOptions(), zap.NewNop()).
		Run(context.Background(), []types.CaseFile{caseFile("900014381", "96002150", 2026, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Nil(t, summary.Cases[0].Window)
}

func TestRun_RejectsDuplicates(t *testing.T) {
	f := newFixture(t, func() (*fakeSession, error) { return &fakeSession{}, nil })
	_, err := New(f.layout, f.factories(), nil, testOptions(), zap.NewNop()).Run(context.Background(), []types.CaseFile{
		caseFile("900014381", "1", 2024),
		caseFile("900014381", "1", 2023),
	})
	assert.ErrorIs(t, err, ErrDuplicateCaseFile)
}

func TestRun_RejectsIncompleteCaseFile(t *testing.T) {
	err := ValidateCaseFiles([]types.CaseFile{{TaxID: "900014381"}})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestRun_FailsWhenLocked(t *testing.T) {
	locker := lock.NewMemory()
	opts := testOptions()
	release, err := locker.Acquire(context.Background(), opts.LockKey, time.Minute)
	require.NoError(t, err)
	defer release()

	f := newFixture(t, func() (*fakeSession, error) { return &fakeSession{}, nil })
	_, err = New(f.layout, f.factories(), locker, opts, zap.NewNop()).
		Run(context.Background(), []types.CaseFile{caseFile("900014381", "1", 2024)})
	assert.ErrorIs(t, err, lock.ErrLocked)
}

func TestRun_ReportsProgress(t *testing.T) {
	f := newFixture(t, func() (*fakeSession, error) { return &fakeSession{html: resultsTable("10/02/2024")}, nil })
	var mu sync.Mutex
	var states []string
	opts := testOptions()
	opts.OnProgress = func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, e.State)
	}

	_, err := New(f.layout, f.factories(), nil, opts, zap.NewNop()).
		Run(context.Background(), []types.CaseFile{caseFile("900014381", "1", 2024)})
	require.NoError(t, err)
	assert.Equal(t, []string{"authenticating", "searching", "extracting", "uploading", "recording", "closed"}, states)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Pending, Authenticating, true},
		{Pending, Searching, false},
		{Recording, Closed, true},
		{Extracting, Failed, true},
		{Failed, Closed, true},
		{Failed, Failed, false},
		{Failed, Searching, false},
		{Closed, Failed, false},
		{Uploading, Extracting, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestMachine_CloseFromMidPipelinePassesThroughFailed(t *testing.T) {
	var seen []State
	m := newMachine(zap.NewNop(), func(_, to State) { seen = append(seen, to) })
	m.to(Authenticating)
	m.to(Searching)
	m.close()
	assert.Equal(t, []State{Authenticating, Searching, Failed, Closed}, seen)
	assert.False(t, m.to(Extracting))
}
