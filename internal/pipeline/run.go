// Package pipeline orchestrates FUR downloads across a bounded pool of
// isolated workers, one case file per worker.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/audit"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/extract"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/layout"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/lock"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/storage"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// Session is an authenticated portal session owned by one worker.
type Session interface {
	extract.Page
	Search(ctx context.Context, taxID, caseNumber string, w types.SearchWindow) error
	Close()
}

// Factories build the per-worker collaborators. Nothing they return is
// shared between case files.
type Factories struct {
	// OpenSession launches a browser and authenticates it.
	OpenSession func(ctx context.Context) (Session, error)
	NewStore    func(ctx context.Context) (storage.BlobStore, error)
	NewSink     func(ctx context.Context) (audit.Sink, error)
}

// RunLog records run-level bookkeeping. Optional.
type RunLog interface {
	StartRun(ctx context.Context, id, section string) error
	FinishRun(ctx context.Context, id, status string, total, succeeded, failed, records int) error
}

// ProgressEvent represents a state change of one case file
type ProgressEvent struct {
	IngestionID string `json:"id_ingesta"`
	CaseFile    string `json:"expediente"`
	From        string `json:"from"`
	State       string `json:"state"`
}

// ProgressCallback is called from worker goroutines; it must be safe for concurrent use.
type ProgressCallback func(event ProgressEvent)

// Options configure a run.
type Options struct {
	Section string
	// Year is used for case files that carry neither a year nor an assigned year.
	Year        int
	Workers     int
	CaseTimeout time.Duration
	Fanout      storage.FanoutOptions
	// ResetRoot clears the download root once before any worker starts.
	ResetRoot  bool
	LockKey    string
	LockTTL    time.Duration
	Now        func() time.Time
	OnProgress ProgressCallback
}

// DefaultOptions returns the pool size and timeouts used in production.
func DefaultOptions() Options {
	return Options{
		Workers:     4,
		CaseTimeout: 20 * time.Minute,
		Fanout:      storage.DefaultFanoutOptions(),
		ResetRoot:   true,
		LockKey:     "downloads",
		LockTTL:     2 * time.Hour,
		Now:         time.Now,
	}
}

// CaseResult is the outcome of one case file.
type CaseResult struct {
	CaseFile types.CaseFile      `json:"case_file"`
	State    string              `json:"state"`
	Failed   bool                `json:"failed"`
	Error    string              `json:"error,omitempty"`
	Window   *types.SearchWindow `json:"window,omitempty"`
	Rows     map[string]int      `json:"rows,omitempty"`
	Records  []types.AuditRecord `json:"records"`
}

// Summary aggregates a run.
type Summary struct {
	IngestionID string              `json:"id_ingesta"`
	Total       int                 `json:"total"`
	Succeeded   int                 `json:"exitosos"`
	Failed      int                 `json:"fallidos"`
	Records     []types.AuditRecord `json:"registros"`
	Cases       []CaseResult        `json:"expedientes"`
	StartedAt   time.Time           `json:"inicio"`
	Duration    time.Duration       `json:"duracion"`
}

// Orchestrator runs case files through isolated pipelines.
type Orchestrator struct {
	layout    *layout.Layout
	extractor *extract.Extractor
	factories Factories
	locker    lock.Locker
	runs      RunLog
	opts      Options
	logger    *zap.Logger
}

// New creates an orchestrator writing under l.
func New(l *layout.Layout, factories Factories, locker lock.Locker, opts Options, logger *zap.Logger) *Orchestrator {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.CaseTimeout <= 0 {
		opts.CaseTimeout = def.CaseTimeout
	}
	if opts.LockKey == "" {
		opts.LockKey = def.LockKey
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = def.LockTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fanout.Workers <= 0 {
		opts.Fanout = def.Fanout
	}
	if locker == nil {
		locker = lock.NewMemory()
	}
	return &Orchestrator{
		layout:    l,
		extractor: extract.New(l, logger),
		factories: factories,
		locker:    locker,
		opts:      opts,
		logger:    logger,
	}
}

// WithRunLog attaches run bookkeeping.
func (o *Orchestrator) WithRunLog(r RunLog) *Orchestrator {
	o.runs = r
	return o
}

// Run processes every case file and returns when all workers are closed.
// Only invalid input and a held run lock fail the run as a whole.
func (o *Orchestrator) Run(ctx context.Context, files []types.CaseFile) (*Summary, error) {
	if err := ValidateCaseFiles(files); err != nil {
		return nil, err
	}

	release, err := o.locker.Acquire(ctx, o.opts.LockKey, o.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	if o.opts.ResetRoot {
		if err := o.layout.Reset(); err != nil {
			return nil, fmt.Errorf("failed to reset download root: %w", err)
		}
	}

	summary := &Summary{
		IngestionID: uuid.NewString(),
		Total:       len(files),
		StartedAt:   o.opts.Now(),
		Records:     []types.AuditRecord{},
	}
	log := o.logger.With(zap.String("id_ingesta", summary.IngestionID))
	log.Info("Run started", zap.Int("case_files", len(files)), zap.Int("workers", o.opts.Workers))

	if o.runs != nil {
		if err := o.runs.StartRun(ctx, summary.IngestionID, o.opts.Section); err != nil {
			log.Warn("Failed to record run start", zap.Error(err))
		}
	}

	results := make(chan CaseResult, len(files))
	go func() {
		var g errgroup.Group
		g.SetLimit(o.opts.Workers)
		for _, cf := range files {
			g.Go(func() error {
				results <- o.runCase(ctx, cf, summary.IngestionID)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for res := range results {
		if res.Failed {
			summary.Failed++
		} else {
			summary.Succeeded++
			summary.Records = append(summary.Records, res.Records...)
		}
		summary.Cases = append(summary.Cases, res)
	}
	summary.Duration = time.Since(summary.StartedAt)

	if o.runs != nil {
		status := "completed"
		if summary.Failed > 0 && summary.Succeeded == 0 && summary.Total > 0 {
			status = "failed"
		}
		if err := o.runs.FinishRun(context.WithoutCancel(ctx), summary.IngestionID, status, summary.Total, summary.Succeeded, summary.Failed, len(summary.Records)); err != nil {
			log.Warn("Failed to record run completion", zap.Error(err))
		}
	}

	log.Info("Run finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("records", len(summary.Records)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}
