package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/layout"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// FanoutOptions bounds upload concurrency.
type FanoutOptions struct {
	Workers int
	// RatePerSecond caps upload starts. Zero disables pacing.
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// DefaultFanoutOptions returns the pool used in production.
func DefaultFanoutOptions() FanoutOptions {
	return FanoutOptions{Workers: 8, RatePerSecond: 20, Burst: 8, Timeout: 60 * time.Second}
}

// Fanout uploads evidence folders through a bounded worker pool.
type Fanout struct {
	store   BlobStore
	layout  *layout.Layout
	opts    FanoutOptions
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFanout creates a fan-out over store for the tree described by l.
func NewFanout(store BlobStore, l *layout.Layout, opts FanoutOptions, logger *zap.Logger) *Fanout {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), max(opts.Burst, 1))
	}
	return &Fanout{store: store, layout: l, opts: opts, limiter: limiter, logger: logger}
}

// PlanPeriod lists the upload tasks of one period. Every file under the period
// folder, plus every loose image directly under the case root, is uploaded
// twice: once under its path relative to the layout root and once flattened
// directly under the period folder key. Tasks are sorted and every key is
// planned once; when two local files map to one key the first in sort order wins.
func (f *Fanout) PlanPeriod(t layout.Target, p types.Period) ([]types.UploadTask, error) {
	periodDir := f.layout.PeriodPath(t, p)
	periodKey, err := f.layout.Key(periodDir)
	if err != nil {
		return nil, err
	}

	var tasks []types.UploadTask
	add := func(local string) error {
		natural, err := f.layout.Key(local)
		if err != nil {
			return err
		}
		tasks = append(tasks,
			types.UploadTask{LocalPath: local, Key: natural},
			types.UploadTask{LocalPath: local, Key: path.Join(periodKey, filepath.Base(local))},
		)
		return nil
	}

	err = filepath.WalkDir(periodDir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		return add(name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", periodDir, err)
	}

	caseRoot := f.layout.CaseRoot(t, p.Year)
	entries, err := os.ReadDir(caseRoot)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list %s: %w", caseRoot, err)
	}
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		if err := add(filepath.Join(caseRoot, e.Name())); err != nil {
			return nil, err
		}
	}

	sortTasks(tasks)
	return uniqueKeys(tasks), nil
}

// uniqueKeys drops every task whose key was already taken by an earlier one.
// tasks must be sorted.
func uniqueKeys(tasks []types.UploadTask) []types.UploadTask {
	out := tasks[:0]
	for _, t := range tasks {
		if len(out) > 0 && t.Key == out[len(out)-1].Key {
			continue
		}
		out = append(out, t)
	}
	return out
}

// PublishPeriod uploads one period and returns the public URLs and storage
// keys of the objects that were stored, in matching order. Failed files are
// logged and left out.
func (f *Fanout) PublishPeriod(ctx context.Context, t layout.Target, p types.Period) ([]string, []string, error) {
	tasks, err := f.PlanPeriod(t, p)
	if err != nil {
		return nil, nil, err
	}
	urls, keys := f.execute(ctx, tasks)
	f.logger.Info("Published period",
		zap.String("tax_id", t.TaxID),
		zap.String("case_number", t.CaseNumber),
		zap.Stringer("period", p),
		zap.Int("tasks", len(tasks)),
		zap.Int("uploaded", len(urls)),
	)
	return urls, keys, nil
}

// PublishTree uploads every file under root keyed by its path relative to root.
func (f *Fanout) PublishTree(ctx context.Context, root string) ([]string, []string, error) {
	var tasks []types.UploadTask
	err := filepath.WalkDir(root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, name)
		if err != nil {
			return err
		}
		tasks = append(tasks, types.UploadTask{LocalPath: name, Key: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sortTasks(tasks)

	urls, keys := f.execute(ctx, tasks)
	f.logger.Info("Published tree", zap.String("root", root), zap.Int("tasks", len(tasks)), zap.Int("uploaded", len(urls)))
	return urls, keys, nil
}

type uploaded struct {
	url string
	key string
	ok  bool
}

func (f *Fanout) execute(ctx context.Context, tasks []types.UploadTask) ([]string, []string) {
	results := make([]uploaded, len(tasks))

	var g errgroup.Group
	g.SetLimit(f.opts.Workers)
	for i, task := range tasks {
		g.Go(func() error {
			if err := f.limiter.Wait(ctx); err != nil {
				f.logger.Warn("Upload not started", zap.String("path", task.LocalPath), zap.Error(err))
				return nil
			}
			uctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
			defer cancel()

			url, key, err := f.store.Put(uctx, task.LocalPath, task.Key)
			if err != nil {
				f.logger.Warn("Upload failed", zap.String("path", task.LocalPath), zap.String("key", task.Key), zap.Error(err))
				return nil
			}
			f.logger.Debug("Uploaded", zap.String("key", task.Key))
			results[i] = uploaded{url: url, key: key, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	var urls, keys []string
	for _, r := range results {
		if r.ok {
			urls = append(urls, r.url)
			keys = append(keys, r.key)
		}
	}
	return urls, keys
}

func sortTasks(tasks []types.UploadTask) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Key != tasks[j].Key {
			return tasks[i].Key < tasks[j].Key
		}
		return tasks[i].LocalPath < tasks[j].LocalPath
	})
}
