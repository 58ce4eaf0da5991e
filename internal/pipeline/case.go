package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/audit"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/calendar"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/extract"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/layout"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/storage"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

type publication struct {
	period types.Period
	files  storage.Split
	ok     bool
}

// runCase drives one case file from Pending to Closed. It never panics and
// never returns records for a failed case file.
func (o *Orchestrator) runCase(parent context.Context, cf types.CaseFile, ingestionID string) (res CaseResult) {
	log := o.logger.With(zap.String("tax_id", cf.TaxID), zap.String("case_number", cf.CaseNumber))
	m := newMachine(log, func(from, to State) {
		log.Debug("State changed", zap.Stringer("from", from), zap.Stringer("to", to))
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(ProgressEvent{IngestionID: ingestionID, CaseFile: cf.Key(), From: from.String(), State: to.String()})
		}
	})
	res = CaseResult{CaseFile: cf, Records: []types.AuditRecord{}}

	ctx, cancel := context.WithTimeout(parent, o.opts.CaseTimeout)
	var closers []func()

	fail := func(err error) {
		m.fail()
		res.Failed = true
		res.Error = err.Error()
		res.Records = []types.AuditRecord{}
		log.Error("Case file failed", zap.Error(err))
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
			log.Error("Recovered worker panic", zap.ByteString("stack", debug.Stack()))
		}
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		cancel()
		m.close()
		res.State = m.state.String()
	}()

	year := cf.ResolvedYear(o.defaultYear())
	quarters := cf.ResolvedQuarters()
	target := layout.TargetFor(o.opts.Section, cf)

	window, err := calendar.Window(year, quarters, o.opts.Now())
	if err != nil {
		fail(fmt.Errorf("search window for %d %v: %w", year, quarters, err))
		return res
	}
	res.Window = &window

	m.to(Authenticating)
	session, err := o.factories.OpenSession(ctx)
	if err != nil {
		fail(err)
		return res
	}
	closers = append(closers, session.Close)

	store, err := o.factories.NewStore(ctx)
	if err != nil {
		fail(fmt.Errorf("blob store: %w", err))
		return res
	}
	closers = append(closers, closerOf(store, log))

	sink, err := o.factories.NewSink(ctx)
	if err != nil {
		fail(fmt.Errorf("audit sink: %w", err))
		return res
	}
	closers = append(closers, closerOf(sink, log))

	m.to(Searching)
	if err := session.Search(ctx, cf.TaxID, cf.CaseNumber, window); err != nil {
		log.Warn("Search did not complete", zap.Error(err))
	}

	m.to(Extracting)
	extracted, err := o.extractor.Extract(ctx, session, target, year)
	if err != nil {
		fail(err)
		return res
	}
	if len(quarters) > 0 {
		if _, err := o.extractor.EnsureRequested(target, year, quarters); err != nil {
			log.Warn("Failed to create requested period folders", zap.Error(err))
		}
	}
	res.Rows = rowCounts(extracted.Rows)

	m.to(Uploading)
	fanout := storage.NewFanout(store, o.layout, o.opts.Fanout, log)
	var pubs []publication
	for _, p := range periodsToPublish(year, quarters, extracted.Populated) {
		urls, keys, err := fanout.PublishPeriod(ctx, target, p)
		if err != nil {
			log.Warn("Failed to publish period", zap.Stringer("period", p), zap.Error(err))
		}
		pubs = append(pubs, publication{period: p, files: storage.SplitByKind(urls, keys), ok: len(urls) > 0})
	}

	m.to(Recording)
	recorder := audit.NewRecorder(sink, log)
	enr := types.EnrichmentFor(cf, ingestionID)
	for _, pub := range pubs {
		rec := recorder.Record(ctx, cf, o.opts.Section, pub.period, pub.ok, pub.files, o.opts.Now(), enr)
		res.Records = append(res.Records, rec)
	}
	return res
}

func (o *Orchestrator) defaultYear() int {
	if o.opts.Year > 0 {
		return o.opts.Year
	}
	return o.opts.Now().Year()
}

// periodsToPublish returns the requested quarters of the searched year when
// any were requested, otherwise every period that received rows.
func periodsToPublish(year int, quarters []int, populated []types.Period) []types.Period {
	if len(quarters) == 0 {
		return populated
	}
	out := make([]types.Period, 0, len(quarters))
	for _, q := range quarters {
		out = append(out, types.Period{Year: year, Quarter: q})
	}
	return out
}

func rowCounts(rows []extract.RowResult) map[string]int {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Outcome.String()]++
	}
	return counts
}

func closerOf(v any, log *zap.Logger) func() {
	switch c := v.(type) {
	case interface{ Close() }:
		return c.Close
	case interface{ Close() error }:
		return func() {
			if err := c.Close(); err != nil {
				log.Warn("Failed to close worker resource", zap.Error(err))
			}
		}
	default:
		return func() {}
	}
}
