// Package loader persists page views, sessions and visitors in
// bounded-size batches. It is built for best-effort bulk ingestion:
// every persistence failure is handled at the narrowest possible scope
// and logged, and no failure aborts a run.
package loader

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/edgestat/internal/storage"
)

// DefaultBatchSize is the maximum number of records per persistence
// operation.
const DefaultBatchSize = 1000

// Store is the persistence surface the loader drives. *storage.Storage
// implements it.
type Store interface {
	InsertPageViews(ctx context.Context, views []storage.PageView) error
	InsertPageView(ctx context.Context, view storage.PageView) error
	UpsertSessions(ctx context.Context, sessions []storage.SessionRecord) error
	UpsertVisitors(ctx context.Context, visitors []storage.VisitorRecord) error
}

// Options configures a Loader.
type Options struct {
	// BatchSize caps records per persistence operation. Non-positive
	// values fall back to DefaultBatchSize.
	BatchSize int
	// ChunkTimeout is the deadline applied to each chunk operation. An
	// expired chunk counts as a failed chunk. Zero disables the
	// deadline.
	ChunkTimeout time.Duration
}

// Loader moves in-memory record collections into a Store.
type Loader struct {
	store        Store
	batchSize    int
	chunkTimeout time.Duration
	log          *slog.Logger
}

func New(store Store, opts Options) *Loader {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		store:        store,
		batchSize:    batchSize,
		chunkTimeout: opts.ChunkTimeout,
		log:          slog.Default(),
	}
}

// Summary reports how many records of each type were persisted.
type Summary struct {
	PageViews int `json:"page_views"`
	Sessions  int `json:"sessions"`
	Visitors  int `json:"visitors"`
}

// chunkCtx derives a per-chunk deadline context.
func (l *Loader) chunkCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.chunkTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.chunkTimeout)
}

// LoadPageViews inserts page views in chunks. A failed chunk falls back
// to per-record inserts so one bad record does not take down its
// neighbors; records that still fail are logged and dropped. Returns
// the number of records persisted.
func (l *Loader) LoadPageViews(ctx context.Context, views []storage.PageView) int {
	persisted := 0
	for start := 0; start < len(views); start += l.batchSize {
		end := min(start+l.batchSize, len(views))
		chunk := views[start:end]

		cctx, cancel := l.chunkCtx(ctx)
		err := l.store.InsertPageViews(cctx, chunk)
		cancel()
		if err == nil {
			persisted += len(chunk)
			continue
		}
		l.log.Warn("page view chunk failed, retrying records individually",
			"chunk_size", len(chunk), "error", err)

		for _, pv := range chunk {
			cctx, cancel := l.chunkCtx(ctx)
			err := l.store.InsertPageView(cctx, pv)
			cancel()
			if err != nil {
				l.log.Warn("dropping page view record",
					"url_path", pv.URLPath, "visitor_id", pv.VisitorID, "error", err)
				continue
			}
			persisted++
		}
	}
	return persisted
}

// LoadSessions upserts session records in chunks. Failed chunks are
// logged and skipped whole: session rows are idempotent by key, so a
// lost chunk is safe to retry wholesale in a later run. Returns the
// number of records submitted in successful chunks.
func (l *Loader) LoadSessions(ctx context.Context, sessions []storage.SessionRecord) int {
	persisted := 0
	for start := 0; start < len(sessions); start += l.batchSize {
		end := min(start+l.batchSize, len(sessions))
		chunk := sessions[start:end]

		cctx, cancel := l.chunkCtx(ctx)
		err := l.store.UpsertSessions(cctx, chunk)
		cancel()
		if err != nil {
			l.log.Warn("session chunk failed", "chunk_size", len(chunk), "error", err)
			continue
		}
		persisted += len(chunk)
	}
	return persisted
}

// LoadVisitors upserts visitor rollups in chunks, with the same
// skip-failed-chunks policy as LoadSessions.
func (l *Loader) LoadVisitors(ctx context.Context, visitors []storage.VisitorRecord) int {
	persisted := 0
	for start := 0; start < len(visitors); start += l.batchSize {
		end := min(start+l.batchSize, len(visitors))
		chunk := visitors[start:end]

		cctx, cancel := l.chunkCtx(ctx)
		err := l.store.UpsertVisitors(cctx, chunk)
		cancel()
		if err != nil {
			l.log.Warn("visitor chunk failed", "chunk_size", len(chunk), "error", err)
			continue
		}
		persisted += len(chunk)
	}
	return persisted
}

// LoadAll persists page views, then sessions, then visitors, and
// returns per-type persisted counts. Callers detect partial data loss
// by comparing the summary against their input counts.
func (l *Loader) LoadAll(ctx context.Context, views []storage.PageView, sessions []storage.SessionRecord, visitors []storage.VisitorRecord) Summary {
	summary := Summary{
		PageViews: l.LoadPageViews(ctx, views),
		Sessions:  l.LoadSessions(ctx, sessions),
		Visitors:  l.LoadVisitors(ctx, visitors),
	}
	l.log.Info("load complete",
		"page_views", summary.PageViews, "of_page_views", len(views),
		"sessions", summary.Sessions, "of_sessions", len(sessions),
		"visitors", summary.Visitors, "of_visitors", len(visitors))
	return summary
}
