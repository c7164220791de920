// Package pipeline orchestrates the ingestion flow: parse CDN access
// logs, enrich each record, group page views into sessions and load the
// results into storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hpcloud/tail"

	"github.com/dustin/edgestat/internal/cloudfront"
	"github.com/dustin/edgestat/internal/enrich"
	"github.com/dustin/edgestat/internal/loader"
	"github.com/dustin/edgestat/internal/metrics"
	"github.com/dustin/edgestat/internal/session"
	"github.com/dustin/edgestat/internal/storage"
)

// Pipeline processes one input stream at a time. The tracker state it
// owns is not safe for concurrent use; run one pipeline per stream.
type Pipeline struct {
	parser   *cloudfront.Parser
	enricher *enrich.Enricher
	tracker  *session.Tracker
	loader   *loader.Loader
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func New(parser *cloudfront.Parser, enricher *enrich.Enricher, tracker *session.Tracker, ldr *loader.Loader, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		parser:   parser,
		enricher: enricher,
		tracker:  tracker,
		loader:   ldr,
		metrics:  m,
		log:      slog.Default(),
	}
}

// Tracker exposes the pipeline's session tracker, mainly so callers can
// surface its session count as a metric.
func (p *Pipeline) Tracker() *session.Tracker {
	return p.tracker
}

// ProcessFiles parses all files matching the given patterns as one
// processing run, then loads page views, sessions and visitors. Files
// are processed oldest-first (lexically sorted, which matches dated
// CDN log names) so per-visitor timestamp ordering holds across file
// boundaries.
func (p *Pipeline) ProcessFiles(ctx context.Context, patterns []string) (loader.Summary, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return loader.Summary{}, fmt.Errorf("bad log path pattern %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return loader.Summary{}, fmt.Errorf("no log files match %v", patterns)
	}
	sort.Strings(files)

	var views []storage.PageView
	for _, file := range files {
		p.log.Info("processing log file", "path", file)
		stats, err := p.parser.ParseFile(ctx, file, func(pv storage.PageView) error {
			p.ingest(&pv)
			views = append(views, pv)
			return nil
		})
		for i := 0; i < stats.Errors; i++ {
			p.metrics.ObserveParseError()
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return loader.Summary{}, err
			}
			// Best effort: a broken file does not abort the run.
			p.log.Error("log file failed", "path", file, "error", err)
			continue
		}
		p.log.Info("log file processed", "path", file, "parsed", stats.Parsed, "malformed", stats.Errors)
	}

	return p.load(ctx, views), nil
}

// ingest enriches and sessionizes a single record.
func (p *Pipeline) ingest(pv *storage.PageView) {
	p.enricher.Enrich(pv)
	p.tracker.Add(pv)
	p.metrics.ObserveEntry(pv.Timestamp, pv.IsBot)
}

// load persists the given page views plus the tracker's current
// aggregates and records loader metrics.
func (p *Pipeline) load(ctx context.Context, views []storage.PageView) loader.Summary {
	sessions := p.tracker.Sessions()
	visitors := p.tracker.Visitors()

	summary := p.loader.LoadAll(ctx, views, sessions, visitors)
	p.metrics.ObserveLoad(metrics.TypePageViews, summary.PageViews, len(views))
	p.metrics.ObserveLoad(metrics.TypeSessions, summary.Sessions, len(sessions))
	p.metrics.ObserveLoad(metrics.TypeVisitors, summary.Visitors, len(visitors))
	return summary
}

// Follow tails a live log file and flushes buffered page views and the
// current session/visitor aggregates every flush interval. Open
// sessions are re-upserted under their stable ids on each flush, so
// repeated flushes converge on the final aggregate. A last flush runs
// on shutdown.
//
// TODO: prune frozen sessions from the tracker once flushed, so very
// long follow runs don't re-upsert the full session history forever.
func (p *Pipeline) Follow(ctx context.Context, path string, flushInterval time.Duration) error {
	t, err := tail.TailFile(path, tail.Config{
		ReOpen:    true,
		Follow:    true,
		Logger:    tail.DiscardingLogger,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: 2},
	})
	if err != nil {
		return fmt.Errorf("tail %s: %w", path, err)
	}

	if flushInterval <= 0 {
		flushInterval = 10 * time.Second
	}
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	p.log.Info("following log file", "path", path, "flush_interval", flushInterval)

	var pending []storage.PageView
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			// The run context is gone; give the final flush its own
			// bounded lifetime.
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			p.load(flushCtx, pending)
			cancel()
			return nil

		case <-ticker.C:
			if len(pending) == 0 && p.tracker.SessionCount() == 0 {
				continue
			}
			p.load(ctx, pending)
			pending = pending[:0]

		case line := <-t.Lines:
			if line == nil {
				continue
			}
			text := strings.TrimSpace(line.Text)
			if cloudfront.Skip(text) {
				continue
			}
			pv, err := p.parser.ParseLine(text)
			if err != nil {
				p.metrics.ObserveParseError()
				p.log.Debug("skipping malformed log line", "path", path, "error", err)
				continue
			}
			p.ingest(&pv)
			pending = append(pending, pv)
		}
	}
}
