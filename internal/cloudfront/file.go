package cloudfront

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/edgestat/internal/storage"
)

// FileStats summarizes one file pass.
type FileStats struct {
	Lines  int
	Parsed int
	Errors int
}

// ParseFile reads a log file (plain or gzip-compressed) and calls emit
// for every parsed record. Malformed lines are counted and skipped. A
// non-nil error from emit aborts the pass.
func (p *Parser) ParseFile(ctx context.Context, path string, emit func(storage.PageView) error) (FileStats, error) {
	var stats FileStats

	f, err := os.Open(path)
	if err != nil {
		return stats, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return stats, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	scanner := bufio.NewScanner(reader)
	// Long user-agent and referrer fields can push lines well past the
	// default scanner limit.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if Skip(line) {
			continue
		}
		stats.Lines++

		pv, err := p.ParseLine(line)
		if err != nil {
			stats.Errors++
			slog.Debug("skipping malformed log line", "path", path, "error", err)
			continue
		}
		stats.Parsed++

		if err := emit(pv); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read %s: %w", path, err)
	}
	return stats, nil
}
