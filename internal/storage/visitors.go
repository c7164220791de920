package storage

import (
	"context"
	"fmt"
	"strings"
)

// UpsertVisitors inserts the given visitor rollups, overwriting the
// mutable fields of any row whose visitor_id already exists. first_seen
// is fixed on first insert.
func (s *Storage) UpsertVisitors(ctx context.Context, visitors []VisitorRecord) error {
	if len(visitors) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var b strings.Builder
	b.WriteString(`INSERT INTO visitors
(visitor_id, first_seen, last_seen, total_visits, total_page_views)
VALUES `)

	args := make([]any, 0, len(visitors)*5)
	for i, v := range visitors {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, v.VisitorID, v.FirstSeen.UTC(), v.LastSeen.UTC(), v.TotalVisits, v.TotalPageViews)
	}

	b.WriteString(` ON CONFLICT (visitor_id) DO UPDATE SET
last_seen = excluded.last_seen,
total_visits = excluded.total_visits,
total_page_views = excluded.total_page_views`)

	if _, err := s.db.ExecContext(ctx, s.rebind(b.String()), args...); err != nil {
		return fmt.Errorf("upsert %d visitors: %w", len(visitors), err)
	}
	return nil
}
