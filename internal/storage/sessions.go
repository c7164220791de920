package storage

import (
	"context"
	"fmt"
	"strings"
)

// UpsertSessions inserts the given session records, overwriting the
// mutable fields of any row whose session_id already exists. Immutable
// fields (visitor, start time, landing page, device, country) are left
// untouched on conflict, so re-flushing a still-open session converges
// on the latest aggregate.
func (s *Storage) UpsertSessions(ctx context.Context, sessions []SessionRecord) error {
	if len(sessions) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var b strings.Builder
	b.WriteString(`INSERT INTO sessions
(session_id, visitor_id, start_time, end_time, duration_seconds, page_views_count, landing_page, exit_page, device_type, country_code)
VALUES `)

	args := make([]any, 0, len(sessions)*10)
	for i, sess := range sessions {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			sess.SessionID, sess.VisitorID, sess.StartTime.UTC(), nullTime(sess.EndTime),
			sess.DurationSeconds, sess.PageViewsCount,
			nullString(sess.LandingPage), nullString(sess.ExitPage),
			nullString(sess.DeviceType), nullString(sess.CountryCode),
		)
	}

	b.WriteString(` ON CONFLICT (session_id) DO UPDATE SET
end_time = excluded.end_time,
duration_seconds = excluded.duration_seconds,
page_views_count = excluded.page_views_count,
exit_page = excluded.exit_page`)

	if _, err := s.db.ExecContext(ctx, s.rebind(b.String()), args...); err != nil {
		return fmt.Errorf("upsert %d sessions: %w", len(sessions), err)
	}
	return nil
}
