package storage

import (
	"context"
	"fmt"
	"strings"
)

var pageViewColumns = []string{
	"ts", "visitor_id", "session_id",
	"url_path", "query_string", "http_method", "status_code",
	"referrer_domain", "referrer_path", "referrer_category",
	"user_agent", "browser", "browser_version", "os", "os_version", "device_type", "is_bot",
	"country_code", "country_name", "region", "city",
	"edge_location", "edge_result_type", "bytes_sent", "time_taken_ms",
}

func pageViewArgs(pv PageView) []any {
	return []any{
		nullTime(pv.Timestamp), nullString(pv.VisitorID), nullString(pv.SessionID),
		nullString(pv.URLPath), nullString(pv.QueryString), nullString(pv.HTTPMethod), pv.StatusCode,
		nullString(pv.ReferrerDomain), nullString(pv.ReferrerPath), nullString(pv.ReferrerCategory),
		nullString(pv.UserAgent), nullString(pv.Browser), nullString(pv.BrowserVersion),
		nullString(pv.OS), nullString(pv.OSVersion), nullString(pv.DeviceType), pv.IsBot,
		nullString(pv.CountryCode), nullString(pv.CountryName), nullString(pv.Region), nullString(pv.City),
		nullString(pv.EdgeLocation), nullString(pv.EdgeResultType), pv.BytesSent, pv.TimeTakenMs,
	}
}

// InsertPageViews inserts the given records in a single multi-row
// statement. Page views are append-only: there is no conflict handling.
func (s *Storage) InsertPageViews(ctx context.Context, views []PageView) error {
	if len(views) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(pageViewColumns)), ", ") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO page_views (")
	b.WriteString(strings.Join(pageViewColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(views)*len(pageViewColumns))
	for i, pv := range views {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholder)
		args = append(args, pageViewArgs(pv)...)
	}

	if _, err := s.db.ExecContext(ctx, s.rebind(b.String()), args...); err != nil {
		return fmt.Errorf("insert %d page views: %w", len(views), err)
	}
	return nil
}

// InsertPageView inserts a single record. Used by the loader's
// per-record fallback when a multi-row insert fails.
func (s *Storage) InsertPageView(ctx context.Context, pv PageView) error {
	return s.InsertPageViews(ctx, []PageView{pv})
}
