package storage

import "time"

// PageView is one enriched CDN access-log record. Page views are
// append-only events; they are created once by the pipeline and never
// updated.
type PageView struct {
	Timestamp time.Time // zero when the log line carried no usable timestamp
	VisitorID string    // privacy-hashed client identifier, empty when unknown
	SessionID string    // assigned by the session tracker, empty for session-less views

	URLPath     string
	QueryString string
	HTTPMethod  string
	StatusCode  int

	ReferrerDomain   string
	ReferrerPath     string
	ReferrerCategory string

	UserAgent      string
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
	IsBot          bool

	CountryCode string
	CountryName string
	Region      string
	City        string

	EdgeLocation   string
	EdgeResultType string
	BytesSent      int64
	TimeTakenMs    int

	// ClientIP is the raw (pre-hash) client address, kept only for GeoIP
	// enrichment. It is never persisted.
	ClientIP string `json:"-"`

	// Host is the host header the request was served under, kept only
	// for internal-referrer detection. It is never persisted.
	Host string `json:"-"`
}

// SessionRecord is one continuous visit by a visitor, finalized by the
// session tracker. Rows are upserted on SessionID: end_time,
// duration_seconds, page_views_count and exit_page may be overwritten,
// everything else is fixed at session creation.
type SessionRecord struct {
	SessionID       string
	VisitorID       string
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds int64
	PageViewsCount  int
	LandingPage     string
	ExitPage        string
	DeviceType      string
	CountryCode     string
}

// VisitorRecord is the per-visitor rollup across all sessions in a
// processing run. Rows are upserted on VisitorID: last_seen,
// total_visits and total_page_views may be overwritten, first_seen is
// fixed.
type VisitorRecord struct {
	VisitorID      string
	FirstSeen      time.Time
	LastSeen       time.Time
	TotalVisits    int
	TotalPageViews int
}

// TableStats holds row counts for the three analytics tables.
type TableStats struct {
	PageViews int64 `json:"page_views"`
	Sessions  int64 `json:"sessions"`
	Visitors  int64 `json:"visitors"`
}
