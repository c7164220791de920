// Package session groups enriched page views into visit sessions using
// a time-gap heuristic and aggregates per-visitor statistics.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dustin/edgestat/internal/storage"
)

// DefaultTimeout is the inactivity gap after which a visitor's next
// page view starts a new session.
const DefaultTimeout = 30 * time.Minute

// state is an in-progress session. Only the most recently created
// session per visitor is ever extended.
type state struct {
	id           string
	start        time.Time
	lastActivity time.Time
	pageViews    int
	landingPage  string
	exitPage     string
	deviceType   string
	countryCode  string
}

// Tracker maintains per-visitor session state for one processing run.
// It is not safe for concurrent use: the caller owns a run end to end,
// and if work is sharded each shard needs its own Tracker covering a
// disjoint set of visitors.
//
// Records for a given visitor must be presented to Add in
// non-decreasing timestamp order. Out-of-order delivery is not
// detected and produces degenerate session boundaries.
type Tracker struct {
	timeout  time.Duration
	visitors map[string][]*state
	started  int64
}

// NewTracker creates a Tracker with the given inactivity timeout.
// Non-positive timeouts fall back to DefaultTimeout.
func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		timeout:  timeout,
		visitors: make(map[string][]*state),
	}
}

// Add assigns the page view to a session and updates tracker state.
// The record is annotated with the resolved session id and returned.
//
// A record without a visitor id or timestamp cannot be sessionized; it
// is returned with an empty session id and no state is mutated. This is
// an expected input shape, not an error.
func (t *Tracker) Add(pv *storage.PageView) *storage.PageView {
	if pv.VisitorID == "" || pv.Timestamp.IsZero() {
		pv.SessionID = ""
		return pv
	}

	sessions := t.visitors[pv.VisitorID]
	if len(sessions) > 0 {
		current := sessions[len(sessions)-1]
		if pv.Timestamp.Sub(current.lastActivity) <= t.timeout {
			current.lastActivity = pv.Timestamp
			current.pageViews++
			current.exitPage = pv.URLPath
			pv.SessionID = current.id
			return pv
		}
	}

	// First session for this visitor, or the timeout elapsed and the
	// previous session is frozen.
	sess := &state{
		id:           sessionID(pv.VisitorID, pv.Timestamp),
		start:        pv.Timestamp,
		lastActivity: pv.Timestamp,
		pageViews:    1,
		landingPage:  pv.URLPath,
		exitPage:     pv.URLPath,
		deviceType:   pv.DeviceType,
		countryCode:  pv.CountryCode,
	}
	t.visitors[pv.VisitorID] = append(sessions, sess)
	t.started++
	pv.SessionID = sess.id
	return pv
}

// sessionID derives a deterministic identifier from the visitor and the
// session's start timestamp.
func sessionID(visitorID string, start time.Time) string {
	sum := sha256.Sum256([]byte(visitorID + ":" + start.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:32]
}

// Sessions materializes finalized session records for every tracked
// session. Order across visitors is unspecified.
func (t *Tracker) Sessions() []storage.SessionRecord {
	out := make([]storage.SessionRecord, 0, t.started)
	for visitorID, sessions := range t.visitors {
		for _, sess := range sessions {
			out = append(out, storage.SessionRecord{
				SessionID:       sess.id,
				VisitorID:       visitorID,
				StartTime:       sess.start,
				EndTime:         sess.lastActivity,
				DurationSeconds: int64(sess.lastActivity.Sub(sess.start) / time.Second),
				PageViewsCount:  sess.pageViews,
				LandingPage:     sess.landingPage,
				ExitPage:        sess.exitPage,
				DeviceType:      sess.deviceType,
				CountryCode:     sess.countryCode,
			})
		}
	}
	return out
}

// Visitors materializes one rollup per visitor: first seen is the
// earliest session's start, last seen the latest session's last
// activity, and the totals sum across that visitor's sessions.
func (t *Tracker) Visitors() []storage.VisitorRecord {
	out := make([]storage.VisitorRecord, 0, len(t.visitors))
	for visitorID, sessions := range t.visitors {
		if len(sessions) == 0 {
			continue
		}
		totalPageViews := 0
		for _, sess := range sessions {
			totalPageViews += sess.pageViews
		}
		out = append(out, storage.VisitorRecord{
			VisitorID:      visitorID,
			FirstSeen:      sessions[0].start,
			LastSeen:       sessions[len(sessions)-1].lastActivity,
			TotalVisits:    len(sessions),
			TotalPageViews: totalPageViews,
		})
	}
	return out
}

// SessionCount reports how many sessions have been started since the
// tracker was created or last reset.
func (t *Tracker) SessionCount() int64 {
	return t.started
}

// Reset clears all tracked state, leaving the tracker as freshly
// constructed. Used to isolate independent processing runs.
func (t *Tracker) Reset() {
	t.visitors = make(map[string][]*state)
	t.started = 0
}
