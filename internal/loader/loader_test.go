package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dustin/edgestat/internal/storage"
)

var errBadRecord = errors.New("constraint violation")

// fakeStore records chunk sizes and fails selectively.
type fakeStore struct {
	pageViewChunks []int
	singleInserts  int
	sessionChunks  []int
	visitorChunks  []int

	failBulkInsert   bool
	failSingleURL    string
	failSessionChunk int // fail the Nth session chunk (1-based), 0 = never
	failVisitorChunk int
	blockUntilCancel bool
}

func (f *fakeStore) InsertPageViews(ctx context.Context, views []storage.PageView) error {
	if f.blockUntilCancel {
		<-ctx.Done()
		return ctx.Err()
	}
	f.pageViewChunks = append(f.pageViewChunks, len(views))
	if f.failBulkInsert {
		return errBadRecord
	}
	for _, pv := range views {
		if pv.URLPath == f.failSingleURL && f.failSingleURL != "" {
			return errBadRecord
		}
	}
	return nil
}

func (f *fakeStore) InsertPageView(ctx context.Context, view storage.PageView) error {
	f.singleInserts++
	if f.failSingleURL != "" && view.URLPath == f.failSingleURL {
		return errBadRecord
	}
	return nil
}

func (f *fakeStore) UpsertSessions(ctx context.Context, sessions []storage.SessionRecord) error {
	f.sessionChunks = append(f.sessionChunks, len(sessions))
	if f.failSessionChunk == len(f.sessionChunks) {
		return errBadRecord
	}
	return nil
}

func (f *fakeStore) UpsertVisitors(ctx context.Context, visitors []storage.VisitorRecord) error {
	f.visitorChunks = append(f.visitorChunks, len(visitors))
	if f.failVisitorChunk == len(f.visitorChunks) {
		return errBadRecord
	}
	return nil
}

func pageViews(n int) []storage.PageView {
	out := make([]storage.PageView, n)
	for i := range out {
		out[i].URLPath = "/p"
	}
	return out
}

func TestLoadPageViews_Chunking(t *testing.T) {
	store := &fakeStore{}
	l := New(store, Options{BatchSize: 10})

	got := l.LoadPageViews(context.Background(), pageViews(25))
	if got != 25 {
		t.Errorf("persisted = %d, want 25", got)
	}
	wantChunks := []int{10, 10, 5}
	if len(store.pageViewChunks) != len(wantChunks) {
		t.Fatalf("chunks = %v, want %v", store.pageViewChunks, wantChunks)
	}
	for i, want := range wantChunks {
		if store.pageViewChunks[i] != want {
			t.Errorf("chunk %d size = %d, want %d", i, store.pageViewChunks[i], want)
		}
	}
	if store.singleInserts != 0 {
		t.Errorf("singleInserts = %d, want 0 (no fallback without failures)", store.singleInserts)
	}
}

func TestLoadPageViews_PartialFailureIsolation(t *testing.T) {
	// One poisoned record in a chunk of 6: the chunk insert fails, the
	// per-record fallback persists the other 5 and drops the bad one.
	store := &fakeStore{failSingleURL: "/bad"}
	l := New(store, Options{BatchSize: 10})

	views := pageViews(6)
	views[3].URLPath = "/bad"

	got := l.LoadPageViews(context.Background(), views)
	if got != 5 {
		t.Errorf("persisted = %d, want 5", got)
	}
	if store.singleInserts != 6 {
		t.Errorf("singleInserts = %d, want 6 (every record retried individually)", store.singleInserts)
	}
}

func TestLoadPageViews_FallbackScopedToFailedChunk(t *testing.T) {
	store := &fakeStore{failBulkInsert: true}
	l := New(store, Options{BatchSize: 3})

	got := l.LoadPageViews(context.Background(), pageViews(7))
	// Every chunk fails; every record succeeds individually.
	if got != 7 {
		t.Errorf("persisted = %d, want 7", got)
	}
	if store.singleInserts != 7 {
		t.Errorf("singleInserts = %d, want 7", store.singleInserts)
	}
}

func TestLoadSessions_FailedChunkSkippedWhole(t *testing.T) {
	store := &fakeStore{failSessionChunk: 2}
	l := New(store, Options{BatchSize: 10})

	sessions := make([]storage.SessionRecord, 25)
	got := l.LoadSessions(context.Background(), sessions)

	// Chunks of 10/10/5; the second is lost whole, no per-record retry.
	if got != 15 {
		t.Errorf("persisted = %d, want 15", got)
	}
	if len(store.sessionChunks) != 3 {
		t.Errorf("chunk attempts = %d, want 3", len(store.sessionChunks))
	}
	if store.singleInserts != 0 {
		t.Errorf("singleInserts = %d, want 0 (no fallback for sessions)", store.singleInserts)
	}
}

func TestLoadVisitors_FailedChunkSkippedWhole(t *testing.T) {
	store := &fakeStore{failVisitorChunk: 1}
	l := New(store, Options{BatchSize: 4})

	visitors := make([]storage.VisitorRecord, 6)
	got := l.LoadVisitors(context.Background(), visitors)
	if got != 2 {
		t.Errorf("persisted = %d, want 2", got)
	}
}

func TestLoad_EmptyInputs(t *testing.T) {
	store := &fakeStore{}
	l := New(store, Options{})

	summary := l.LoadAll(context.Background(), nil, nil, nil)
	if summary != (Summary{}) {
		t.Errorf("summary = %+v, want zero", summary)
	}
	if len(store.pageViewChunks) != 0 || len(store.sessionChunks) != 0 || len(store.visitorChunks) != 0 {
		t.Errorf("store touched for empty input")
	}
}

func TestLoadAll_Summary(t *testing.T) {
	store := &fakeStore{}
	l := New(store, Options{BatchSize: 10})

	summary := l.LoadAll(context.Background(),
		pageViews(12),
		make([]storage.SessionRecord, 3),
		make([]storage.VisitorRecord, 2),
	)

	want := Summary{PageViews: 12, Sessions: 3, Visitors: 2}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
}

func TestChunkTimeout_ExpiredChunkCountsAsFailed(t *testing.T) {
	// The store blocks until its context is cancelled; with a short
	// chunk timeout the bulk insert fails and the fallback path runs.
	store := &fakeStore{blockUntilCancel: true}
	l := New(store, Options{BatchSize: 10, ChunkTimeout: 10 * time.Millisecond})

	got := l.LoadPageViews(context.Background(), pageViews(2))
	if got != 2 {
		t.Errorf("persisted = %d, want 2 via single-record fallback", got)
	}
	if store.singleInserts != 2 {
		t.Errorf("singleInserts = %d, want 2", store.singleInserts)
	}
}

func TestNew_DefaultBatchSize(t *testing.T) {
	store := &fakeStore{}
	l := New(store, Options{})

	l.LoadPageViews(context.Background(), pageViews(DefaultBatchSize+1))
	if len(store.pageViewChunks) != 2 {
		t.Errorf("chunk count = %d, want 2 with the default batch size", len(store.pageViewChunks))
	}
}
