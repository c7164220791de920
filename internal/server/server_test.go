package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dustin/edgestat/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Storage) {
	t.Helper()
	store, err := storage.Open(storage.Options{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store), store
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["db"] != "connected" {
		t.Errorf("db = %v, want connected", body["db"])
	}
}

func TestStats(t *testing.T) {
	srv, store := newTestServer(t)

	views := []storage.PageView{
		{Timestamp: time.Now().UTC(), VisitorID: "v1", URLPath: "/a"},
		{Timestamp: time.Now().UTC(), VisitorID: "v1", URLPath: "/b"},
	}
	if err := store.InsertPageViews(context.Background(), views); err != nil {
		t.Fatalf("insert page views: %v", err)
	}

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats storage.TableStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if stats.PageViews != 2 {
		t.Errorf("PageViews = %d, want 2", stats.PageViews)
	}
	if stats.Sessions != 0 || stats.Visitors != 0 {
		t.Errorf("Sessions/Visitors = %d/%d, want 0/0", stats.Sessions, stats.Visitors)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Errorf("empty metrics body")
	}
}
