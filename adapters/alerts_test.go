package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/runtime"
)

type fakeAlertsSink struct {
	sent [][]any
	fail bool
}

func (f *fakeAlertsSink) Send(data []any) (bool, error) {
	if f.fail {
		return false, nil
	}
	f.sent = append(f.sent, data)
	return true, nil
}
func (f *fakeAlertsSink) Close() error { return nil }

func newTestAlertsClient(t *testing.T, handler http.HandlerFunc) (*atlasclient.Client, func()) {
	srv := httptest.NewServer(handler)
	c := atlasclient.New(srv.URL, "pub", "priv", atlasclient.RetryConfig{MaxRetry: 1, BackoffFactor: 0.01, Timeout: 2 * time.Second})
	return c, srv.Close
}

func TestAlertsStopsOnShortPage(t *testing.T) {
	pageCount := 0
	client, closeSrv := newTestAlertsClient(t, func(w http.ResponseWriter, r *http.Request) {
		pageCount++
		w.Header().Set("Content-Type", "application/json")
		if pageCount == 1 {
			results := make([]map[string]any, 2)
			for i := range results {
				results[i] = map[string]any{"id": i}
			}
			writeAlertsPage(w, results)
			return
		}
		t.Fatalf("unexpected second request for a short first page")
	})
	defer closeSrv()

	a := &Alerts{Client: client, Store: newMemStore(), Log: newDiscardLogger(), ProjectID: "proj1", PaginationLimit: 100}
	snk := &fakeAlertsSink{}
	if err := a.Fetch(context.Background(), snk, runtime.NewDeadline(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snk.sent) != 1 {
		t.Fatalf("expected 1 page sent, got %d", len(snk.sent))
	}
	cursor, err := a.GetState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor.PageNum != 1 {
		t.Fatalf("expected cursor to stay on page 1 after a short page, got %d", cursor.PageNum)
	}
}

func TestAlertsAdvancesPastFullPage(t *testing.T) {
	client, closeSrv := newTestAlertsClient(t, func(w http.ResponseWriter, r *http.Request) {
		pageNum := r.URL.Query().Get("pageNum")
		w.Header().Set("Content-Type", "application/json")
		if pageNum == "1" {
			results := make([]map[string]any, 2)
			for i := range results {
				results[i] = map[string]any{"id": i}
			}
			writeAlertsPage(w, results)
			return
		}
		writeAlertsPage(w, nil)
	})
	defer closeSrv()

	a := &Alerts{Client: client, Store: newMemStore(), Log: newDiscardLogger(), ProjectID: "proj1", PaginationLimit: 2}
	snk := &fakeAlertsSink{}
	if err := a.Fetch(context.Background(), snk, runtime.NewDeadline(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snk.sent) != 1 {
		t.Fatalf("expected 1 page sent before the empty page stopped the loop, got %d", len(snk.sent))
	}
	cursor, err := a.GetState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor.PageNum != 2 {
		t.Fatalf("expected cursor advanced to page 2, got %d", cursor.PageNum)
	}
}

func TestAlertsCheckpointsOnSinkFailure(t *testing.T) {
	client, closeSrv := newTestAlertsClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		results := make([]map[string]any, 2)
		for i := range results {
			results[i] = map[string]any{"id": i}
		}
		writeAlertsPage(w, results)
	})
	defer closeSrv()

	a := &Alerts{Client: client, Store: newMemStore(), Log: newDiscardLogger(), ProjectID: "proj1", PaginationLimit: 2}
	snk := &fakeAlertsSink{fail: true}
	if err := a.Fetch(context.Background(), snk, runtime.NewDeadline(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cursor, err := a.GetState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor.PageNum != 1 {
		t.Fatalf("expected checkpoint to stay on page 1 after sink rejection, got %d", cursor.PageNum)
	}
}

func TestAlertsRecordsLastPageOffsetOnFullThenShortPage(t *testing.T) {
	client, closeSrv := newTestAlertsClient(t, func(w http.ResponseWriter, r *http.Request) {
		pageNum := r.URL.Query().Get("pageNum")
		w.Header().Set("Content-Type", "application/json")
		count := 37
		if pageNum == "1" {
			count = 100
		}
		results := make([]map[string]any, count)
		for i := range results {
			results[i] = map[string]any{"id": i}
		}
		writeAlertsPage(w, results)
	})
	defer closeSrv()

	a := &Alerts{Client: client, Store: newMemStore(), Log: newDiscardLogger(), ProjectID: "proj1", PaginationLimit: 100}
	snk := &fakeAlertsSink{}
	if err := a.Fetch(context.Background(), snk, runtime.NewDeadline(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cursor, err := a.GetState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor.PageNum != 2 || cursor.LastPageOffset != 37 {
		t.Fatalf("expected cursor {page_num:2 last_page_offset:37}, got %+v", cursor)
	}
}

func writeAlertsPage(w http.ResponseWriter, results []map[string]any) {
	if results == nil {
		results = []map[string]any{}
	}
	body, _ := json.Marshal(map[string]any{"results": results})
	w.Write(body)
}
