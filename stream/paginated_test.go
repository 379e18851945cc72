package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/runtime"
)

type fakeSink struct {
	sent    [][]any
	fail    bool
	failAt  int
	calls   int
}

func (f *fakeSink) Send(data []any) (bool, error) {
	f.calls++
	if f.fail && f.calls == f.failAt {
		return false, nil
	}
	f.sent = append(f.sent, data)
	return true, nil
}

func (f *fakeSink) Close() error { return nil }

type pagingTestAdapter struct {
	state     WindowedCursor
	saved     []WindowedCursor
	pageCount int
}

func (a *pagingTestAdapter) Key() string { return "test-adapter" }

func (a *pagingTestAdapter) BuildFetchParams(_ context.Context, cursor *WindowedCursor) (string, url.Values, error) {
	return "/pages", url.Values{"pageNum": {"1"}}, nil
}

func (a *pagingTestAdapter) TransformData(body []byte) ([]any, float64, error) {
	var page ResultPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, 0, err
	}
	return page.Results, float64(time.Now().Unix()), nil
}

func (a *pagingTestAdapter) CheckMoveFetchWindow(cursor WindowedCursor) (bool, float64) {
	return false, 0
}

func (a *pagingTestAdapter) GetState(_ context.Context) (WindowedCursor, error) {
	return a.state, nil
}

func (a *pagingTestAdapter) SaveState(_ context.Context, cursor WindowedCursor) error {
	a.saved = append(a.saved, cursor)
	a.state = cursor
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*atlasclient.Client, func()) {
	srv := httptest.NewServer(handler)
	c := atlasclient.New(srv.URL, "pub", "priv", atlasclient.RetryConfig{MaxRetry: 1, BackoffFactor: 0.01, Timeout: 2 * time.Second})
	return c, srv.Close
}

func TestRunPaginatedStopsOnEmptyPage(t *testing.T) {
	pageNum := 0
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pageNum++
		w.Header().Set("Content-Type", "application/json")
		if pageNum >= 3 {
			w.Write([]byte(`{"results":[]}`))
			return
		}
		w.Write([]byte(`{"results":[{"id":"x"}]}`))
	})
	defer closeSrv()

	a := &pagingTestAdapter{state: WindowedCursor{PageNum: 1}}
	snk := &fakeSink{}
	log := logrus.New()
	log.SetOutput(discardWriter{})

	if err := RunPaginated(context.Background(), client, snk, a, runtime.NewDeadline(0), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snk.sent) != 2 {
		t.Fatalf("expected 2 pages sent, got %d", len(snk.sent))
	}
	last := a.saved[len(a.saved)-1]
	if last.PageNum != 0 {
		t.Fatalf("expected page reset to 0 after window exhaustion, got %d", last.PageNum)
	}
}

func TestRunPaginatedCheckpointsOnSinkFailure(t *testing.T) {
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"id":"x"}]}`))
	})
	defer closeSrv()

	a := &pagingTestAdapter{state: WindowedCursor{PageNum: 1}}
	snk := &fakeSink{fail: true, failAt: 1}
	log := logrus.New()
	log.SetOutput(discardWriter{})

	if err := RunPaginated(context.Background(), client, snk, a, runtime.NewDeadline(0), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.saved) != 1 {
		t.Fatalf("expected exactly one checkpoint save, got %d", len(a.saved))
	}
	if a.saved[0].PageNum != 1 {
		t.Fatalf("expected checkpoint to preserve page 1, got %d", a.saved[0].PageNum)
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
