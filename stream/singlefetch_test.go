package stream

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
)

type singleFetchTestAdapter struct {
	lastTimeEpoch float64
	saved         []float64
	moveOnEmpty   bool
}

func (a *singleFetchTestAdapter) Key() string { return "single-test" }

func (a *singleFetchTestAdapter) BuildFetchParams(_ context.Context) (string, url.Values, error) {
	return "/logs", url.Values{}, nil
}

func (a *singleFetchTestAdapter) TransformData(body []byte) ([]any, float64, error) {
	return []any{map[string]string{"line": string(body)}}, a.lastTimeEpoch + 1, nil
}

func (a *singleFetchTestAdapter) CheckMoveFetchWindow(_ url.Values) (bool, float64) {
	if a.moveOnEmpty {
		return true, a.lastTimeEpoch + 1
	}
	return false, 0
}

func (a *singleFetchTestAdapter) GetState(_ context.Context) (float64, error) {
	return a.lastTimeEpoch, nil
}

func (a *singleFetchTestAdapter) SaveState(_ context.Context, v float64) error {
	a.saved = append(a.saved, v)
	a.lastTimeEpoch = v
	return nil
}

func TestRunSingleFetchSendsAndCommits(t *testing.T) {
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("log line"))
	})
	defer closeSrv()

	a := &singleFetchTestAdapter{}
	snk := &fakeSink{}
	log := logrus.New()
	log.SetOutput(discardWriter{})

	if err := RunSingleFetch(context.Background(), client, snk, a, log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snk.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(snk.sent))
	}
	if len(a.saved) != 1 || a.saved[0] != 1 {
		t.Fatalf("expected cursor advanced to 1, got %v", a.saved)
	}
}

func TestRunSingleFetchDoesNotCommitOnSinkFailure(t *testing.T) {
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("log line"))
	})
	defer closeSrv()

	a := &singleFetchTestAdapter{}
	snk := &fakeSink{fail: true, failAt: 1}
	log := logrus.New()
	log.SetOutput(discardWriter{})

	if err := RunSingleFetch(context.Background(), client, snk, a, log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.saved) != 0 {
		t.Fatalf("expected no cursor commit on sink failure, got %v", a.saved)
	}
}

func TestRunSingleFetchEmptyBodyConsultsCheckMoveWindow(t *testing.T) {
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer closeSrv()

	a := &singleFetchTestAdapter{lastTimeEpoch: 10, moveOnEmpty: true}
	snk := &fakeSink{}
	log := logrus.New()
	log.SetOutput(discardWriter{})

	if err := RunSingleFetch(context.Background(), client, snk, a, log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.saved) != 1 || a.saved[0] != 11 {
		t.Fatalf("expected cursor moved to 11, got %v", a.saved)
	}
	if len(snk.sent) != 0 {
		t.Fatalf("expected no sink calls for empty body, got %d", len(snk.sent))
	}
}
