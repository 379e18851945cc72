package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/sumologic/mongodbatlas-collector/stream"
	"github.com/sumologic/mongodbatlas-collector/window"
)

func newTestProjectEvents() *ProjectEvents {
	return &ProjectEvents{
		Store:           newMemStore(),
		Log:             newDiscardLogger(),
		ProjectID:       "proj1",
		WindowConfig:    Config{Window: window.DefaultConfig(), BackfillDays: 7},
		PaginationLimit: 100,
	}
}

func TestProjectEventsBuildFetchParamsFreshWindow(t *testing.T) {
	a := newTestProjectEvents()
	cursor, err := a.GetState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, params, err := a.BuildFetchParams(context.Background(), &cursor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/groups/proj1/events" {
		t.Fatalf("unexpected path: %s", path)
	}
	if params.Get("pageNum") != "1" {
		t.Fatalf("expected pageNum=1 on a fresh window, got %s", params.Get("pageNum"))
	}
	if cursor.PageNum != 1 {
		t.Fatalf("expected cursor.PageNum to be set to 1, got %d", cursor.PageNum)
	}
	if cursor.StartTimeEpoch == 0 || cursor.EndTimeEpoch == 0 {
		t.Fatalf("expected cursor window to be recorded, got %+v", cursor)
	}
}

func TestProjectEventsBuildFetchParamsResumesRecordedWindow(t *testing.T) {
	a := newTestProjectEvents()
	cursor := stream.WindowedCursor{PageNum: 2, StartTimeEpoch: 100, EndTimeEpoch: 200}
	_, params, err := a.BuildFetchParams(context.Background(), &cursor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Get("pageNum") != "2" {
		t.Fatalf("expected pageNum=2 resumed from cursor, got %s", params.Get("pageNum"))
	}
	if cursor.StartTimeEpoch != 100 || cursor.EndTimeEpoch != 200 {
		t.Fatalf("expected window left untouched on resume, got %+v", cursor)
	}
}

func TestTransformEventsTracksMaxCreated(t *testing.T) {
	body := []byte(`{"results":[
		{"id":"a","created":"2026-01-01T00:00:00Z"},
		{"id":"b","created":"2026-01-02T00:00:00Z"}
	]}`)
	payload, lastTimeEpoch, err := transformEvents(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload) != 2 {
		t.Fatalf("expected 2 events, got %d", len(payload))
	}
	want, _ := parseMongoDate("2026-01-02T00:00:00Z")
	if lastTimeEpoch != want {
		t.Fatalf("expected lastTimeEpoch=%v, got %v", want, lastTimeEpoch)
	}
}

func TestCheckEventsMoveFetchWindow(t *testing.T) {
	old := stream.WindowedCursor{EndTimeEpoch: 1}
	move, next := checkEventsMoveFetchWindow(old)
	if !move || next != 1 {
		t.Fatalf("expected move=true next=1, got move=%v next=%v", move, next)
	}

	recent := stream.WindowedCursor{EndTimeEpoch: float64(time.Now().Unix())}
	move, _ = checkEventsMoveFetchWindow(recent)
	if move {
		t.Fatal("expected move=false for a window ending now")
	}
}
