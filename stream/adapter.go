package stream

import (
	"context"
	"net/url"
)

// SingleFetchAdapter is implemented by sources that return one batch per
// invocation and advance a SimpleTimeCursor, grounded on FetchMixin +
// LogAPI in the Python reference.
type SingleFetchAdapter interface {
	// Key identifies this adapter instance for logging and cursor storage.
	Key() string

	// BuildFetchParams returns the request path and query parameters for
	// the next fetch, based on the adapter's current cursor.
	BuildFetchParams(ctx context.Context) (path string, params url.Values, err error)

	// TransformData decodes a successful response body into records ready
	// for the sink, and returns the cursor value to persist if sending
	// succeeds.
	TransformData(body []byte) (payload []any, nextLastTimeEpoch float64, err error)

	// CheckMoveFetchWindow is consulted when a fetch succeeds but returns
	// no data; it lets an adapter advance its cursor anyway when the
	// empty window is known to be final (data availability lag) rather
	// than retried forever.
	CheckMoveFetchWindow(params url.Values) (move bool, nextLastTimeEpoch float64)

	// GetState loads the adapter's persisted cursor.
	GetState(ctx context.Context) (lastTimeEpoch float64, err error)

	// SaveState persists the adapter's cursor.
	SaveState(ctx context.Context, lastTimeEpoch float64) error
}

// PaginatedAdapter is implemented by sources that page through a time
// window, grounded on PaginatedFetchMixin + ProcessMetricsAPI/EventsAPI in
// the Python reference.
type PaginatedAdapter interface {
	Key() string

	// BuildFetchParams returns the request path and query parameters for
	// page cursor.PageNum of the adapter's current window. When cursor.PageNum
	// is 0, BuildFetchParams computes a fresh window and records its
	// StartTimeEpoch/EndTimeEpoch onto cursor so that a later checkpoint
	// (SaveState) on this same cursor can resume mid-window.
	BuildFetchParams(ctx context.Context, cursor *WindowedCursor) (path string, params url.Values, err error)

	// TransformData decodes one page of results, returning the records to
	// send and the last_time_epoch value those records advance the
	// cursor to once sent successfully.
	TransformData(body []byte) (payload []any, lastTimeEpoch float64, err error)

	// CheckMoveFetchWindow mirrors SingleFetchAdapter's method, consulted
	// when page 1 of a window comes back empty.
	CheckMoveFetchWindow(cursor WindowedCursor) (move bool, nextLastTimeEpoch float64)

	// GetState loads the adapter's persisted window/page cursor.
	GetState(ctx context.Context) (WindowedCursor, error)

	// SaveState persists the adapter's window/page cursor.
	SaveState(ctx context.Context, cursor WindowedCursor) error
}

// ResultPage is the minimal shape every paginated Atlas endpoint shares:
// enough to decide whether another page should be requested.
type ResultPage struct {
	Results []any `json:"results"`
}
