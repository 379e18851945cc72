// Package stream implements the two fetch-and-send drivers shared by every
// concrete adapter (stream/adapters): a single-fetch driver for sources
// that return one window's worth of data per call, and a paginated driver
// for sources that page through a window. Grounded on FetchMixin.fetch and
// PaginatedFetchMixin.fetch in the Python reference implementation.
package stream

// SimpleTimeCursor is the persisted state of a single-fetch adapter (logs,
// metrics):
// just the last successfully processed point in time.
type SimpleTimeCursor struct {
	LastTimeEpoch float64 `json:"last_time_epoch"`
}

// WindowedCursor is the persisted state of a paginated, time-windowed
// adapter (events): the window currently being paged through,
// plus the last_time_epoch the window will advance from once exhausted.
type WindowedCursor struct {
	StartTimeEpoch float64 `json:"start_time_epoch"`
	EndTimeEpoch   float64 `json:"end_time_epoch"`
	PageNum        int     `json:"page_num"`
	LastTimeEpoch  float64 `json:"last_time_epoch"`
}

// PageOffsetCursor is the persisted state of the alerts adapter, which
// pages by a simple monotonically increasing page offset rather than a
// time window, and discards pages once consumed (see adapters.Alerts).
// LastPageOffset is the result count of the last page processed, modulo
// the pagination limit, mirroring AlertsAPI.transform_data's
// last_page_offset. It is recorded only: a resumed run always requests
// PageNum itself, whatever LastPageOffset holds, because adapters.Alerts
// already saves the page to resume on as PageNum.
type PageOffsetCursor struct {
	PageNum        int `json:"page_num"`
	LastPageOffset int `json:"last_page_offset"`
}
