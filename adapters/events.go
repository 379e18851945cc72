package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sumologic/mongodbatlas-collector/stream"
	"github.com/sumologic/mongodbatlas-collector/window"
)

// eventsResponse is the shared response shape of the project/org events
// endpoints, grounded on ProjectEventsAPI/OrgEventsAPI.transform_data.
type eventsResponse struct {
	Results []map[string]any `json:"results"`
}

// buildEventsWindow resolves the [minDate, maxDate] window and page number
// for an events fetch, mirroring ProjectEventsAPI/OrgEventsAPI.build_fetch_params:
// page_num == 0 means a fresh window is computed and recorded onto cursor;
// otherwise the window already recorded on cursor (from an earlier page of
// this same invocation, or a resumed checkpoint) is reused verbatim.
func buildEventsWindow(ctx context.Context, cursor *stream.WindowedCursor, cfg window.Config) (startDate, endDate string, pageNum int, err error) {
	if cursor.PageNum == 0 {
		start, end, err := window.WaitForWindow(ctx, cursor.LastTimeEpoch, cfg)
		if err != nil {
			return "", "", 0, err
		}
		cursor.StartTimeEpoch = start
		cursor.EndTimeEpoch = end
		cursor.PageNum = 1
	}
	return formatIsoDate(cursor.StartTimeEpoch), formatIsoDate(cursor.EndTimeEpoch), cursor.PageNum, nil
}

// checkEventsMoveFetchWindow mirrors the events adapters' check_move_fetch_window:
// no Atlas documentation commits to an events publication delay, so the
// Python reference assumes the same 5-minute lag as logs, carried over here.
func checkEventsMoveFetchWindow(cursor stream.WindowedCursor) (bool, float64) {
	maxAvailable := float64(time.Now().Add(-EventsPublicationDelay).Unix())
	if cursor.EndTimeEpoch < maxAvailable {
		return true, cursor.EndTimeEpoch
	}
	return false, 0
}

// transformEvents forwards each result as-is, tracking the maximum
// "created" timestamp seen, grounded on ProjectEventsAPI.transform_data.
func transformEvents(body []byte) ([]any, float64, error) {
	var resp eventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("adapters: decoding events page: %w", err)
	}

	var out []any
	lastTimeEpoch := 0.0
	for _, obj := range resp.Results {
		out = append(out, obj)
		created, _ := obj["created"].(string)
		epoch, err := parseMongoDate(created)
		if err == nil && epoch > lastTimeEpoch {
			lastTimeEpoch = epoch
		}
	}
	return out, lastTimeEpoch, nil
}
