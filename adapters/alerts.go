package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/kvstore"
	"github.com/sumologic/mongodbatlas-collector/runtime"
	"github.com/sumologic/mongodbatlas-collector/sink"
	"github.com/sumologic/mongodbatlas-collector/stream"
)

// Alerts pages through a project's open alerts, grounded on AlertsAPI. It
// does not implement stream.PaginatedAdapter: alerts page by a bare offset
// rather than a time window, and (per AlertsAPI's own comment) assume no
// new alerts are ever inserted into a page once it has been read past, so
// the driver only advances to the next page when the current one came back
// exactly full. A page smaller than the page size is the end of the feed:
// the cursor stays on that page, and every later invocation reads it again
// until it fills. This is a known limitation carried over unchanged from the
// Python reference: if Atlas ever mutates an earlier page after the cursor
// has moved past it, this adapter will not see the change.
type Alerts struct {
	Client    *atlasclient.Client
	Store     kvstore.Store
	Log       *logrus.Logger
	ProjectID string

	PaginationLimit int
}

func (a *Alerts) Key() string {
	return fmt.Sprintf("%s-alerts", a.ProjectID)
}

func (a *Alerts) GetState(ctx context.Context) (stream.PageOffsetCursor, error) {
	key := a.Key()
	var cur stream.PageOffsetCursor
	ok, err := a.Store.Get(ctx, key, &cur)
	if err != nil {
		return stream.PageOffsetCursor{}, err
	}
	if !ok {
		if err := a.Store.Set(ctx, key, cur); err != nil {
			return stream.PageOffsetCursor{}, err
		}
	}
	return cur, nil
}

func (a *Alerts) SaveState(ctx context.Context, cursor stream.PageOffsetCursor) error {
	return a.Store.Set(ctx, a.Key(), cursor)
}

type alertsResponse struct {
	Results []map[string]any `json:"results"`
}

// Fetch pages through alerts until a short page is seen, the sink rejects
// a batch, or the deadline is reached, checkpointing at each of those
// stopping points: a short or rejected page is saved as the page to resume
// on, and the deadline saves the page after the last full one.
func (a *Alerts) Fetch(ctx context.Context, snk sink.Sink, deadline *runtime.Deadline) error {
	cursor, err := a.GetState(ctx)
	if err != nil {
		return fmt.Errorf("adapters: alerts: loading state: %w", err)
	}
	pageNum := cursor.PageNum
	if pageNum == 0 {
		pageNum = 1
	}

	count := 0
	for {
		params := url.Values{
			"itemsPerPage": {fmt.Sprint(a.PaginationLimit)},
			"pageNum":      {fmt.Sprint(pageNum)},
		}
		path := fmt.Sprintf("/groups/%s/alerts", a.ProjectID)

		body, err := a.Client.GetBytes(ctx, path, params)
		if err != nil {
			a.Log.WithFields(logrus.Fields{"key": a.Key(), "page": pageNum, "err": err}).Error("fetch failed")
			return nil
		}

		var page alertsResponse
		if jsonErr := json.Unmarshal(body, &page); jsonErr != nil {
			a.Log.WithFields(logrus.Fields{"key": a.Key(), "page": pageNum, "err": jsonErr}).Error("decoding page failed")
			return nil
		}

		lastPageOffset := len(page.Results) % a.PaginationLimit

		if len(page.Results) == 0 {
			a.Log.WithFields(logrus.Fields{"key": a.Key(), "page": pageNum}).Debug("no alerts in page")
			return a.SaveState(ctx, stream.PageOffsetCursor{PageNum: pageNum, LastPageOffset: lastPageOffset})
		}

		payload := make([]any, len(page.Results))
		for i, obj := range page.Results {
			payload[i] = obj
		}

		ok, err := snk.Send(payload)
		if err != nil {
			a.Log.WithFields(logrus.Fields{"key": a.Key(), "page": pageNum, "err": err}).Error("sink failed, checkpointing")
			if saveErr := a.SaveState(ctx, stream.PageOffsetCursor{PageNum: pageNum, LastPageOffset: lastPageOffset}); saveErr != nil {
				return fmt.Errorf("adapters: alerts: saving state: %w", saveErr)
			}
			return fmt.Errorf("adapters: alerts: sending page %d: %w", pageNum, err)
		}
		if !ok {
			a.Log.WithFields(logrus.Fields{"key": a.Key(), "page": pageNum}).Error("sink rejected batch, checkpointing")
			return a.SaveState(ctx, stream.PageOffsetCursor{PageNum: pageNum, LastPageOffset: lastPageOffset})
		}

		count++
		if count < 4 || count%5 == 0 {
			a.Log.WithFields(logrus.Fields{"key": a.Key(), "page": pageNum, "sent": len(payload)}).Info("sent alerts page")
		}

		pageFull := lastPageOffset == 0
		if !pageFull {
			// A short page means this is the end of the feed for now;
			// stay on this page so the next invocation re-reads it rather
			// than assuming it is immutable forever.
			return a.SaveState(ctx, stream.PageOffsetCursor{PageNum: pageNum, LastPageOffset: lastPageOffset})
		}

		pageNum++
		if deadline != nil && deadline.Exceeded() {
			a.Log.WithFields(logrus.Fields{"key": a.Key(), "page": pageNum}).Info("deadline reached, checkpointing")
			return a.SaveState(ctx, stream.PageOffsetCursor{PageNum: pageNum, LastPageOffset: 0})
		}
	}
}
