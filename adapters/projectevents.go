package adapters

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/kvstore"
	"github.com/sumologic/mongodbatlas-collector/stream"
)

// ProjectEvents pages through a project's event feed, grounded on
// ProjectEventsAPI. It implements stream.PaginatedAdapter.
type ProjectEvents struct {
	Client    *atlasclient.Client
	Store     kvstore.Store
	Log       *logrus.Logger
	ProjectID string

	WindowConfig    Config
	PaginationLimit int
}

func (a *ProjectEvents) Key() string {
	return fmt.Sprintf("%s-projectevents", a.ProjectID)
}

func (a *ProjectEvents) GetState(ctx context.Context) (stream.WindowedCursor, error) {
	key := a.Key()
	var cur stream.WindowedCursor
	ok, err := a.Store.Get(ctx, key, &cur)
	if err != nil {
		return stream.WindowedCursor{}, err
	}
	if !ok {
		cur = stream.WindowedCursor{LastTimeEpoch: DefaultStartTimeEpoch(a.WindowConfig.BackfillDays, time.Now())}
		if err := a.Store.Set(ctx, key, cur); err != nil {
			return stream.WindowedCursor{}, err
		}
	}
	return cur, nil
}

func (a *ProjectEvents) SaveState(ctx context.Context, cursor stream.WindowedCursor) error {
	return a.Store.Set(ctx, a.Key(), cursor)
}

func (a *ProjectEvents) BuildFetchParams(ctx context.Context, cursor *stream.WindowedCursor) (string, url.Values, error) {
	minDate, maxDate, pageNum, err := buildEventsWindow(ctx, cursor, a.WindowConfig.Window)
	if err != nil {
		return "", nil, fmt.Errorf("adapters: projectevents: waiting for fetch window: %w", err)
	}
	path := fmt.Sprintf("/groups/%s/events", a.ProjectID)
	params := url.Values{
		"itemsPerPage": {fmt.Sprint(a.PaginationLimit)},
		"minDate":      {minDate},
		"maxDate":      {maxDate},
		"pageNum":      {fmt.Sprint(pageNum)},
	}
	return path, params, nil
}

func (a *ProjectEvents) CheckMoveFetchWindow(cursor stream.WindowedCursor) (bool, float64) {
	return checkEventsMoveFetchWindow(cursor)
}

func (a *ProjectEvents) TransformData(body []byte) ([]any, float64, error) {
	return transformEvents(body)
}
