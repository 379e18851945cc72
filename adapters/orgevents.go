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

// OrgEvents pages through an organization's event feed, grounded on
// OrgEventsAPI. It implements stream.PaginatedAdapter; identical to
// ProjectEvents apart from its URL template and cursor key.
type OrgEvents struct {
	Client *atlasclient.Client
	Store  kvstore.Store
	Log    *logrus.Logger
	OrgID  string

	WindowConfig    Config
	PaginationLimit int
}

func (a *OrgEvents) Key() string {
	return fmt.Sprintf("%s-orgevents", a.OrgID)
}

func (a *OrgEvents) GetState(ctx context.Context) (stream.WindowedCursor, error) {
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

func (a *OrgEvents) SaveState(ctx context.Context, cursor stream.WindowedCursor) error {
	return a.Store.Set(ctx, a.Key(), cursor)
}

func (a *OrgEvents) BuildFetchParams(ctx context.Context, cursor *stream.WindowedCursor) (string, url.Values, error) {
	minDate, maxDate, pageNum, err := buildEventsWindow(ctx, cursor, a.WindowConfig.Window)
	if err != nil {
		return "", nil, fmt.Errorf("adapters: orgevents: waiting for fetch window: %w", err)
	}
	path := fmt.Sprintf("/orgs/%s/events", a.OrgID)
	params := url.Values{
		"itemsPerPage": {fmt.Sprint(a.PaginationLimit)},
		"minDate":      {minDate},
		"maxDate":      {maxDate},
		"pageNum":      {fmt.Sprint(pageNum)},
	}
	return path, params, nil
}

func (a *OrgEvents) CheckMoveFetchWindow(cursor stream.WindowedCursor) (bool, float64) {
	return checkEventsMoveFetchWindow(cursor)
}

func (a *OrgEvents) TransformData(body []byte) ([]any, float64, error) {
	return transformEvents(body)
}
