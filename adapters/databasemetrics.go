package adapters

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/kvstore"
	"github.com/sumologic/mongodbatlas-collector/window"
)

// DatabaseMetrics fetches measurements for one logical database on one
// process, grounded on DatabaseMetricsAPI. It implements
// stream.SingleFetchAdapter. Unlike ProcessMetrics/DiskMetrics, its cluster
// alias is derived from processId rather than hostId, matching the Python
// reference's transform_data.
type DatabaseMetrics struct {
	Client    *atlasclient.Client
	Store     kvstore.Store
	Log       *logrus.Logger
	ProjectID string

	ProcessID      string
	DatabaseName   string
	MetricNames    []string
	ClusterMapping ClusterMapping

	WindowConfig    Config
	PaginationLimit int
}

func (a *DatabaseMetrics) Key() string {
	return fmt.Sprintf("%s-%s-%s-dbmetrics", a.ProjectID, a.ProcessID, a.DatabaseName)
}

func (a *DatabaseMetrics) GetState(ctx context.Context) (float64, error) {
	key := a.Key()
	var cur simpleCursor
	ok, err := a.Store.Get(ctx, key, &cur)
	if err != nil {
		return 0, err
	}
	if !ok {
		cur.LastTimeEpoch = DefaultStartTimeEpoch(a.WindowConfig.BackfillDays, time.Now())
		if err := a.Store.Set(ctx, key, cur); err != nil {
			return 0, err
		}
	}
	return cur.LastTimeEpoch, nil
}

func (a *DatabaseMetrics) SaveState(ctx context.Context, lastTimeEpoch float64) error {
	return a.Store.Set(ctx, a.Key(), simpleCursor{LastTimeEpoch: lastTimeEpoch})
}

func (a *DatabaseMetrics) BuildFetchParams(ctx context.Context) (string, url.Values, error) {
	lastTimeEpoch, err := a.GetState(ctx)
	if err != nil {
		return "", nil, err
	}
	start, end, err := window.WaitForWindow(ctx, lastTimeEpoch, a.WindowConfig.Window)
	if err != nil {
		return "", nil, fmt.Errorf("adapters: databasemetrics: waiting for fetch window: %w", err)
	}
	path := fmt.Sprintf("/groups/%s/processes/%s/databases/%s/measurements", a.ProjectID, a.ProcessID, a.DatabaseName)
	params := url.Values{
		"itemsPerPage": {fmt.Sprint(a.PaginationLimit)},
		"granularity":  {"PT1M"},
		"start":        {formatIsoDate(start)},
		"end":          {formatIsoDate(end)},
	}
	for _, m := range a.MetricNames {
		params.Add("m", m)
	}
	return path, params, nil
}

func (a *DatabaseMetrics) CheckMoveFetchWindow(params url.Values) (bool, float64) {
	return checkMetricMoveFetchWindow(params.Get("end"))
}

func (a *DatabaseMetrics) TransformData(body []byte) ([]any, float64, error) {
	resp, err := decodeMeasurements(body)
	if err != nil {
		return nil, 0, err
	}

	processID := ReplaceClusterName(resp.ProcessID, a.ClusterMapping)
	clusterName := ClusterName(processID)
	tagOrder := []string{"projectId", "databaseName", "hostId", "processId", "metric", "units", "cluster_name"}

	var lines []any
	lastTimeEpoch := 0.0
	for _, m := range resp.Measurements {
		for _, dp := range m.DataPoints {
			if dp.Value == nil {
				continue
			}
			ts, err := time.Parse("2006-01-02T15:04:05Z", dp.Timestamp)
			if err != nil {
				continue
			}
			epoch := float64(ts.Unix())
			tags := map[string]string{
				"projectId": resp.GroupID, "databaseName": resp.DatabaseName,
				"hostId": resp.HostID, "processId": processID,
				"metric": m.Name, "units": m.Units, "cluster_name": clusterName,
			}
			lines = append(lines, carbon2Line(tags, tagOrder, *dp.Value, epoch))
			if epoch > lastTimeEpoch {
				lastTimeEpoch = epoch
			}
		}
	}
	return lines, lastTimeEpoch, nil
}
