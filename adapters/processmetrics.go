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

// ProcessMetrics fetches a mongod/mongos process's host-level measurements
// (CPU, memory, connections, ...), grounded on ProcessMetricsAPI. It
// implements stream.SingleFetchAdapter.
type ProcessMetrics struct {
	Client    *atlasclient.Client
	Store     kvstore.Store
	Log       *logrus.Logger
	ProjectID string

	ProcessID      string
	MetricNames    []string
	ClusterMapping ClusterMapping

	WindowConfig    Config
	PaginationLimit int
}

func (a *ProcessMetrics) Key() string {
	return fmt.Sprintf("%s-%s-processmetrics", a.ProjectID, a.ProcessID)
}

func (a *ProcessMetrics) GetState(ctx context.Context) (float64, error) {
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

func (a *ProcessMetrics) SaveState(ctx context.Context, lastTimeEpoch float64) error {
	return a.Store.Set(ctx, a.Key(), simpleCursor{LastTimeEpoch: lastTimeEpoch})
}

func (a *ProcessMetrics) BuildFetchParams(ctx context.Context) (string, url.Values, error) {
	lastTimeEpoch, err := a.GetState(ctx)
	if err != nil {
		return "", nil, err
	}
	start, end, err := window.WaitForWindow(ctx, lastTimeEpoch, a.WindowConfig.Window)
	if err != nil {
		return "", nil, fmt.Errorf("adapters: processmetrics: waiting for fetch window: %w", err)
	}
	path := fmt.Sprintf("/groups/%s/processes/%s/measurements", a.ProjectID, a.ProcessID)
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

func (a *ProcessMetrics) CheckMoveFetchWindow(params url.Values) (bool, float64) {
	return checkMetricMoveFetchWindow(params.Get("end"))
}

func (a *ProcessMetrics) TransformData(body []byte) ([]any, float64, error) {
	resp, err := decodeMeasurements(body)
	if err != nil {
		return nil, 0, err
	}

	hostID := ReplaceClusterName(resp.HostID, a.ClusterMapping)
	processID := ReplaceClusterName(resp.ProcessID, a.ClusterMapping)
	clusterName := ClusterName(hostID)
	tagOrder := []string{"projectId", "hostId", "processId", "metric", "units", "cluster_name"}

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
				"projectId": resp.GroupID, "hostId": hostID, "processId": processID,
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
