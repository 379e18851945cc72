package adapters

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// metricsIsoformat is the timestamp layout Atlas's measurements endpoints
// take for start/end query parameters. dataPoints.timestamp values are
// parsed with a whole-second layout instead.
const metricsIsoformat = "2006-01-02T15:04:05.000Z"

// measurementsResponse is the shared response shape of the three
// measurements endpoints (process, disk, database), grounded on
// ProcessMetricsAPI/DiskMetricsAPI/DatabaseMetricsAPI.transform_data.
type measurementsResponse struct {
	GroupID       string `json:"groupId"`
	HostID        string `json:"hostId"`
	ProcessID     string `json:"processId"`
	PartitionName string `json:"partitionName"`
	DatabaseName  string `json:"databaseName"`
	Measurements  []struct {
		Name       string `json:"name"`
		Units      string `json:"units"`
		DataPoints []struct {
			Timestamp string   `json:"timestamp"`
			Value     *float64 `json:"value"`
		} `json:"dataPoints"`
	} `json:"measurements"`
}

// formatIsoDate renders an epoch-seconds value in the isoformat Atlas's
// measurements endpoints expect for start/end.
func formatIsoDate(epoch float64) string {
	return time.Unix(int64(epoch), 0).UTC().Format(metricsIsoformat)
}

// parseIsoDate parses a timestamp in metricsIsoformat back to epoch seconds.
func parseIsoDate(s string) (float64, error) {
	t, err := time.Parse(metricsIsoformat, s)
	if err != nil {
		return 0, err
	}
	return float64(t.Unix()), nil
}

// carbon2Line renders one datapoint as a Sumo Logic carbon2-style metric
// line: space-separated key=value tags, followed by the numeric value and
// the epoch timestamp, grounded on the carbon2 f-strings in
// ProcessMetricsAPI/DiskMetricsAPI/DatabaseMetricsAPI.transform_data.
func carbon2Line(tags map[string]string, tagOrder []string, value float64, timestamp float64) string {
	var b strings.Builder
	for i, key := range tagOrder {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", key, tags[key])
	}
	fmt.Fprintf(&b, " %v %d", value, int64(timestamp))
	return b.String()
}

func decodeMeasurements(body []byte) (measurementsResponse, error) {
	var resp measurementsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return measurementsResponse{}, fmt.Errorf("adapters: decoding measurements: %w", err)
	}
	return resp, nil
}

// checkMetricMoveFetchWindow is shared by all three measurement adapters:
// Atlas aggregates metrics on a 20-minute cycle, so a window ending before
// that point is final and the cursor may advance even with no datapoints.
func checkMetricMoveFetchWindow(endDate string) (bool, float64) {
	end, err := parseIsoDate(endDate)
	if err != nil {
		return false, 0
	}
	maxAvailable := float64(time.Now().Add(-MetricPublicationDelay).Unix())
	if end < maxAvailable {
		return true, end
	}
	return false, 0
}
