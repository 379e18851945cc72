package adapters

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/kvstore"
	"github.com/sumologic/mongodbatlas-collector/window"
)

// Log fetches one host's log file (mongodb.gz, mongos.gz, or their audit
// variants) as a gzip-compressed stream of newline-delimited JSON records,
// grounded on LogAPI in the Python reference. It implements
// stream.SingleFetchAdapter.
type Log struct {
	Client    *atlasclient.Client
	Store     kvstore.Store
	Log       *logrus.Logger
	ProjectID string

	Hostname       string
	Filename       string
	ClusterMapping ClusterMapping

	WindowConfig Config
}

// Config bundles the window-sizing and backfill parameters every adapter
// needs, so each concrete adapter doesn't repeat the same two fields.
type Config struct {
	Window       window.Config
	BackfillDays int
}

func (a *Log) Key() string {
	return fmt.Sprintf("%s-%s-%s", a.ProjectID, a.Hostname, a.Filename)
}

// isAudit reports whether this stream is an audit-log variant, which uses a
// different sink pathname and a different timestamp field name than
// regular mongod/mongos logs.
func (a *Log) isAudit() bool {
	return strings.Contains(a.Filename, "audit")
}

func (a *Log) GetState(ctx context.Context) (float64, error) {
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

func (a *Log) SaveState(ctx context.Context, lastTimeEpoch float64) error {
	return a.Store.Set(ctx, a.Key(), simpleCursor{LastTimeEpoch: lastTimeEpoch})
}

func (a *Log) BuildFetchParams(ctx context.Context) (string, url.Values, error) {
	lastTimeEpoch, err := a.GetState(ctx)
	if err != nil {
		return "", nil, err
	}
	start, end, err := window.WaitForWindow(ctx, lastTimeEpoch, a.WindowConfig.Window)
	if err != nil {
		return "", nil, fmt.Errorf("adapters: log: waiting for fetch window: %w", err)
	}
	path := fmt.Sprintf("/groups/%s/clusters/%s/logs/%s", a.ProjectID, a.Hostname, a.Filename)
	params := url.Values{
		"startDate": {strconv.FormatInt(int64(start), 10)},
		"endDate":   {strconv.FormatInt(int64(end), 10)},
	}
	return path, params, nil
}

// AcceptHeader requests the gzip log download directly rather than Atlas's
// default JSON error envelope, matching LogAPI.build_fetch_params's
// explicit "Accept: application/gzip". stream.RunSingleFetch checks for
// this method on every SingleFetchAdapter and uses it to pick the Accept
// header it sends.
func (a *Log) AcceptHeader() string {
	return "application/gzip"
}

func (a *Log) CheckMoveFetchWindow(params url.Values) (bool, float64) {
	endDate, _ := strconv.ParseInt(params.Get("endDate"), 10, 64)
	maxAvailable := time.Now().Add(-LogPublicationDelay).Unix()
	if endDate < maxAvailable {
		return true, float64(endDate)
	}
	return false, 0
}

// TransformData decompresses content as gzip and parses it as
// newline-delimited JSON, buffering a record across reads when a line
// doesn't parse on its own (a record split mid-write by Atlas), grounded on
// LogAPI.transform_data.
func (a *Log) TransformData(content []byte) ([]any, float64, error) {
	gz, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, 0, fmt.Errorf("adapters: log: ungzip: %w", err)
	}
	defer gz.Close()

	hostnameAlias := ReplaceClusterName(a.Hostname, a.ClusterMapping)
	clusterName := ClusterName(hostnameAlias)
	audit := a.isAudit()

	var records []any
	var lastTimeEpoch float64
	var pending string

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		candidate := pending + line

		var msg map[string]any
		if err := json.Unmarshal([]byte(candidate), &msg); err != nil {
			pending = candidate
			a.Log.WithFields(logrus.Fields{"key": a.Key(), "line": lineNo}).Warn("multiline message, buffering")
			continue
		}
		pending = ""

		msg["project_id"] = a.ProjectID
		msg["hostname"] = hostnameAlias
		msg["cluster_name"] = clusterName

		var createdRaw string
		if audit {
			createdRaw = dateField(msg, "ts")
		} else {
			createdRaw = dateField(msg, "t")
		}
		createdEpoch, err := parseMongoDate(createdRaw)
		if err == nil {
			if createdEpoch > lastTimeEpoch {
				lastTimeEpoch = createdEpoch
			}
		}
		msg["created"] = createdRaw
		records = append(records, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("adapters: log: scanning: %w", err)
	}
	return records, lastTimeEpoch, nil
}

// dateField extracts the "$date" string nested under key, the shape Atlas
// uses for BSON date fields in its JSON log export ({"t": {"$date": "..."}}).
func dateField(msg map[string]any, key string) string {
	wrapper, ok := msg[key].(map[string]any)
	if !ok {
		return ""
	}
	date, _ := wrapper["$date"].(string)
	return date
}

// parseMongoDate parses the ISO-8601 timestamp Atlas emits in log records.
func parseMongoDate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty date")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, err
	}
	return float64(t.Unix()), nil
}

type simpleCursor struct {
	LastTimeEpoch float64 `json:"last_time_epoch"`
}
