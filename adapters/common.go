// Package adapters implements the seven concrete MongoDB Atlas streams
// (logs, process/disk/database metrics, project/org events, alerts) on top
// of the stream package's two fetch-and-send drivers, grounded file-for-file
// on the corresponding classes in the Python reference implementation's
// api.py.
package adapters

import (
	"strings"
	"time"
)

// Publication delays model how far behind "now" Atlas's own aggregation
// pipeline lags before a window can be considered final, per endpoint kind.
// Atlas's docs don't commit to these numbers; they are carried over as
// documented assumptions from the Python reference (see api.py's
// check_move_fetch_window comments on each adapter).
const (
	LogPublicationDelay    = 5 * time.Minute
	EventsPublicationDelay = 5 * time.Minute
	MetricPublicationDelay = 20 * time.Minute
)

// ClusterMapping maps a raw cluster name (as it appears in a hostname or
// processId) to the user-facing alias Discovery resolved it to.
type ClusterMapping map[string]string

// ClusterName strips the "-shard..." suffix Atlas appends to replica set
// member names, leaving the bare cluster name, grounded on
// MongoDBAPI._get_cluster_name.
func ClusterName(fullName string) string {
	if idx := strings.Index(fullName, "-shard"); idx >= 0 {
		return fullName[:idx]
	}
	return fullName
}

// ReplaceClusterName substitutes fullName's cluster name with its alias
// from mapping, leaving fullName unchanged if no alias is known, grounded
// on MongoDBAPI._replace_cluster_name.
func ReplaceClusterName(fullName string, mapping ClusterMapping) string {
	clusterName := ClusterName(fullName)
	alias, ok := mapping[clusterName]
	if !ok {
		return fullName
	}
	return strings.Replace(fullName, clusterName, alias, 1)
}

// DefaultStartTimeEpoch is the cursor value a stream starts from on its
// very first invocation: backfillDays before now, in epoch seconds.
func DefaultStartTimeEpoch(backfillDays int, now time.Time) float64 {
	return float64(now.AddDate(0, 0, -backfillDays).Unix())
}
