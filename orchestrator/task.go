// Package orchestrator acquires the single-instance lock, runs Discovery,
// builds one stream.Adapter task per enabled stream/metric/host
// combination, and drains them through a bounded worker pool, grounded on
// MongoDBAtlasCollector.build_task_params and the top-level run loop
// described for BaseCollector in the Python reference implementation, and
// on the teacher's worker.Pool/worker.Worker shape (queue-of-jobs)
// generalized here to a queue-of-adapters.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/adapters"
	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/config"
	"github.com/sumologic/mongodbatlas-collector/kvstore"
	"github.com/sumologic/mongodbatlas-collector/runtime"
	"github.com/sumologic/mongodbatlas-collector/sink"
	"github.com/sumologic/mongodbatlas-collector/stream"
)

var (
	dbLogFiles    = []string{"mongodb.gz", "mongos.gz"}
	auditLogFiles = []string{"mongodb-audit-log.gz", "mongos-audit-log.gz"}
)

func hasLogType(logTypes []string, want string) bool {
	for _, t := range logTypes {
		if t == want {
			return true
		}
	}
	return false
}

// Task wires one adapter instance to the driver it runs under. Run is
// called from exactly one worker goroutine for the lifetime of one
// invocation. Kind selects which of the two SumoLogic endpoints (logs or
// metrics) the task's data belongs on.
type Task struct {
	Key  string
	Kind string // "logs" or "metrics"
	Run  func(ctx context.Context, client *atlasclient.Client, snk sink.Sink, deadline *runtime.Deadline, log *logrus.Logger) error
}

const (
	kindLogs    = "logs"
	kindMetrics = "metrics"
)

// DiscoveryResult is the subset of Discovery's output BuildTasks needs.
type DiscoveryResult struct {
	ProcessIDs     []string
	Hostnames      []string
	ClusterMapping adapters.ClusterMapping
	DiskNames      []string
	DatabaseNames  []string
}

// BuildTasks enumerates every enabled log file x hostname, every enabled
// event/alert stream, and every enabled metric kind x process (x disk or
// database), mirroring build_task_params. It returns an error if zero
// tasks were produced, since that indicates a misconfiguration rather
// than a legitimately empty run.
func BuildTasks(cfg *config.Config, store kvstore.Store, log *logrus.Logger, disc DiscoveryResult) ([]Task, error) {
	var tasks []Task
	windowCfg := adapters.Config{Window: cfg.Collection.WindowConfig(), BackfillDays: cfg.Collection.BackfillDays}

	// Log's startDate/endDate query parameters only accept whole seconds,
	// so its delta must be a whole second too: a fractional delta gets
	// truncated straight back to lastTimeEpoch, causing the last record of
	// every fetch to be re-requested and re-delivered on the next one.
	logWindowCfg := windowCfg
	logWindowCfg.Window.Delta = 1

	var filenames []string
	if hasLogType(cfg.MongoDBAtlas.LogTypes, "DATABASE") {
		filenames = append(filenames, dbLogFiles...)
	}
	if hasLogType(cfg.MongoDBAtlas.LogTypes, "AUDIT") {
		filenames = append(filenames, auditLogFiles...)
	}
	for _, filename := range filenames {
		for _, hostname := range disc.Hostnames {
			a := &adapters.Log{
				Store:          store,
				Log:            log,
				ProjectID:      cfg.MongoDBAtlas.ProjectID,
				Hostname:       hostname,
				Filename:       filename,
				ClusterMapping: disc.ClusterMapping,
				WindowConfig:   logWindowCfg,
			}
			tasks = append(tasks, Task{Key: a.Key(), Kind: kindLogs, Run: func(ctx context.Context, client *atlasclient.Client, snk sink.Sink, _ *runtime.Deadline, log *logrus.Logger) error {
				return stream.RunSingleFetch(ctx, client, snk, a, log)
			}})
		}
	}

	if hasLogType(cfg.MongoDBAtlas.LogTypes, "EVENTS_PROJECT") {
		a := &adapters.ProjectEvents{
			Store: store, Log: log, ProjectID: cfg.MongoDBAtlas.ProjectID,
			WindowConfig: windowCfg, PaginationLimit: cfg.Collection.PaginationLimit,
		}
		tasks = append(tasks, Task{Key: a.Key(), Kind: kindLogs, Run: func(ctx context.Context, client *atlasclient.Client, snk sink.Sink, deadline *runtime.Deadline, log *logrus.Logger) error {
			return stream.RunPaginated(ctx, client, snk, a, deadline, log)
		}})
	}

	if hasLogType(cfg.MongoDBAtlas.LogTypes, "EVENTS_ORG") {
		a := &adapters.OrgEvents{
			Store: store, Log: log, OrgID: cfg.MongoDBAtlas.OrgID,
			WindowConfig: windowCfg, PaginationLimit: cfg.Collection.PaginationLimit,
		}
		tasks = append(tasks, Task{Key: a.Key(), Kind: kindLogs, Run: func(ctx context.Context, client *atlasclient.Client, snk sink.Sink, deadline *runtime.Deadline, log *logrus.Logger) error {
			return stream.RunPaginated(ctx, client, snk, a, deadline, log)
		}})
	}

	if hasLogType(cfg.MongoDBAtlas.LogTypes, "ALERTS") {
		a := &adapters.Alerts{
			Store: store, Log: log, ProjectID: cfg.MongoDBAtlas.ProjectID,
			PaginationLimit: cfg.Collection.PaginationLimit,
		}
		tasks = append(tasks, Task{Key: a.Key(), Kind: kindLogs, Run: func(ctx context.Context, client *atlasclient.Client, snk sink.Sink, deadline *runtime.Deadline, log *logrus.Logger) error {
			a.Client = client
			return a.Fetch(ctx, snk, deadline)
		}})
	}

	if len(cfg.MongoDBAtlas.MetricTypes.ProcessMetrics) > 0 {
		for _, processID := range disc.ProcessIDs {
			a := &adapters.ProcessMetrics{
				Store: store, Log: log, ProjectID: cfg.MongoDBAtlas.ProjectID, ProcessID: processID,
				MetricNames: cfg.MongoDBAtlas.MetricTypes.ProcessMetrics, ClusterMapping: disc.ClusterMapping,
				WindowConfig: windowCfg, PaginationLimit: cfg.Collection.PaginationLimit,
			}
			tasks = append(tasks, Task{Key: a.Key(), Kind: kindMetrics, Run: func(ctx context.Context, client *atlasclient.Client, snk sink.Sink, _ *runtime.Deadline, log *logrus.Logger) error {
				return stream.RunSingleFetch(ctx, client, snk, a, log)
			}})
		}
	}

	if len(cfg.MongoDBAtlas.MetricTypes.DiskMetrics) > 0 {
		for _, processID := range disc.ProcessIDs {
			for _, diskName := range disc.DiskNames {
				a := &adapters.DiskMetrics{
					Store: store, Log: log, ProjectID: cfg.MongoDBAtlas.ProjectID, ProcessID: processID, DiskName: diskName,
					MetricNames: cfg.MongoDBAtlas.MetricTypes.DiskMetrics, ClusterMapping: disc.ClusterMapping,
					WindowConfig: windowCfg, PaginationLimit: cfg.Collection.PaginationLimit,
				}
				tasks = append(tasks, Task{Key: a.Key(), Kind: kindMetrics, Run: func(ctx context.Context, client *atlasclient.Client, snk sink.Sink, _ *runtime.Deadline, log *logrus.Logger) error {
					return stream.RunSingleFetch(ctx, client, snk, a, log)
				}})
			}
		}
	}

	if len(cfg.MongoDBAtlas.MetricTypes.DatabaseMetrics) > 0 {
		for _, processID := range disc.ProcessIDs {
			for _, databaseName := range disc.DatabaseNames {
				a := &adapters.DatabaseMetrics{
					Store: store, Log: log, ProjectID: cfg.MongoDBAtlas.ProjectID, ProcessID: processID, DatabaseName: databaseName,
					MetricNames: cfg.MongoDBAtlas.MetricTypes.DatabaseMetrics, ClusterMapping: disc.ClusterMapping,
					WindowConfig: windowCfg, PaginationLimit: cfg.Collection.PaginationLimit,
				}
				tasks = append(tasks, Task{Key: a.Key(), Kind: kindMetrics, Run: func(ctx context.Context, client *atlasclient.Client, snk sink.Sink, _ *runtime.Deadline, log *logrus.Logger) error {
					return stream.RunSingleFetch(ctx, client, snk, a, log)
				}})
			}
		}
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("orchestrator: no tasks generated, check MongoDBAtlas.LOG_TYPES/METRIC_TYPES configuration")
	}
	return tasks, nil
}
