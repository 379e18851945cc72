// Package orchestrator is the top-level run loop: acquire the
// single-instance lock, discover what the project looks like, build the
// task list, and drain it through a bounded worker pool, one Client per
// worker and a fresh Sink per task, grounded on the lock-then-fan-out run loop
// described for BaseCollector in the Python reference implementation and
// on the teacher's worker.Pool (queue-of-jobs) generalized here to a
// fixed-size, queue-of-adapters pool.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/config"
	"github.com/sumologic/mongodbatlas-collector/discovery"
	"github.com/sumologic/mongodbatlas-collector/kvstore"
	"github.com/sumologic/mongodbatlas-collector/runtime"
	"github.com/sumologic/mongodbatlas-collector/sink"
)

// singleInstanceLockKey guards against two invocations of the collector
// running against the same project at once, mirroring the source
// config's SINGLE_INSTANCE_KEY.
const singleInstanceLockKey = "single_instance_lock"

// SinkFactory builds a fresh sink.Sink for one task, keyed by whether
// the task is about to send log/event/alert data or metric data, since
// the two categories are delivered to different endpoints.
type SinkFactory func(kind string) (sink.Sink, error)

// Run acquires the single-instance lock, runs discovery, builds the task
// list, and drains it with cfg.Collection.NumWorkers goroutines, each
// owning its own Client (from pool) and building a Sink (from newSink)
// for each task it runs. It returns
// the first error encountered building the task list or acquiring the
// lock; per-task failures are logged and do not stop the run, matching
// the reference implementation's at-least-once, keep-going-on-one-failure
// behavior.
func Run(ctx context.Context, cfg *config.Config, store kvstore.Store, pool *atlasclient.SessionPool, newSink SinkFactory, log *logrus.Logger) error {
	runID := uuid.New().String()
	log.WithField("run_id", runID).Info("orchestrator: starting collection run")

	expiry := time.Duration(cfg.Collection.SingleInstanceLockExpiryMin) * time.Minute
	acquired, err := store.AcquireLock(ctx, singleInstanceLockKey)
	if err != nil {
		return fmt.Errorf("orchestrator: acquiring lock: %w", err)
	}
	if !acquired {
		if err := store.ReleaseLockIfExpired(ctx, singleInstanceLockKey, expiry); err != nil {
			log.WithError(err).Warn("orchestrator: lock held by another run and not yet expired")
		}
		log.Info("orchestrator: another instance is already running, exiting")
		return nil
	}
	defer func() {
		if err := store.ReleaseLock(ctx, singleInstanceLockKey); err != nil {
			log.WithError(err).Error("orchestrator: releasing single-instance lock")
		}
	}()

	disc := &discovery.Discovery{
		Client:          pool.Get("discovery"),
		Store:           store,
		Log:             log,
		ProjectID:       cfg.MongoDBAtlas.ProjectID,
		PaginationLimit: cfg.Collection.PaginationLimit,
		RefreshTTL:      time.Duration(cfg.Collection.DataRefreshTimeMillis) * time.Millisecond,
		ClusterFilters:  cfg.Collection.Clusters,
	}

	result, err := gatherDiscovery(ctx, cfg, disc)
	if err != nil {
		return fmt.Errorf("orchestrator: discovery: %w", err)
	}

	tasks, err := BuildTasks(cfg, store, log, result)
	if err != nil {
		return err
	}

	rand.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })

	deadline := runtime.NewDeadline(cfg.Collection.FunctionTimeout())
	numWorkers := cfg.Collection.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}

	taskCh := make(chan Task)
	go func() {
		defer close(taskCh)
		for _, t := range tasks {
			select {
			case taskCh <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		workerKey := fmt.Sprintf("worker-%d", w)
		go func() {
			defer wg.Done()
			runWorker(ctx, workerKey, pool, newSink, taskCh, deadline, log)
		}()
	}
	wg.Wait()

	return nil
}

// gatherDiscovery resolves every discovery lookup BuildTasks might need,
// skipping disk/database enumeration entirely when the corresponding
// metric kind is disabled, since neither is cheap.
func gatherDiscovery(ctx context.Context, cfg *config.Config, disc *discovery.Discovery) (DiscoveryResult, error) {
	processIDs, hostnames, err := disc.Processes(ctx)
	if err != nil {
		return DiscoveryResult{}, err
	}
	mapping, err := disc.ClusterMapping(ctx)
	if err != nil {
		return DiscoveryResult{}, err
	}

	result := DiscoveryResult{ProcessIDs: processIDs, Hostnames: hostnames, ClusterMapping: mapping}

	if len(cfg.MongoDBAtlas.MetricTypes.DiskMetrics) > 0 {
		diskNames, err := disc.DiskNames(ctx)
		if err != nil {
			return DiscoveryResult{}, err
		}
		result.DiskNames = diskNames
	}
	if len(cfg.MongoDBAtlas.MetricTypes.DatabaseMetrics) > 0 {
		databaseNames, err := disc.DatabaseNames(ctx)
		if err != nil {
			return DiscoveryResult{}, err
		}
		result.DatabaseNames = databaseNames
	}
	return result, nil
}

// runWorker drains taskCh until it is closed or ctx is cancelled, logging
// every task's outcome and continuing to the next one on failure.
func runWorker(ctx context.Context, workerKey string, pool *atlasclient.SessionPool, newSink SinkFactory, taskCh <-chan Task, deadline *runtime.Deadline, log *logrus.Logger) {
	client := pool.Get(workerKey)

	for {
		if deadline.Exceeded() {
			log.WithField("worker", workerKey).Warn("orchestrator: runtime deadline exceeded, worker stopping early")
			return
		}
		select {
		case task, ok := <-taskCh:
			if !ok {
				return
			}
			runTask(ctx, workerKey, client, newSink, task, deadline, log)
		case <-ctx.Done():
			return
		}
	}
}

func runTask(ctx context.Context, workerKey string, client *atlasclient.Client, newSink SinkFactory, task Task, deadline *runtime.Deadline, log *logrus.Logger) {
	snk, err := newSink(task.Kind)
	if err != nil {
		log.WithFields(logrus.Fields{"worker": workerKey, "task": task.Key, "err": err}).Error("orchestrator: building sink failed")
		return
	}
	defer snk.Close()

	start := time.Now()
	if err := task.Run(ctx, client, snk, deadline, log); err != nil {
		log.WithFields(logrus.Fields{"worker": workerKey, "task": task.Key, "err": err, "elapsed": time.Since(start)}).Error("orchestrator: task failed")
		return
	}
	log.WithFields(logrus.Fields{"worker": workerKey, "task": task.Key, "elapsed": time.Since(start)}).Info("orchestrator: task completed")
}
