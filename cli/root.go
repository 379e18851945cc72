// Package cli provides the collector's command-line entry point: one
// cobra command that loads configuration, wires up the configured
// backends, and runs a single collection pass.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/common"
	"github.com/sumologic/mongodbatlas-collector/config"
	"github.com/sumologic/mongodbatlas-collector/kvstore"
	"github.com/sumologic/mongodbatlas-collector/kvstore/bolt"
	"github.com/sumologic/mongodbatlas-collector/kvstore/couchdb"
	kvredis "github.com/sumologic/mongodbatlas-collector/kvstore/redis"
	"github.com/sumologic/mongodbatlas-collector/orchestrator"
	"github.com/sumologic/mongodbatlas-collector/sink"
	"github.com/sumologic/mongodbatlas-collector/sink/filesink"
	"github.com/sumologic/mongodbatlas-collector/sink/httpsink"
	"github.com/sumologic/mongodbatlas-collector/sink/stdoutsink"
)

// cfgFile holds an explicit config file path supplied via --config or as
// the single positional argument. When empty, config.Load falls back to
// searching the current directory and $HOME for mongodbatlas.yaml.
var cfgFile string

// RootCmd is the collector's single command: load configuration, run one
// collection pass against the configured Atlas project, exit.
var RootCmd = &cobra.Command{
	Use:   "mongodbatlas-collector [config file]",
	Short: "collect MongoDB Atlas logs, events, alerts and metrics into SumoLogic",
	Long: `mongodbatlas-collector polls the MongoDB Atlas Admin API for
database/audit logs, project and organization events, alerts, and process/
disk/database metrics, and forwards them to SumoLogic HTTP sources.

One invocation performs one collection pass: it loads configuration,
acquires a single-instance lock, discovers the project's current
processes/disks/databases, and fans the enabled streams out across a
bounded worker pool before exiting. Run it on a schedule (cron, a
Lambda/Cloud Function trigger) rather than as a long-lived daemon.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCollect,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to mongodbatlas.yaml (default: search ./ and $HOME)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("cli: loading config: %w", err)
	}

	log := common.NewLogger(common.LoggerConfig{
		Level:   common.LogLevel(cfg.Logging.Level),
		Format:  cfg.Logging.Format,
		Service: "mongodbatlas-collector",
	})

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("cli: opening kv store: %w", err)
	}
	defer store.Close()

	pool := atlasclient.NewSessionPool(
		cfg.MongoDBAtlas.BaseURL,
		cfg.MongoDBAtlas.PublicAPIKey,
		cfg.MongoDBAtlas.PrivateAPIKey,
		atlasclient.RetryConfig{
			MaxRetry:      cfg.Collection.MaxRetry,
			BackoffFactor: cfg.Collection.BackoffFactor,
			Timeout:       cfg.Collection.Timeout,
		},
	)
	defer pool.CloseAll()

	newSink := sinkFactory(cfg)

	if err := orchestrator.Run(cmd.Context(), cfg, store, pool, newSink, log); err != nil {
		return fmt.Errorf("cli: collection run failed: %w", err)
	}
	return nil
}

// openStore builds the configured kvstore.Store backend. KVStoreURL is the
// bolt file path, the CouchDB URL, or the Redis URL depending on backend.
func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	switch cfg.Collection.KVStoreBackend {
	case "couchdb":
		return couchdb.Open(ctx, cfg.Collection.KVStoreURL, cfg.Collection.DBName)
	case "redis":
		return kvredis.Open(ctx, kvredis.Config{URL: cfg.Collection.KVStoreURL})
	case "bolt", "":
		path := cfg.Collection.KVStoreURL
		if path == "" {
			path = "mongodbatlascollector.db"
		}
		return bolt.Open(path)
	default:
		return nil, fmt.Errorf("cli: unknown KVSTORE_BACKEND %q", cfg.Collection.KVStoreBackend)
	}
}

// sinkFactory returns a builder for the configured sink.Sink backend,
// routing logs/events/alerts to the LOGS endpoint and metrics to the
// METRICS endpoint for the http backend, and to their respective file
// paths for the file backend.
func sinkFactory(cfg *config.Config) orchestrator.SinkFactory {
	return func(kind string) (sink.Sink, error) {
		switch cfg.SumoLogic.Backend {
		case "stdout":
			return stdoutsink.New(), nil
		case "file":
			path := cfg.SumoLogic.LogsPath
			if kind == "metrics" {
				path = cfg.SumoLogic.MetricsPath
			}
			return filesink.New(path)
		case "http", "":
			endpoint := cfg.SumoLogic.LogsURL
			if kind == "metrics" {
				endpoint = cfg.SumoLogic.MetricsURL
			}
			return httpsink.New(httpsink.Config{
				URL:             endpoint,
				Timeout:         cfg.Collection.Timeout,
				MaxRetry:        cfg.Collection.MaxRetry,
				BackoffFactor:   cfg.Collection.BackoffFactor,
				Compressed:      cfg.SumoLogic.Compressed,
				MaxPayloadBytes: cfg.Collection.MaxPayloadBytes,
			}), nil
		default:
			return nil, fmt.Errorf("cli: unknown SumoLogic.BACKEND %q", cfg.SumoLogic.Backend)
		}
	}
}
