package common

import (
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel is one of the supported logging verbosity levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// LoggerConfig configures a logrus.Logger built by NewLogger.
type LoggerConfig struct {
	Level      LogLevel
	Format     string // "json" or "text"
	Service    string
	Version    string
	AddCaller  bool
	TimeFormat string
}

// DefaultLoggerConfig returns sane defaults for local/interactive runs.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      LogLevelInfo,
		Format:     "text",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger builds a logrus.Logger from config, tagging every entry with
// service/version fields when set and routing output through OutputSplitter.
func NewLogger(config LoggerConfig) *logrus.Logger {
	logger := logrus.New()

	switch config.Level {
	case LogLevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LogLevelError:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelFatal:
		logger.SetLevel(logrus.FatalLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: config.TimeFormat})
	} else {
		format := config.TimeFormat
		if format == "" {
			format = time.RFC3339
		}
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: format})
	}

	logger.SetReportCaller(config.AddCaller)
	logger.SetOutput(&OutputSplitter{})

	if config.Service != "" || config.Version != "" {
		logger.AddHook(&staticFieldsHook{fields: logrus.Fields{
			"service": config.Service,
			"version": config.Version,
		}})
	}

	return logger
}

// staticFieldsHook stamps fixed fields onto every entry emitted by the
// logger it's attached to.
type staticFieldsHook struct {
	fields logrus.Fields
}

func (h *staticFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *staticFieldsHook) Fire(e *logrus.Entry) error {
	for k, v := range h.fields {
		if _, exists := e.Data[k]; !exists {
			e.Data[k] = v
		}
	}
	return nil
}
