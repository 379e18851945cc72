// Package common provides logging, configuration and small shared helpers
// used across the collector's packages.
//
// Logging is built on logrus. The global Logger routes error-level lines to
// stderr and everything else to stdout, which keeps container log collectors
// (that often treat the two streams differently) happy without any extra
// wiring from callers.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter is an io.Writer that sends formatted log lines containing
// "level=error" to stderr and everything else to stdout.
type OutputSplitter struct{}

func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide logrus instance. Callers typically attach
// fields with Logger.WithFields(...) rather than using it bare.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
	Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
