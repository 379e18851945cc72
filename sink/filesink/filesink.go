// Package filesink implements sink.Sink by appending each batch to a local
// file, grounded on FileHandler in the Python reference implementation.
package filesink

import (
	"fmt"
	"os"

	"github.com/sumologic/mongodbatlas-collector/sink"
)

// Sink appends batches to a single file, opened once and kept open for the
// lifetime of the adapter task.
type Sink struct {
	f *os.File
}

// New opens (creating if necessary) the file at path for appending.
func New(path string) (*Sink, error) {
	if path == "" {
		path = "alerts.log"
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filesink: opening %s: %w", path, err)
	}
	return &Sink{f: f}, nil
}

func (s *Sink) Send(data []any) (bool, error) {
	if len(data) == 0 {
		return true, nil
	}
	body, err := sink.Body(data)
	if err != nil {
		return false, err
	}
	if _, err := s.f.Write(body); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sink) Close() error {
	return s.f.Close()
}
