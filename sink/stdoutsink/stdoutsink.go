// Package stdoutsink implements sink.Sink by printing each batch to
// stdout, grounded on STDOUTHandler in the Python reference. Useful for
// local runs and debugging.
package stdoutsink

import (
	"fmt"
	"io"
	"os"

	"github.com/sumologic/mongodbatlas-collector/sink"
)

// Sink writes batches to an io.Writer, defaulting to os.Stdout.
type Sink struct {
	w io.Writer
}

// New builds a Sink writing to os.Stdout.
func New() *Sink {
	return &Sink{w: os.Stdout}
}

// NewWriter builds a Sink writing to an arbitrary writer, used in tests.
func NewWriter(w io.Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) Send(data []any) (bool, error) {
	if len(data) == 0 {
		return true, nil
	}
	body, err := sink.Body(data)
	if err != nil {
		return false, err
	}
	if _, err := fmt.Fprint(s.w, string(body)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sink) Close() error {
	return nil
}
