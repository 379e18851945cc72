// Package sink defines the pluggable delivery contract adapters send
// fetched records through, grounded on BaseOutputHandler and its three
// concrete handlers (HTTP, stdout, file) in the Python reference
// implementation's sumoclient/outputhandlers.py.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Sink delivers a batch of records somewhere. Implementations must be safe
// to reuse across many Send calls but are not required to be safe for
// concurrent use by multiple goroutines at once; callers give each worker
// its own Sink.
type Sink interface {
	// Send delivers data, chunking internally as needed. It returns false
	// (with no error) when the destination rejected the batch in a way
	// the caller should treat as a checkpoint boundary rather than a
	// retryable failure.
	Send(data []any) (bool, error)
	Close() error
}

// MaxPayloadBytesize is the default chunk size target, matching the
// Python reference's MAX_PAYLOAD_BYTESIZE default.
const MaxPayloadBytesize = 500_000

// Body renders a batch of records as newline-delimited JSON, mirroring
// sumoclient.utils.get_body's default json-dump-per-line behavior.
func Body(data []any) ([]byte, error) {
	var buf bytes.Buffer
	for _, item := range data {
		line, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("sink: marshalling record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ChunkSize computes how many records belong in each batch, mirroring
// HTTPHandler.get_chunk_size: it divides the whole body's size by maxBytes
// to get a batch count, then gives every batch the same number of records.
// Record sizes are not looked at individually, so a batch of larger than
// average records can exceed maxBytes.
func ChunkSize(data []any, maxBytes int) (numBatches, chunkSize int, err error) {
	if maxBytes <= 0 {
		maxBytes = MaxPayloadBytesize
	}
	body, err := Body(data)
	if err != nil {
		return 0, 0, err
	}
	totalBytes := len(body)
	batchCount := int(math.Ceil(float64(totalBytes) / float64(maxBytes)))
	if batchCount < 1 {
		batchCount = 1
	}
	chunk := len(data) / batchCount
	if chunk == 0 {
		chunk = 1
	}
	return batchCount, chunk, nil
}

// Chunk splits data into slices of at most size elements, in order.
func Chunk(data []any, size int) [][]any {
	if size <= 0 {
		size = 1
	}
	var batches [][]any
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		batches = append(batches, data[i:end])
	}
	return batches
}
