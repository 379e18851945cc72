// Package httpsink implements sink.Sink over HTTP POST, grounded on
// HTTPHandler.send in the Python reference's sumoclient/outputhandlers.py:
// chunked delivery, optional zlib compression, and a collector
// identifying User-Agent-style header.
package httpsink

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sumologic/mongodbatlas-collector/sink"
)

// Config configures the HTTP sink.
type Config struct {
	URL             string
	Timeout         time.Duration
	MaxRetry        int
	BackoffFactor   float64
	Compressed      bool
	MaxPayloadBytes int
	ExtraHeaders    map[string]string
}

// Sink posts batches to a single HTTP endpoint (e.g. a Sumo Logic HTTP
// source), compressing and chunking as configured.
type Sink struct {
	cfg    Config
	client *http.Client
}

// New builds an httpsink.Sink.
func New(cfg Config) *Sink {
	if cfg.MaxPayloadBytes == 0 {
		cfg.MaxPayloadBytes = sink.MaxPayloadBytesize
	}
	return &Sink{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Send chunks data to stay under MaxPayloadBytes per request and posts each
// chunk in turn, stopping at the first failure (at-least-once semantics:
// the caller is responsible for not advancing its cursor past an
// unacknowledged chunk).
func (s *Sink) Send(data []any) (bool, error) {
	if len(data) == 0 {
		return true, nil
	}

	_, chunkSize, err := sink.ChunkSize(data, s.cfg.MaxPayloadBytes)
	if err != nil {
		return false, err
	}

	for _, batch := range sink.Chunk(data, chunkSize) {
		ok, err := s.sendBatch(batch)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *Sink) sendBatch(batch []any) (bool, error) {
	body, err := sink.Body(batch)
	if err != nil {
		return false, err
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "application/json",
		"X-Sumo-Client": "sumologic-mongodbatlas-collector",
	}
	for k, v := range s.cfg.ExtraHeaders {
		headers[k] = v
	}

	if s.cfg.Compressed {
		// Content-Encoding: deflate is ambiguous between raw DEFLATE
		// (RFC 1951) and zlib-wrapped DEFLATE (RFC 1950). The reference
		// implementation sends zlib.compress output under that header, so
		// this sink must match that framing byte-for-byte or a real Sumo
		// Logic HTTP source will fail to decompress it.
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
		if err != nil {
			return false, fmt.Errorf("httpsink: creating compressor: %w", err)
		}
		if _, err := w.Write(body); err != nil {
			return false, fmt.Errorf("httpsink: compressing payload: %w", err)
		}
		if err := w.Close(); err != nil {
			return false, fmt.Errorf("httpsink: flushing compressor: %w", err)
		}
		body = buf.Bytes()
		headers["Content-Encoding"] = "deflate"
	}

	return s.postWithRetry(body, headers)
}

func (s *Sink) postWithRetry(body []byte, headers map[string]string) (bool, error) {
	attempts := s.cfg.MaxRetry + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
		if err != nil {
			cancel()
			return false, fmt.Errorf("httpsink: building request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		cancel()
		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return true, nil
			}
			if !retryableStatus(resp.StatusCode) {
				return false, fmt.Errorf("httpsink: status %d", resp.StatusCode)
			}
			lastErr = fmt.Errorf("httpsink: retryable status %d", resp.StatusCode)
		}

		if attempt < attempts-1 {
			time.Sleep(time.Duration(s.cfg.BackoffFactor*float64(int64(1)<<uint(attempt))) * time.Second)
		}
	}
	return false, fmt.Errorf("httpsink: request failed after %d attempts: %w", attempts, lastErr)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// Close is a no-op; the underlying http.Client needs no explicit shutdown.
func (s *Sink) Close() error {
	return nil
}
