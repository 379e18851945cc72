package stream

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/sink"
)

// acceptHeaderAdapter is implemented by a SingleFetchAdapter that needs a
// non-default Accept header on its fetch request (adapters.Log requests
// "application/gzip" instead of the default "application/json").
type acceptHeaderAdapter interface {
	AcceptHeader() string
}

// RunSingleFetch executes one fetch-transform-send-commit cycle for a
// SingleFetchAdapter, mirroring FetchMixin.fetch: the cursor is only
// advanced after the sink has accepted the batch (commit-after-send), and
// an empty result is not itself an error — CheckMoveFetchWindow decides
// whether the empty window still warrants a cursor advance.
func RunSingleFetch(ctx context.Context, client *atlasclient.Client, snk sink.Sink, a SingleFetchAdapter, log *logrus.Logger) error {
	path, params, err := a.BuildFetchParams(ctx)
	if err != nil {
		return fmt.Errorf("stream: building fetch params for %s: %w", a.Key(), err)
	}

	log.WithFields(logrus.Fields{"key": a.Key(), "path": path}).Info("fetching")

	var body []byte
	if accepting, ok := a.(acceptHeaderAdapter); ok {
		body, err = client.GetBytesAccept(ctx, path, params, accepting.AcceptHeader())
	} else {
		body, err = client.GetBytes(ctx, path, params)
	}
	if err != nil {
		log.WithFields(logrus.Fields{"key": a.Key(), "err": err}).Error("fetch failed")
		return fmt.Errorf("stream: fetching %s: %w", a.Key(), err)
	}

	if len(body) == 0 {
		log.WithFields(logrus.Fields{"key": a.Key()}).Info("no results in window")
		if move, next := a.CheckMoveFetchWindow(params); move {
			return a.SaveState(ctx, next)
		}
		return nil
	}

	payload, next, err := a.TransformData(body)
	if err != nil {
		return fmt.Errorf("stream: transforming %s: %w", a.Key(), err)
	}
	if len(payload) == 0 {
		if move, moveNext := a.CheckMoveFetchWindow(params); move {
			return a.SaveState(ctx, moveNext)
		}
		return nil
	}

	ok, err := snk.Send(payload)
	if err != nil {
		return fmt.Errorf("stream: sending %s: %w", a.Key(), err)
	}
	if !ok {
		log.WithFields(logrus.Fields{"key": a.Key()}).Error("sink rejected batch, cursor not advanced")
		return nil
	}

	if err := a.SaveState(ctx, next); err != nil {
		return fmt.Errorf("stream: saving state for %s: %w", a.Key(), err)
	}
	log.WithFields(logrus.Fields{"key": a.Key(), "sent": len(payload)}).Info("completed")
	return nil
}
