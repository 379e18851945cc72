package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/runtime"
	"github.com/sumologic/mongodbatlas-collector/sink"
)

// RunPaginated pages through a PaginatedAdapter's current window until a
// page comes back empty, the sink rejects a batch, or the deadline is
// exceeded, mirroring PaginatedFetchMixin.fetch:
//   - page N>1 empty: the window is exhausted, cursor advances past it.
//   - page 1 empty: a genuinely empty window, deferred to
//     CheckMoveFetchWindow rather than treated as exhaustion.
//   - a sink failure checkpoints the current page/window rather than
//     losing progress, so the next invocation resumes from the same page.
//   - running out of time checkpoints the same way, so a bounded
//     (serverless) invocation makes monotonic progress across runs.
func RunPaginated(ctx context.Context, client *atlasclient.Client, snk sink.Sink, a PaginatedAdapter, deadline *runtime.Deadline, log *logrus.Logger) error {
	cursor, err := a.GetState(ctx)
	if err != nil {
		return fmt.Errorf("stream: loading state for %s: %w", a.Key(), err)
	}

	count := 0
	for {
		path, params, err := a.BuildFetchParams(ctx, &cursor)
		if err != nil {
			return fmt.Errorf("stream: building fetch params for %s: %w", a.Key(), err)
		}

		body, err := client.GetBytes(ctx, path, params)
		if err != nil {
			log.WithFields(logrus.Fields{"key": a.Key(), "page": cursor.PageNum, "err": err}).Error("fetch failed")
			return a.SaveState(ctx, cursor)
		}

		var page ResultPage
		if err := json.Unmarshal(body, &page); err != nil {
			log.WithFields(logrus.Fields{"key": a.Key(), "page": cursor.PageNum, "err": err}).Error("decoding page failed")
			return a.SaveState(ctx, cursor)
		}

		if len(page.Results) == 0 {
			if cursor.PageNum > 1 {
				log.WithFields(logrus.Fields{"key": a.Key(), "page": cursor.PageNum}).Debug("window exhausted, advancing start time")
				return a.SaveState(ctx, WindowedCursor{PageNum: 0, LastTimeEpoch: cursor.LastTimeEpoch})
			}
			log.WithFields(logrus.Fields{"key": a.Key()}).Info("no results in window")
			if move, next := a.CheckMoveFetchWindow(cursor); move {
				return a.SaveState(ctx, WindowedCursor{PageNum: 0, LastTimeEpoch: next})
			}
			return nil
		}

		payload, lastTimeEpoch, err := a.TransformData(body)
		if err != nil {
			return fmt.Errorf("stream: transforming %s: %w", a.Key(), err)
		}

		ok, err := snk.Send(payload)
		if err != nil {
			log.WithFields(logrus.Fields{"key": a.Key(), "page": cursor.PageNum, "err": err}).Error("sink failed, checkpointing")
			if saveErr := a.SaveState(ctx, cursor); saveErr != nil {
				return fmt.Errorf("stream: saving state for %s: %w", a.Key(), saveErr)
			}
			return fmt.Errorf("stream: sending %s: %w", a.Key(), err)
		}
		if !ok {
			log.WithFields(logrus.Fields{"key": a.Key(), "page": cursor.PageNum}).Error("sink rejected batch, checkpointing")
			return a.SaveState(ctx, cursor)
		}

		count++
		cursor.PageNum++
		cursor.LastTimeEpoch = lastTimeEpoch

		if count < 4 || count%5 == 0 {
			log.WithFields(logrus.Fields{"key": a.Key(), "page": cursor.PageNum, "sent": len(payload)}).Info("sent page")
		}

		if deadline != nil && deadline.Exceeded() {
			log.WithFields(logrus.Fields{"key": a.Key(), "page": cursor.PageNum}).Info("deadline reached, checkpointing")
			return a.SaveState(ctx, cursor)
		}
	}
}
