package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
)

// CountsWatcher turns counter movements observed by the synchronizer into
// push notifications: new delivery failures, and the in-flight pool draining
// to zero after sends completed. Implements core.CountsObserver.
type CountsWatcher struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewCountsWatcher(notifier Notifier, logger *slog.Logger) *CountsWatcher {
	if notifier == nil {
		notifier = &NoOpNotifier{}
	}
	return &CountsWatcher{notifier: notifier, logger: logger}
}

func (w *CountsWatcher) ObserveCounts(prev, curr core.StatusCounts, hadPrev bool) {
	if !hadPrev {
		return
	}
	var title, body string
	switch {
	case curr.Failed > prev.Failed:
		title = "发送失败"
		body = fmt.Sprintf("新增 %d 个失败任务，累计失败 %d", curr.Failed-prev.Failed, curr.Failed)
	case inFlight(prev) > 0 && inFlight(curr) == 0 && curr.Sent > prev.Sent:
		title = "发送完成"
		body = fmt.Sprintf("成功 %d，失败 %d，跳过 %d", curr.Sent, curr.Failed, curr.Skipped)
	default:
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.notifier.Send(ctx, title, body); err != nil {
			w.logger.Warn("send notification", "title", title, "err", err)
		}
	}()
}

func inFlight(c core.StatusCounts) int {
	return c.Pending + c.Queued + c.Sending
}
