package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
)

type channelNotifier struct {
	sent chan [2]string
}

func (n *channelNotifier) Send(ctx context.Context, title, body string) error {
	n.sent <- [2]string{title, body}
	return nil
}

func newWatcherUnderTest() (*CountsWatcher, *channelNotifier) {
	notifier := &channelNotifier{sent: make(chan [2]string, 4)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCountsWatcher(notifier, logger), notifier
}

func waitForNotification(t *testing.T, n *channelNotifier) [2]string {
	t.Helper()
	select {
	case msg := <-n.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a notification")
		return [2]string{}
	}
}

func assertNoNotification(t *testing.T, n *channelNotifier) {
	t.Helper()
	select {
	case msg := <-n.sent:
		t.Fatalf("unexpected notification: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherNotifiesOnNewFailures(t *testing.T) {
	watcher, notifier := newWatcherUnderTest()
	prev := core.StatusCounts{Total: 5, Sent: 2, Failed: 1}
	curr := core.StatusCounts{Total: 5, Sent: 2, Failed: 3}

	watcher.ObserveCounts(prev, curr, true)

	msg := waitForNotification(t, notifier)
	if msg[0] != "发送失败" {
		t.Fatalf("unexpected title: %q", msg[0])
	}
}

func TestWatcherNotifiesWhenInFlightDrains(t *testing.T) {
	watcher, notifier := newWatcherUnderTest()
	prev := core.StatusCounts{Total: 5, Sending: 2, Sent: 3}
	curr := core.StatusCounts{Total: 5, Sent: 5}

	watcher.ObserveCounts(prev, curr, true)

	msg := waitForNotification(t, notifier)
	if msg[0] != "发送完成" {
		t.Fatalf("unexpected title: %q", msg[0])
	}
}

func TestWatcherSkipsFirstObservation(t *testing.T) {
	watcher, notifier := newWatcherUnderTest()
	curr := core.StatusCounts{Total: 5, Failed: 3}

	// Without a previous sample there is no movement to report.
	watcher.ObserveCounts(core.StatusCounts{}, curr, false)

	assertNoNotification(t, notifier)
}

func TestWatcherIgnoresUnchangedCounts(t *testing.T) {
	watcher, notifier := newWatcherUnderTest()
	counts := core.StatusCounts{Total: 5, Pending: 1, Sent: 3, Failed: 1}

	watcher.ObserveCounts(counts, counts, true)

	assertNoNotification(t, notifier)
}
