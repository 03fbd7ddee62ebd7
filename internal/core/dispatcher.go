package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RemoteCommands is the command side of the backend client.
type RemoteCommands interface {
	TriggerScan(ctx context.Context, rootPath string) error
	TriggerBatchSend(ctx context.Context) error
	TriggerSelectedSend(ctx context.Context, ids []int64) error
	SetAutoWatch(ctx context.Context, enabled bool) error
	UploadContactsFile(ctx context.Context, filename string, content io.Reader) error
	SaveConfig(ctx context.Context, update ConfigUpdate) error
	FetchEgressIP(ctx context.Context) (string, error)
}

// Refresher triggers an immediate out-of-cycle refresh.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ActionRecord is one audit entry for a dispatched operator intent.
type ActionRecord struct {
	ID        string
	Action    string
	Detail    string
	OK        bool
	Message   string
	CreatedAt time.Time
}

// ActionRecorder persists audit entries. May be nil on the dispatcher.
type ActionRecorder interface {
	RecordAction(ctx context.Context, rec ActionRecord) error
}

var errTogglePending = errors.New("自动监控切换进行中")

// Dispatcher translates operator intents into backend calls. Every intent
// follows one pattern: invoke the command, on success trigger an immediate
// refresh and publish a success message, on failure leave state untouched
// except for the published failure message.
type Dispatcher struct {
	remote    RemoteCommands
	state     *State
	selection *Selection
	refresher Refresher
	actions   ActionRecorder
	logger    *slog.Logger

	watchMu      sync.Mutex
	watchPending bool
}

func NewDispatcher(remote RemoteCommands, state *State, selection *Selection, refresher Refresher, actions ActionRecorder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		remote:    remote,
		state:     state,
		selection: selection,
		refresher: refresher,
		actions:   actions,
		logger:    logger,
	}
}

// Scan forwards the edited root path verbatim; path validation is the
// backend's responsibility.
func (d *Dispatcher) Scan(ctx context.Context, rootPath string) error {
	err := d.remote.TriggerScan(ctx, rootPath)
	return d.finish(ctx, "scan", rootPath, "扫描完成", err)
}

// SendBatch asks the backend to queue all eligible pending tasks.
func (d *Dispatcher) SendBatch(ctx context.Context) error {
	err := d.remote.TriggerBatchSend(ctx)
	return d.finish(ctx, "send_batch", "", "批量发送已开始", err)
}

// SendSelected sends the current selection and clears it on success. This is
// the only non-user mutation of the selection set.
func (d *Dispatcher) SendSelected(ctx context.Context) error {
	ids := d.selection.IDs()
	if len(ids) == 0 {
		err := errors.New("未勾选任何任务")
		d.state.SetMessage(err.Error())
		return err
	}
	err := d.remote.TriggerSelectedSend(ctx, ids)
	if err == nil {
		d.selection.Clear()
	}
	return d.finish(ctx, "send_selected", fmt.Sprintf("%d tasks", len(ids)), "已开始发送勾选项", err)
}

// ToggleAutoWatch commits the backend call first and flips the displayed
// state only on success. A toggle issued while one is still in flight is
// rejected without reaching the backend.
func (d *Dispatcher) ToggleAutoWatch(ctx context.Context) error {
	d.watchMu.Lock()
	if d.watchPending {
		d.watchMu.Unlock()
		d.state.SetMessage(errTogglePending.Error())
		return errTogglePending
	}
	d.watchPending = true
	d.watchMu.Unlock()
	defer func() {
		d.watchMu.Lock()
		d.watchPending = false
		d.watchMu.Unlock()
	}()

	next := !d.state.AutoWatch()
	err := d.remote.SetAutoWatch(ctx, next)
	if err == nil {
		d.state.SetAutoWatch(next)
	}
	msg := "自动监控已关闭"
	if next {
		msg = "自动监控已开启"
	}
	return d.finish(ctx, "auto_watch", fmt.Sprintf("enabled=%t", next), msg, err)
}

// UploadContacts forwards exactly one contacts file as an opaque payload.
func (d *Dispatcher) UploadContacts(ctx context.Context, filename string, content io.Reader) error {
	err := d.remote.UploadContactsFile(ctx, filename, content)
	return d.finish(ctx, "upload_contacts", filename, "通讯录已更新", err)
}

// SaveConfig submits only the fields the operator actually edited.
func (d *Dispatcher) SaveConfig(ctx context.Context, update ConfigUpdate) error {
	err := d.remote.SaveConfig(ctx, update)
	return d.finish(ctx, "save_config", "", "配置已保存", err)
}

// CheckEgressIP is a pure read; it updates the display value and triggers no
// refresh. A failure publishes the fixed sentinel, distinct from the
// never-checked dash.
func (d *Dispatcher) CheckEgressIP(ctx context.Context) error {
	ip, err := d.remote.FetchEgressIP(ctx)
	if err != nil {
		d.state.SetEgressIPFailed()
		d.state.SetMessage(err.Error())
		d.record(ctx, "check_ip", "", false, err.Error())
		return err
	}
	d.state.SetEgressIP(ip)
	d.record(ctx, "check_ip", "", true, ip)
	return nil
}

// finish applies the shared tail of every intent: publish exactly one
// message, refresh on success, append the audit record.
func (d *Dispatcher) finish(ctx context.Context, action, detail, successMsg string, err error) error {
	if err != nil {
		d.state.SetMessage(err.Error())
		d.record(ctx, action, detail, false, err.Error())
		return err
	}
	if refreshErr := d.refresher.Refresh(ctx); refreshErr != nil {
		// Explicitly triggered refresh, so the failure is operator-visible.
		d.state.SetMessage(refreshErr.Error())
	} else {
		d.state.SetMessage(successMsg)
	}
	d.record(ctx, action, detail, true, successMsg)
	return nil
}

func (d *Dispatcher) record(ctx context.Context, action, detail string, ok bool, message string) {
	if d.actions == nil {
		return
	}
	rec := ActionRecord{
		ID:        uuid.NewString(),
		Action:    action,
		Detail:    detail,
		OK:        ok,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.actions.RecordAction(ctx, rec); err != nil {
		d.logger.Warn("record action", "action", action, "err", err)
	}
}
