package core

import (
	"sync"
)

// Egress IP display values. The dash is the never-checked placeholder; the
// failure sentinel is distinct from it and from any successful answer.
const (
	EgressIPUnchecked = "-"
	EgressIPFailed    = "获取失败"
)

// State is the single container for everything the presentation surfaces
// render: the latest snapshot, the one current operator message, the
// auto-watch flag and the egress IP display value. All mutation goes through
// the synchronizer and the dispatcher; handlers only read.
type State struct {
	mu sync.Mutex

	snapshot    Snapshot
	hasSnapshot bool

	message         string
	autoWatch       bool
	egressIP        string
	defaultRootPath string
}

func NewState(defaultRootPath string) *State {
	return &State{
		egressIP:        EgressIPUnchecked,
		defaultRootPath: defaultRootPath,
	}
}

// ApplySnapshot replaces the task list, status counts and configuration
// together. Callers must never apply a partially populated snapshot.
func (st *State) ApplySnapshot(snap Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.snapshot = snap
	st.hasSnapshot = true
}

// Snapshot returns a copy of the last applied snapshot and whether one has
// been applied at all. The task slice is copied so callers cannot mutate the
// published state.
func (st *State) Snapshot() (Snapshot, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := st.snapshot
	if snap.Tasks != nil {
		tasks := make([]Task, len(snap.Tasks))
		copy(tasks, snap.Tasks)
		snap.Tasks = tasks
	}
	return snap, st.hasSnapshot
}

// RootPath is derived from the fetched configuration, falling back to the
// configured default only while no configuration has ever loaded.
func (st *State) RootPath() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.hasSnapshot && st.snapshot.Config.RootPath != "" {
		return st.snapshot.Config.RootPath
	}
	return st.defaultRootPath
}

// SetMessage publishes msg as the current operator message, overwriting any
// prior one. There is no message history.
func (st *State) SetMessage(msg string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.message = msg
}

func (st *State) Message() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.message
}

func (st *State) AutoWatch() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.autoWatch
}

// SetAutoWatch records the toggle state. Only called after the backend has
// acknowledged the change.
func (st *State) SetAutoWatch(enabled bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.autoWatch = enabled
}

func (st *State) EgressIP() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.egressIP
}

func (st *State) SetEgressIP(ip string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if ip == "" {
		ip = EgressIPUnchecked
	}
	st.egressIP = ip
}

func (st *State) SetEgressIPFailed() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.egressIP = EgressIPFailed
}
