package core

import (
	"time"
)

// TaskStatus describes the lifecycle state the backend reports for a task.
// The client never transitions a status itself.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusQueued  TaskStatus = "queued"
	TaskStatusSending TaskStatus = "sending"
	TaskStatusSent    TaskStatus = "sent"
	TaskStatusFailed  TaskStatus = "failed"
	TaskStatusSkipped TaskStatus = "skipped"
)

// Task is one file-to-contact delivery unit tracked by the backend.
// CreatedAt/UpdatedAt are opaque backend timestamps, display-only.
type Task struct {
	ID          int64      `json:"id"`
	FilePath    string     `json:"file_path"`
	StudentName string     `json:"student_name"`
	ParentName  string     `json:"parent_name"`
	UserID      *string    `json:"user_id"`
	Status      TaskStatus `json:"status"`
	Error       *string    `json:"error"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

// StatusCounts is the backend's authoritative aggregate. It is never
// recomputed from the task list; the two may disagree within one poll window.
type StatusCounts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Queued  int `json:"queued"`
	Sending int `json:"sending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// AppConfig mirrors the backend configuration. The secret arrives masked;
// only its presence is ever surfaced.
type AppConfig struct {
	CorpID          string  `json:"corp_id"`
	AgentID         string  `json:"agent_id"`
	Secret          string  `json:"secret"`
	RootPath        string  `json:"root_path"`
	RateLimitPerSec float64 `json:"rate_limit_per_sec"`
	MaxConcurrency  int     `json:"max_concurrency"`
}

// ConfigUpdate carries only the fields the operator actually edited.
// Nil fields are omitted from the request and left unchanged by the backend.
type ConfigUpdate struct {
	CorpID          *string  `json:"corp_id,omitempty"`
	AgentID         *string  `json:"agent_id,omitempty"`
	Secret          *string  `json:"secret,omitempty"`
	RootPath        *string  `json:"root_path,omitempty"`
	RateLimitPerSec *float64 `json:"rate_limit_per_sec,omitempty"`
	MaxConcurrency  *int     `json:"max_concurrency,omitempty"`
}

// Empty reports whether the update carries no edits at all.
func (u ConfigUpdate) Empty() bool {
	return u.CorpID == nil && u.AgentID == nil && u.Secret == nil &&
		u.RootPath == nil && u.RateLimitPerSec == nil && u.MaxConcurrency == nil
}

// Snapshot is the atomically applied triple of one refresh cycle. Partial
// replacement of its parts is forbidden.
type Snapshot struct {
	Tasks     []Task
	Counts    StatusCounts
	Config    AppConfig
	FetchedAt time.Time
}
