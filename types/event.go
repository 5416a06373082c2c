package types

import (
	"time"

	"github.com/tasktrack/apiserver/internal/taskstatus"
)

// Task event types published after a committed mutation.
const (
	EventTaskCreated       = "task.created"
	EventTaskStatusChanged = "task.status_changed"
	EventTaskDeleted       = "task.deleted"
)

// TaskEvent describes a committed change to a task.
type TaskEvent struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	TaskID         int64             `json:"task_id"`
	OwnerID        int64             `json:"owner_id"`
	Status         taskstatus.Status `json:"status"`
	PreviousStatus taskstatus.Status `json:"previous_status,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}
