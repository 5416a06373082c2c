package types

import (
	"time"

	"github.com/tasktrack/apiserver/internal/taskstatus"
)

// Task is a unit of work owned by exactly one user.
type Task struct {
	// ID is the unique identifier of the task.
	ID int64 `json:"id" db:"id"`

	// OwnerID references the user that created the task. It never changes.
	OwnerID int64 `json:"owner_id" db:"owner_id"`

	// Title is a short, non-empty summary.
	Title string `json:"title" db:"title"`

	// Description is optional free text.
	Description *string `json:"description,omitempty" db:"description"`

	// Status is the current lifecycle state.
	Status taskstatus.Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// IsDeleted marks the task as soft-deleted. Deleted tasks are invisible
	// to every owner-scoped operation but remain in storage.
	IsDeleted bool `json:"is_deleted" db:"is_deleted"`
}
