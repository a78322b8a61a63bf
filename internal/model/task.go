package model

import (
	"time"

	"github.com/lib/pq"
)

// Task status constants
const (
	TaskStatusUnassigned  = "unassigned"
	TaskStatusOngoing     = "ongoing"
	TaskStatusUnderReview = "under review"
	TaskStatusCompleted   = "completed"
)

// Task represents a tracked task. AssignedTo entries are recipient
// references: either bare user IDs or legacy document paths such as
// "Users/<id>"; the recipient resolver normalizes both forms.
type Task struct {
	ID           string         `json:"id" db:"id"`
	Title        string         `json:"title" db:"title"`
	Description  string         `json:"description" db:"description"`
	Status       string         `json:"status" db:"status"`
	ProjectID    string         `json:"project_id" db:"project_id"`
	ParentTaskID *string        `json:"parent_task_id,omitempty" db:"parent_task_id"`
	AssignedTo   pq.StringArray `json:"assigned_to" db:"assigned_to"`
	Deadline     *time.Time     `json:"deadline,omitempty" db:"deadline"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// AssignedToUser reports whether the user appears among the task's
// assignees, in either reference form. Assignee SQL filters implement
// the same two-form match.
func (t *Task) AssignedToUser(userID string) bool {
	if userID == "" {
		return false
	}
	for _, ref := range t.AssignedTo {
		if ref == userID || ref == "Users/"+userID {
			return true
		}
	}
	return false
}

// TaskFilter represents task search parameters
type TaskFilter struct {
	ProjectID  string `json:"project_id" form:"project_id"`
	Status     string `json:"status" form:"status"`
	AssigneeID string `json:"assignee_id" form:"assignee_id"`
}
