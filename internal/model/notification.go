package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusUnread NotificationStatus = "unread"
	NotificationStatusRead   NotificationStatus = "read"
)

// Notification is a per-user notification record. The ID is assigned by
// the persistence layer on create; status starts at unread and only
// ever moves to read.
type Notification struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	UserID          string             `json:"user_id" db:"user_id"`
	Title           string             `json:"title" db:"title"`
	Body            string             `json:"body" db:"body"`
	URL             string             `json:"url" db:"url"`
	SourceTaskID    string             `json:"source_task_id" db:"source_task_id"`
	SourceSubtaskID string             `json:"source_subtask_id,omitempty" db:"source_subtask_id"`
	Status          NotificationStatus `json:"status" db:"status"`
	DedupeKey       *string            `json:"-" db:"dedupe_key"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

// CommentEvent describes a new comment on a task or subtask. An empty
// SubtaskID means the comment was left on the top-level task. The
// participant list arrives already resolved to user IDs upstream.
type CommentEvent struct {
	TaskID         string    `json:"task_id" binding:"required"`
	SubtaskID      string    `json:"subtask_id"`
	TaskName       string    `json:"task_name"`
	CommentText    string    `json:"comment_text"`
	CommenterName  string    `json:"commenter_name"`
	ParticipantIDs []string  `json:"participant_ids"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecipientOutcome records the per-recipient result of one fan-out.
// Delivery errors end up here instead of failing the operation.
type RecipientOutcome struct {
	UserID    string `json:"user_id"`
	Channel   string `json:"channel,omitempty"`
	Persisted bool   `json:"persisted"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// TaskUpdateResult is returned by the task-update fan-out entry point.
type TaskUpdateResult struct {
	Message string             `json:"message"`
	Changes []ChangeRecord     `json:"changes"`
	Results []RecipientOutcome `json:"results"`
}

// CommentResult is returned by the new-comment fan-out entry point.
type CommentResult struct {
	Message string             `json:"message"`
	Results []RecipientOutcome `json:"results"`
}
