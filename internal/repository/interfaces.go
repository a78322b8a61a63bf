package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/littlefarms/taskboard-api/internal/model"
)

// All repository interfaces in one file
type (
	// NotificationRepository is the persistence gateway for notification
	// records. Create assigns the ID, sets status to unread and stamps
	// created_at; existence of the row is the durability boundary for a
	// fan-out.
	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		// CreateUnique creates the notification unless one with the same
		// dedupe key already exists. Reports whether a row was inserted.
		CreateUnique(ctx context.Context, notification *model.Notification, dedupeKey string) (bool, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
		ListByUser(ctx context.Context, userID string) ([]*model.Notification, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus) error
	}

	TaskRepository interface {
		Get(ctx context.Context, id string) (*model.Task, error)
		List(ctx context.Context, filter *model.TaskFilter) ([]*model.Task, error)
		ListByAssignee(ctx context.Context, userID string) ([]*model.Task, error)
		ListDueBetween(ctx context.Context, from, to time.Time) ([]*model.Task, error)
	}

	UserRepository interface {
		Get(ctx context.Context, id string) (*model.User, error)
	}
)
