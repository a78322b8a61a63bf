package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, title, body, url, source_task_id,
			source_subtask_id, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	n.ID = uuid.New()
	n.Status = model.NotificationStatusUnread
	n.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.Title,
		n.Body,
		n.URL,
		n.SourceTaskID,
		n.SourceSubtaskID,
		n.Status,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func (r *notificationRepository) CreateUnique(ctx context.Context, n *model.Notification, dedupeKey string) (bool, error) {
	query := `
		INSERT INTO notifications (
			id, user_id, title, body, url, source_task_id,
			source_subtask_id, status, dedupe_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (dedupe_key) DO NOTHING
	`

	n.ID = uuid.New()
	n.Status = model.NotificationStatusUnread
	n.DedupeKey = &dedupeKey
	n.CreatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.Title,
		n.Body,
		n.URL,
		n.SourceTaskID,
		n.SourceSubtaskID,
		n.Status,
		dedupeKey,
		n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}

	return rows > 0, nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE id = $1
	`

	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return &n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}

func (r *notificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus) error {
	query := `
		UPDATE notifications SET status = $1
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification %s not found", id)
	}

	return nil
}
