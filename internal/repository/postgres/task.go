package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/repository"
)

type taskRepository struct {
	BaseRepository
}

func NewTaskRepository(base BaseRepository) repository.TaskRepository {
	return &taskRepository{base}
}

func (r *taskRepository) Get(ctx context.Context, id string) (*model.Task, error) {
	query := `
		SELECT * FROM tasks
		WHERE id = $1
	`

	var task model.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, filter *model.TaskFilter) ([]*model.Task, error) {
	// assigned_to entries carry either bare user IDs or legacy
	// "Users/<id>" paths, so assignee matches check both forms.
	query := `
		SELECT * FROM tasks
		WHERE ($1 = '' OR project_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR $3 = ANY(assigned_to) OR 'Users/' || $3 = ANY(assigned_to))
		ORDER BY created_at DESC
	`

	if filter == nil {
		filter = &model.TaskFilter{}
	}

	var tasks []*model.Task
	if err := r.db.SelectContext(ctx, &tasks, query, filter.ProjectID, filter.Status, filter.AssigneeID); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

func (r *taskRepository) ListByAssignee(ctx context.Context, userID string) ([]*model.Task, error) {
	query := `
		SELECT * FROM tasks
		WHERE $1 = ANY(assigned_to) OR 'Users/' || $1 = ANY(assigned_to)
		ORDER BY deadline ASC NULLS LAST
	`

	var tasks []*model.Task
	if err := r.db.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list tasks for assignee: %w", err)
	}

	return tasks, nil
}

func (r *taskRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*model.Task, error) {
	query := `
		SELECT * FROM tasks
		WHERE deadline > $1 AND deadline <= $2
		ORDER BY deadline ASC
	`

	var tasks []*model.Task
	if err := r.db.SelectContext(ctx, &tasks, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to list upcoming tasks: %w", err)
	}

	return tasks, nil
}
