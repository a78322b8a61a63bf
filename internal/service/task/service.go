package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/repository"
	apperrors "github.com/littlefarms/taskboard-api/pkg/errors"
)

// Service reads task records for the HTTP layer and the notification
// engine.
type Service interface {
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter *model.TaskFilter) ([]*model.Task, error)
}

type service struct {
	repo repository.TaskRepository
}

func NewService(repo repository.TaskRepository) Service {
	return &service{repo: repo}
}

func (s *service) GetTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("task", err)
		}
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return task, nil
}

func (s *service) ListTasks(ctx context.Context, filter *model.TaskFilter) ([]*model.Task, error) {
	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	return tasks, nil
}
