package deadline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/repository"
	"github.com/littlefarms/taskboard-api/internal/service/delivery"
	"github.com/littlefarms/taskboard-api/internal/service/notification"
	"github.com/littlefarms/taskboard-api/internal/service/recipient"
	"github.com/littlefarms/taskboard-api/pkg/metrics"
)

// Reminder windows are per-user (User.ReminderDays) but capped.
const maxReminderDaysCap = 30

// Service scans tasks with upcoming deadlines and reminds their
// assignees through the same delivery router the fan-out engine uses.
// A dedupe key guarantees at most one reminder per (task, user).
type Service struct {
	tasks         repository.TaskRepository
	notifications repository.NotificationRepository
	resolver      *recipient.Resolver
	delivery      delivery.Router
	metrics       *metrics.Metrics
}

func NewService(
	tasks repository.TaskRepository,
	notifications repository.NotificationRepository,
	resolver *recipient.Resolver,
	deliveryRouter delivery.Router,
	m *metrics.Metrics,
) *Service {
	return &Service{
		tasks:         tasks,
		notifications: notifications,
		resolver:      resolver,
		delivery:      deliveryRouter,
		metrics:       m,
	}
}

// Run scans on the given interval until the context is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if err := s.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("deadline scan failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("deadline scan failed")
			}
		}
	}
}

// RunOnce performs a single scan over candidate tasks.
func (s *Service) RunOnce(ctx context.Context) error {
	now := time.Now()
	upper := now.Add(maxReminderDaysCap * 24 * time.Hour)

	tasks, err := s.tasks.ListDueBetween(ctx, now, upper)
	if err != nil {
		return fmt.Errorf("failed to list candidate tasks: %w", err)
	}

	for _, task := range tasks {
		if task.Deadline == nil {
			continue
		}

		refs := make([]recipient.Ref, 0, len(task.AssignedTo))
		for _, raw := range task.AssignedTo {
			refs = append(refs, recipient.FromString(raw))
		}

		users, err := s.resolver.Resolve(ctx, refs, "")
		if err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("failed to resolve assignees")
			continue
		}

		for _, user := range users {
			window := time.Duration(clampReminderDays(user.ReminderDays)) * 24 * time.Hour
			if task.Deadline.Sub(now) > window {
				continue
			}
			s.remind(ctx, task, user)
		}
	}

	return nil
}

func (s *Service) remind(ctx context.Context, task *model.Task, user *model.User) {
	title := task.Title
	if title == "" {
		title = "(untitled)"
	}

	days := int(time.Until(*task.Deadline).Hours()/24) + 1

	n := &model.Notification{
		UserID: user.ID,
		Title:  fmt.Sprintf("Task Deadline Reminder: %s", title),
		Body: fmt.Sprintf("Reminder: \"%s\" is due in %d day(s). Deadline: %s.",
			title, days, task.Deadline.Format("2 Jan 2006, 3:04 PM")),
		URL:          notification.TaskLink(task.ID, ""),
		SourceTaskID: task.ID,
	}

	dedupeKey := "deadline:" + task.ID + ":" + user.ID
	created, err := s.notifications.CreateUnique(ctx, n, dedupeKey)
	if err != nil {
		s.metrics.RemindersFailed.Inc()
		log.Error().Err(err).Str("task_id", task.ID).Str("user_id", user.ID).Msg("failed to create reminder")
		return
	}
	if !created {
		return
	}

	s.metrics.RemindersSent.Inc()

	// Best effort, same as every other delivery.
	_ = s.delivery.Deliver(ctx, user, n)
}

func clampReminderDays(days int) int {
	if days <= 0 {
		return 1
	}
	if days > maxReminderDaysCap {
		return maxReminderDaysCap
	}
	return days
}
