package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/littlefarms/taskboard-api/internal/email"
	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/repository"
	"github.com/littlefarms/taskboard-api/internal/service/delivery"
	"github.com/littlefarms/taskboard-api/internal/service/recipient"
	apperrors "github.com/littlefarms/taskboard-api/pkg/errors"
	"github.com/littlefarms/taskboard-api/pkg/metrics"
)

// Service is the notification engine: it turns task mutations and new
// comments into per-recipient notification records, routes delivery,
// and tracks read state.
type Service interface {
	NotifyTaskUpdated(ctx context.Context, update *model.TaskUpdate) (*model.TaskUpdateResult, error)
	NotifyNewComment(ctx context.Context, event *model.CommentEvent) (*model.CommentResult, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Notification, error)
	Acknowledge(ctx context.Context, id uuid.UUID, requesterID string) error
	SendDailyDigest(ctx context.Context, userID string) (int, error)
}

type service struct {
	notifications repository.NotificationRepository
	tasks         repository.TaskRepository
	resolver      *recipient.Resolver
	delivery      delivery.Router
	emailSvc      email.Service
	metrics       *metrics.Metrics
}

func NewService(
	notifications repository.NotificationRepository,
	tasks repository.TaskRepository,
	resolver *recipient.Resolver,
	deliveryRouter delivery.Router,
	emailSvc email.Service,
	m *metrics.Metrics,
) Service {
	return &service{
		notifications: notifications,
		tasks:         tasks,
		resolver:      resolver,
		delivery:      deliveryRouter,
		emailSvc:      emailSvc,
		metrics:       m,
	}
}

func (s *service) NotifyTaskUpdated(ctx context.Context, update *model.TaskUpdate) (*model.TaskUpdateResult, error) {
	if update.TaskID == "" {
		return nil, apperrors.NewBadRequest("task id is required", nil)
	}

	start := time.Now()

	task, err := s.tasks.Get(ctx, update.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("task", err)
		}
		return nil, fmt.Errorf("failed to load task %s: %w", update.TaskID, err)
	}

	title := task.Title
	if t := titleFromChanges(update.Changes); t != "" {
		title = t
	}

	refs := make([]recipient.Ref, 0, len(task.AssignedTo))
	for _, raw := range task.AssignedTo {
		refs = append(refs, recipient.FromString(raw))
	}

	// The acting user stays in the recipient set: the update payload
	// does not identify who made the change.
	recipients, err := s.resolver.Resolve(ctx, refs, "")
	if err != nil {
		return nil, err
	}

	template := &model.Notification{
		Title:        "Task Updated: " + title,
		Body:         changeSummary(update.Changes),
		URL:          TaskLink(update.TaskID, ""),
		SourceTaskID: update.TaskID,
	}
	results := s.fanOut(ctx, recipients, template)

	s.metrics.FanoutRecipients.Observe(float64(len(recipients)))
	s.metrics.FanoutDuration.Observe(time.Since(start).Seconds())

	changes := update.Changes
	if changes == nil {
		changes = []model.ChangeRecord{}
	}

	return &model.TaskUpdateResult{
		Message: "Notifications processed",
		Changes: changes,
		Results: results,
	}, nil
}

func (s *service) NotifyNewComment(ctx context.Context, event *model.CommentEvent) (*model.CommentResult, error) {
	if event.TaskID == "" {
		return nil, apperrors.NewBadRequest("task id is required", nil)
	}

	start := time.Now()

	task, err := s.tasks.Get(ctx, event.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("task", err)
		}
		return nil, fmt.Errorf("failed to load task %s: %w", event.TaskID, err)
	}

	taskName := task.Title
	if taskName == "" {
		taskName = "Untitled Task"
	}

	if len(event.ParticipantIDs) == 0 {
		return &model.CommentResult{
			Message: "No recipients provided",
			Results: []model.RecipientOutcome{},
		}, nil
	}

	refs := make([]recipient.Ref, 0, len(event.ParticipantIDs))
	for _, id := range event.ParticipantIDs {
		refs = append(refs, recipient.ByID(id))
	}

	recipients, err := s.resolver.Resolve(ctx, refs, "")
	if err != nil {
		return nil, err
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	template := &model.Notification{
		Title: "New Comment on Task: " + taskName,
		Body: fmt.Sprintf("%s commented on task \"%s\" at %s:\n\n\"%s\"",
			event.CommenterName, taskName, ts.Format(timestampLayout), event.CommentText),
		URL:             TaskLink(event.TaskID, event.SubtaskID),
		SourceTaskID:    event.TaskID,
		SourceSubtaskID: event.SubtaskID,
	}
	results := s.fanOut(ctx, recipients, template)

	s.metrics.FanoutRecipients.Observe(float64(len(recipients)))
	s.metrics.FanoutDuration.Observe(time.Since(start).Seconds())

	return &model.CommentResult{
		Message: "Notifications processed",
		Results: results,
	}, nil
}

// fanOut creates and delivers one notification per recipient. Creates
// run concurrently; each recipient's outcome is captured individually
// so one failure never blocks or aborts the others.
func (s *service) fanOut(ctx context.Context, recipients []*model.User, template *model.Notification) []model.RecipientOutcome {
	results := make([]model.RecipientOutcome, len(recipients))

	var wg sync.WaitGroup
	for i, user := range recipients {
		wg.Add(1)
		go func(i int, user *model.User) {
			defer wg.Done()
			results[i] = s.notifyOne(ctx, user, template)
		}(i, user)
	}
	wg.Wait()

	return results
}

func (s *service) notifyOne(ctx context.Context, user *model.User, template *model.Notification) model.RecipientOutcome {
	outcome := model.RecipientOutcome{
		UserID:  user.ID,
		Channel: user.PreferredChannel(),
	}

	n := *template
	n.UserID = user.ID

	if err := s.notifications.Create(ctx, &n); err != nil {
		log.Error().
			Err(err).
			Str("user_id", user.ID).
			Str("task_id", n.SourceTaskID).
			Msg("failed to persist notification")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Persisted = true
	s.metrics.NotificationsCreated.Inc()

	// Delivery is best effort: the record above is already durable.
	if err := s.delivery.Deliver(ctx, user, &n); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Delivered = true

	return outcome
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	notifications, err := s.notifications.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for %s: %w", userID, err)
	}
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	return notifications, nil
}

func (s *service) Acknowledge(ctx context.Context, id uuid.UUID, requesterID string) error {
	n, err := s.notifications.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("notification", err)
		}
		return fmt.Errorf("failed to load notification %s: %w", id, err)
	}

	if n.UserID != requesterID {
		return apperrors.NewForbidden(fmt.Errorf("notification %s belongs to another user", id))
	}

	// Re-acknowledging by the owner is a no-op.
	if n.Status == model.NotificationStatusRead {
		return nil
	}

	if err := s.notifications.UpdateStatus(ctx, id, model.NotificationStatusRead); err != nil {
		return fmt.Errorf("failed to acknowledge notification %s: %w", id, err)
	}

	return nil
}
