package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/service/recipient"
	apperrors "github.com/littlefarms/taskboard-api/pkg/errors"
)

// SendDailyDigest emails a user a plain-text summary of their assigned
// tasks. Returns the number of tasks included.
func (s *service) SendDailyDigest(ctx context.Context, userID string) (int, error) {
	users, err := s.resolver.Resolve(ctx, []recipient.Ref{recipient.ByID(userID)}, "")
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, apperrors.NewNotFound("user", nil)
	}
	user := users[0]
	if user.Email == "" {
		return 0, apperrors.NewBadRequest(fmt.Sprintf("no email address for user %s", userID), nil)
	}

	tasks, err := s.tasks.ListByAssignee(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load tasks for digest: %w", err)
	}

	plural := "s"
	if len(tasks) == 1 {
		plural = ""
	}
	subject := fmt.Sprintf("Daily Digest: %d task%s", len(tasks), plural)

	if err := s.emailSvc.Send(ctx, user.Email, subject, digestBody(tasks)); err != nil {
		return 0, fmt.Errorf("failed to send daily digest: %w", err)
	}

	return len(tasks), nil
}

func digestBody(tasks []*model.Task) string {
	if len(tasks) == 0 {
		return "No tasks found for today."
	}

	var b strings.Builder
	b.WriteString("Here's a summary of your tasks:\n\n")
	for i, t := range tasks {
		title := t.Title
		if title == "" {
			title = "Untitled Task"
		}
		deadline := "—"
		if t.Deadline != nil {
			deadline = t.Deadline.Format(timestampLayout)
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		fmt.Fprintf(&b, "Description: %s\n", orDash(t.Description))
		fmt.Fprintf(&b, "Deadline: %s\n", deadline)
		fmt.Fprintf(&b, "Status: %s\n\n", orDash(t.Status))
	}
	b.WriteString("— This is an automated message.")
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
