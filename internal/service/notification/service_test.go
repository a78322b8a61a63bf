package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/service/recipient"
	apperrors "github.com/littlefarms/taskboard-api/pkg/errors"
	"github.com/littlefarms/taskboard-api/pkg/metrics"
)

type fakeNotificationRepo struct {
	mu         sync.Mutex
	items      map[uuid.UUID]*model.Notification
	dedupeKeys map[string]bool
	seq        int64
	failCreate bool
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		items:      make(map[uuid.UUID]*model.Notification),
		dedupeKeys: make(map[string]bool),
	}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.New("store unavailable")
	}
	r.seq++
	n.ID = uuid.New()
	n.Status = model.NotificationStatusUnread
	n.CreatedAt = time.Unix(r.seq, 0)
	stored := *n
	r.items[n.ID] = &stored
	return nil
}

func (r *fakeNotificationRepo) CreateUnique(ctx context.Context, n *model.Notification, dedupeKey string) (bool, error) {
	r.mu.Lock()
	exists := r.dedupeKeys[dedupeKey]
	r.dedupeKeys[dedupeKey] = true
	r.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, r.Create(ctx, n)
}

func (r *fakeNotificationRepo) Get(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", id, sql.ErrNoRows)
	}
	copied := *n
	return &copied, nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID string) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.items {
		if n.UserID == userID {
			copied := *n
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeNotificationRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.NotificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return fmt.Errorf("notification %s: %w", id, sql.ErrNoRows)
	}
	n.Status = status
	return nil
}

func (r *fakeNotificationRepo) all() []*model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Notification, 0, len(r.items))
	for _, n := range r.items {
		copied := *n
		out = append(out, &copied)
	}
	return out
}

type fakeTaskRepo struct {
	tasks map[string]*model.Task
}

func (r *fakeTaskRepo) Get(_ context.Context, id string) (*model.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, sql.ErrNoRows)
	}
	return t, nil
}

func (r *fakeTaskRepo) List(_ context.Context, _ *model.TaskFilter) ([]*model.Task, error) {
	out := make([]*model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (r *fakeTaskRepo) ListByAssignee(_ context.Context, userID string) ([]*model.Task, error) {
	var out []*model.Task
	for _, t := range r.tasks {
		if t.AssignedToUser(userID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTaskRepo) ListDueBetween(_ context.Context, from, to time.Time) ([]*model.Task, error) {
	var out []*model.Task
	for _, t := range r.tasks {
		if t.Deadline != nil && t.Deadline.After(from) && t.Deadline.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	gets  int
}

func (r *fakeUserRepo) Get(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, sql.ErrNoRows)
	}
	return u, nil
}

type fakeRouter struct {
	mu        sync.Mutex
	delivered []string
	failFor   map[string]error
}

func (r *fakeRouter) Deliver(_ context.Context, user *model.User, _ *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failFor[user.ID]; ok {
		return err
	}
	r.delivered = append(r.delivered, user.ID)
	return nil
}

type fakeEmail struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

type sentMail struct {
	to, subject, body string
}

func (f *fakeEmail) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type testEnv struct {
	svc           Service
	notifications *fakeNotificationRepo
	tasks         *fakeTaskRepo
	users         *fakeUserRepo
	router        *fakeRouter
	email         *fakeEmail
}

func newTestEnv(tasks map[string]*model.Task, users map[string]*model.User) *testEnv {
	env := &testEnv{
		notifications: newFakeNotificationRepo(),
		tasks:         &fakeTaskRepo{tasks: tasks},
		users:         &fakeUserRepo{users: users},
		router:        &fakeRouter{},
		email:         &fakeEmail{},
	}
	env.svc = NewService(
		env.notifications,
		env.tasks,
		recipient.NewResolver(env.users),
		env.router,
		env.email,
		metrics.NewTestMetrics(),
	)
	return env
}

func user(id string) *model.User {
	return &model.User{ID: id, Email: id + "@example.com", Name: "User " + id}
}

func TestNotifyTaskUpdatedSingleField(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it", AssignedTo: []string{"u1"}}},
		map[string]*model.User{"u1": user("u1")},
	)

	var update model.TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"id": "T1", "status": {"old": "ongoing", "new": "completed"}}`), &update))

	result, err := env.svc.NotifyTaskUpdated(context.Background(), &update)
	require.NoError(t, err)

	assert.Equal(t, "Notifications processed", result.Message)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "status", result.Changes[0].Field)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "u1", result.Results[0].UserID)
	assert.True(t, result.Results[0].Persisted)
	assert.True(t, result.Results[0].Delivered)

	stored := env.notifications.all()
	require.Len(t, stored, 1)
	assert.Equal(t, "u1", stored[0].UserID)
	assert.Equal(t, "Task Updated: Ship it", stored[0].Title)
	assert.Equal(t, "The following fields were updated:\n- status: \"ongoing\" → \"completed\"\n", stored[0].Body)
	assert.Equal(t, "/all-tasks/T1", stored[0].URL)
	assert.Equal(t, model.NotificationStatusUnread, stored[0].Status)
}

func TestNotifyTaskUpdatedOneNotificationPerRecipient(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it", AssignedTo: []string{"u1", "Users/u2", "u3"}}},
		map[string]*model.User{"u1": user("u1"), "u2": user("u2"), "u3": user("u3")},
	)

	var update model.TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "T1",
		"status": {"old": "ongoing", "new": "completed"},
		"description": {"old": "a", "new": "b"}
	}`), &update))

	result, err := env.svc.NotifyTaskUpdated(context.Background(), &update)
	require.NoError(t, err)

	// One aggregated notification per recipient, never one per field.
	assert.Len(t, result.Results, 3)
	assert.Len(t, env.notifications.all(), 3)
	for _, n := range env.notifications.all() {
		assert.Contains(t, n.Body, "- status: \"ongoing\" → \"completed\"\n")
		assert.Contains(t, n.Body, "- description: \"a\" → \"b\"\n")
	}
}

func TestNotifyTaskUpdatedUsesNewTitleFromDiff(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Old name", AssignedTo: []string{"u1"}}},
		map[string]*model.User{"u1": user("u1")},
	)

	var update model.TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"id": "T1", "title": {"old": "Old name", "new": "New name"}}`), &update))

	_, err := env.svc.NotifyTaskUpdated(context.Background(), &update)
	require.NoError(t, err)

	stored := env.notifications.all()
	require.Len(t, stored, 1)
	assert.Equal(t, "Task Updated: New name", stored[0].Title)
}

func TestNotifyTaskUpdatedSkipsUnresolvableAssignees(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it", AssignedTo: []string{"u1", "ghost", "Users/u2"}}},
		map[string]*model.User{"u1": user("u1"), "u2": user("u2")},
	)

	var update model.TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"id": "T1", "status": {"old": "a", "new": "b"}}`), &update))

	result, err := env.svc.NotifyTaskUpdated(context.Background(), &update)
	require.NoError(t, err)

	ids := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		ids = append(ids, r.UserID)
	}
	assert.ElementsMatch(t, []string{"u1", "u2"}, ids)
	assert.Len(t, env.notifications.all(), 2)
}

func TestNotifyTaskUpdatedTaskNotFound(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{})

	var update model.TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"id": "missing", "status": {"old": "a", "new": "b"}}`), &update))

	_, err := env.svc.NotifyTaskUpdated(context.Background(), &update)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestNotifyTaskUpdatedEmptyDiff(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it", AssignedTo: []string{"u1"}}},
		map[string]*model.User{"u1": user("u1")},
	)

	result, err := env.svc.NotifyTaskUpdated(context.Background(), &model.TaskUpdate{TaskID: "T1"})
	require.NoError(t, err)

	// Changes marshals as [] rather than null.
	assert.NotNil(t, result.Changes)
	assert.Empty(t, result.Changes)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Persisted)
}

func TestNotifyTaskUpdatedMissingTaskID(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{})

	_, err := env.svc.NotifyTaskUpdated(context.Background(), &model.TaskUpdate{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestNotifyTaskUpdatedPersistFailureIsolated(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it", AssignedTo: []string{"u1"}}},
		map[string]*model.User{"u1": user("u1")},
	)
	env.notifications.failCreate = true

	var update model.TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"id": "T1", "status": {"old": "a", "new": "b"}}`), &update))

	result, err := env.svc.NotifyTaskUpdated(context.Background(), &update)
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	assert.False(t, result.Results[0].Persisted)
	assert.False(t, result.Results[0].Delivered)
	assert.Contains(t, result.Results[0].Error, "store unavailable")
}

func TestNotifyTaskUpdatedDeliveryFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it", AssignedTo: []string{"u1", "u2"}}},
		map[string]*model.User{"u1": user("u1"), "u2": user("u2")},
	)
	env.router.failFor = map[string]error{"u1": errors.New("smtp down")}

	var update model.TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"id": "T1", "status": {"old": "a", "new": "b"}}`), &update))

	result, err := env.svc.NotifyTaskUpdated(context.Background(), &update)
	require.NoError(t, err)

	byUser := make(map[string]model.RecipientOutcome, len(result.Results))
	for _, r := range result.Results {
		byUser[r.UserID] = r
	}
	assert.True(t, byUser["u1"].Persisted)
	assert.False(t, byUser["u1"].Delivered)
	assert.Contains(t, byUser["u1"].Error, "smtp down")
	assert.True(t, byUser["u2"].Delivered)

	// The record survives even though delivery failed.
	assert.Len(t, env.notifications.all(), 2)
}

func TestNotifyNewCommentOnTask(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it"}},
		map[string]*model.User{"u1": user("u1")},
	)

	ts := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	result, err := env.svc.NotifyNewComment(context.Background(), &model.CommentEvent{
		TaskID:         "T1",
		CommentText:    "Looks good",
		CommenterName:  "Alice",
		ParticipantIDs: []string{"u1"},
		Timestamp:      ts,
	})
	require.NoError(t, err)

	assert.Equal(t, "Notifications processed", result.Message)
	stored := env.notifications.all()
	require.Len(t, stored, 1)
	assert.Equal(t, "New Comment on Task: Ship it", stored[0].Title)
	assert.Equal(t, "Alice commented on task \"Ship it\" at 5 Mar 2026, 2:30 PM:\n\n\"Looks good\"", stored[0].Body)
	assert.Equal(t, "/all-tasks/T1", stored[0].URL)
}

func TestNotifyNewCommentOnSubtaskLinksSubtask(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it"}},
		map[string]*model.User{"u1": user("u1")},
	)

	_, err := env.svc.NotifyNewComment(context.Background(), &model.CommentEvent{
		TaskID:         "T1",
		SubtaskID:      "S9",
		CommentText:    "hm",
		CommenterName:  "Alice",
		ParticipantIDs: []string{"u1"},
	})
	require.NoError(t, err)

	stored := env.notifications.all()
	require.Len(t, stored, 1)
	assert.Equal(t, "/all-tasks/T1/S9", stored[0].URL)
	assert.Equal(t, "S9", stored[0].SourceSubtaskID)
}

func TestNotifyNewCommentDeduplicatesParticipants(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it"}},
		map[string]*model.User{"u1": user("u1"), "u2": user("u2")},
	)

	result, err := env.svc.NotifyNewComment(context.Background(), &model.CommentEvent{
		TaskID:         "T1",
		CommentText:    "ping",
		CommenterName:  "Alice",
		ParticipantIDs: []string{"u1", "u2", "u1"},
	})
	require.NoError(t, err)

	assert.Len(t, result.Results, 2)
	assert.Len(t, env.notifications.all(), 2)
}

func TestNotifyNewCommentNoParticipants(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1", Title: "Ship it"}},
		map[string]*model.User{},
	)

	result, err := env.svc.NotifyNewComment(context.Background(), &model.CommentEvent{
		TaskID:        "T1",
		CommentText:   "ping",
		CommenterName: "Alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "No recipients provided", result.Message)
	assert.Empty(t, result.Results)
	assert.Empty(t, env.notifications.all())
}

func TestNotifyNewCommentUntitledTaskFallback(t *testing.T) {
	env := newTestEnv(
		map[string]*model.Task{"T1": {ID: "T1"}},
		map[string]*model.User{"u1": user("u1")},
	)

	_, err := env.svc.NotifyNewComment(context.Background(), &model.CommentEvent{
		TaskID:         "T1",
		CommentText:    "ping",
		CommenterName:  "Alice",
		ParticipantIDs: []string{"u1"},
	})
	require.NoError(t, err)

	stored := env.notifications.all()
	require.Len(t, stored, 1)
	assert.Equal(t, "New Comment on Task: Untitled Task", stored[0].Title)
	assert.Contains(t, stored[0].Body, "commented on task \"Untitled Task\"")
}

func TestListForUserNewestFirst(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{})

	ctx := context.Background()
	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, env.notifications.Create(ctx, &model.Notification{UserID: "u1", Title: title}))
	}
	require.NoError(t, env.notifications.Create(ctx, &model.Notification{UserID: "other", Title: "not yours"}))

	list, err := env.svc.ListForUser(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
	assert.Equal(t, "first", list[2].Title)
}

func TestListForUserEmpty(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{})

	list, err := env.svc.ListForUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestAcknowledge(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{})
	ctx := context.Background()

	n := &model.Notification{UserID: "u1", Title: "hello"}
	require.NoError(t, env.notifications.Create(ctx, n))

	require.NoError(t, env.svc.Acknowledge(ctx, n.ID, "u1"))

	stored, err := env.notifications.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusRead, stored.Status)
}

func TestAcknowledgeIdempotent(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{})
	ctx := context.Background()

	n := &model.Notification{UserID: "u1", Title: "hello"}
	require.NoError(t, env.notifications.Create(ctx, n))

	require.NoError(t, env.svc.Acknowledge(ctx, n.ID, "u1"))
	require.NoError(t, env.svc.Acknowledge(ctx, n.ID, "u1"))
}

func TestAcknowledgeForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{})
	ctx := context.Background()

	n := &model.Notification{UserID: "u1", Title: "hello"}
	require.NoError(t, env.notifications.Create(ctx, n))

	err := env.svc.Acknowledge(ctx, n.ID, "u2")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	stored, getErr := env.notifications.Get(ctx, n.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.NotificationStatusUnread, stored.Status)
}

func TestAcknowledgeNotFound(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{})

	err := env.svc.Acknowledge(context.Background(), uuid.New(), "u1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestSendDailyDigest(t *testing.T) {
	deadline := time.Date(2026, 4, 1, 17, 0, 0, 0, time.UTC)
	env := newTestEnv(
		map[string]*model.Task{
			"T1": {ID: "T1", Title: "Ship it", Description: "the big one", Status: model.TaskStatusOngoing, AssignedTo: []string{"u1"}, Deadline: &deadline},
			"T2": {ID: "T2", AssignedTo: []string{"Users/u1"}},
			"T3": {ID: "T3", Title: "Not yours", AssignedTo: []string{"u2"}},
		},
		map[string]*model.User{"u1": user("u1")},
	)

	count, err := env.svc.SendDailyDigest(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.Len(t, env.email.sent, 1)
	mail := env.email.sent[0]
	assert.Equal(t, "u1@example.com", mail.to)
	assert.Equal(t, "Daily Digest: 2 tasks", mail.subject)
	assert.Contains(t, mail.body, "1. Ship it")
	assert.Contains(t, mail.body, "Description: the big one")
	assert.Contains(t, mail.body, "Deadline: 1 Apr 2026, 5:00 PM")
	assert.Contains(t, mail.body, "2. Untitled Task")
	assert.Contains(t, mail.body, "— This is an automated message.")
}

func TestSendDailyDigestNoTasks(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{"u1": user("u1")})

	count, err := env.svc.SendDailyDigest(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.Len(t, env.email.sent, 1)
	assert.Equal(t, "Daily Digest: 0 tasks", env.email.sent[0].subject)
	assert.Contains(t, env.email.sent[0].body, "No tasks found for today.")
}

func TestSendDailyDigestUnknownUser(t *testing.T) {
	env := newTestEnv(map[string]*model.Task{}, map[string]*model.User{})

	_, err := env.svc.SendDailyDigest(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}
