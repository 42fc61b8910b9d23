package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/store"
	"github.com/taskwire/taskwire/internal/store/sqlitestore"
)

func newTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNotificationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n := &store.Notification{
		UserID:  7,
		Message: "You have been assigned to task 'Ship it'",
		Type:    store.TypeAssignment,
		Context: `{"taskId":1}`,
	}
	require.NoError(t, s.CreateNotification(ctx, n))
	assert.NotZero(t, n.ID)
	assert.False(t, n.IsRead)
	assert.False(t, n.CreatedAt.IsZero())

	second := &store.Notification{UserID: 7, Message: "Task 'Ship it' was updated", Type: store.TypeTaskUpdate}
	require.NoError(t, s.CreateNotification(ctx, second))

	// Another user's notification must not leak into user 7's list.
	require.NoError(t, s.CreateNotification(ctx, &store.Notification{UserID: 9, Message: "other", Type: store.TypeSystem}))

	list, err := s.NotificationsForUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest first.
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, n.ID, list[1].ID)
	assert.Equal(t, `{"taskId":1}`, list[1].Context)
	assert.Empty(t, list[0].Context)

	updated, err := s.MarkAllRead(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	list, err = s.NotificationsForUser(ctx, 7)
	require.NoError(t, err)
	for _, item := range list {
		assert.True(t, item.IsRead)
	}

	// Already read: nothing left to update.
	updated, err = s.MarkAllRead(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, updated)

	// User 9's notification stayed unread.
	list, err = s.NotificationsForUser(ctx, 9)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRead)
}

func TestNotificationsForUnknownUserIsEmpty(t *testing.T) {
	s := newTestStore(t)

	list, err := s.NotificationsForUser(context.Background(), 12345)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestTaskCreateWithAssignees(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &store.Task{Title: "Write release notes", CreatedBy: 1}
	require.NoError(t, s.CreateTask(ctx, task, []int64{7, 9, 7}))
	assert.NotZero(t, task.ID)
	assert.Equal(t, "TODO", task.Status)
	assert.Equal(t, "MEDIUM", task.Priority)

	assignees, err := s.TaskAssignees(ctx, task.ID)
	require.NoError(t, err)
	// Duplicate assignment collapses to one row.
	assert.Equal(t, []int64{7, 9}, assignees)

	loaded, err := s.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, loaded.Title)
	assert.Equal(t, task.CreatedBy, loaded.CreatedBy)
	assert.Nil(t, loaded.DueDate)
}

func TestTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Task(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.UpdateTask(ctx, &store.Task{ID: 999, Title: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.DeleteTask(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApplyAssigneeDelta(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &store.Task{Title: "Fix flaky test", CreatedBy: 1}
	require.NoError(t, s.CreateTask(ctx, task, []int64{1, 2, 3}))

	require.NoError(t, s.ApplyAssigneeDelta(ctx, task.ID, []int64{4}, []int64{1}))

	assignees, err := s.TaskAssignees(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, assignees)

	// Empty delta is a no-op.
	require.NoError(t, s.ApplyAssigneeDelta(ctx, task.ID, nil, nil))
	assignees, err = s.TaskAssignees(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, assignees)
}

func TestDeleteTaskCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &store.Task{Title: "Doomed task", CreatedBy: 1}
	require.NoError(t, s.CreateTask(ctx, task, []int64{7}))
	require.NoError(t, s.CreateComment(ctx, &store.Comment{TaskID: task.ID, UserID: 7, Content: "on it"}))

	require.NoError(t, s.DeleteTask(ctx, task.ID))

	assignees, err := s.TaskAssignees(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, assignees)
}

func TestAppendActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &store.Activity{UserID: 1, TaskID: 2, Action: "task_created", Details: "Ship it"}
	require.NoError(t, s.AppendActivity(ctx, a))
	assert.NotZero(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())
}
