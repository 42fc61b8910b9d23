package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// NotificationStore is the dispatcher's durable side. A failed create must
// surface to the caller; the dispatcher never pushes what it could not persist.
type NotificationStore interface {
	// CreateNotification persists an unread notification, filling in ID and
	// CreatedAt on success.
	CreateNotification(ctx context.Context, n *Notification) error

	// NotificationsForUser lists a user's notifications, newest first.
	NotificationsForUser(ctx context.Context, userID int64) ([]Notification, error)

	// MarkAllRead flips every unread notification of the user to read,
	// returning how many rows changed. Global per user, not per device.
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

// TaskStore owns tasks, their assignment relation, and comments.
type TaskStore interface {
	// CreateTask persists the task and its initial assignee set atomically,
	// filling in ID, CreatedAt and UpdatedAt.
	CreateTask(ctx context.Context, t *Task, assignees []int64) error

	Task(ctx context.Context, id int64) (*Task, error)

	// TaskAssignees returns the task's current assignee user ids, sorted.
	TaskAssignees(ctx context.Context, taskID int64) ([]int64, error)

	UpdateTask(ctx context.Context, t *Task) error

	// ApplyAssigneeDelta inserts the add set and deletes the remove set of
	// the (taskID, userID) assignment relation in one transaction.
	ApplyAssigneeDelta(ctx context.Context, taskID int64, add, remove []int64) error

	// DeleteTask removes the task and, via cascade, its assignments and
	// comments.
	DeleteTask(ctx context.Context, id int64) error

	CreateComment(ctx context.Context, c *Comment) error
}

// ActivityStore appends immutable audit records.
type ActivityStore interface {
	AppendActivity(ctx context.Context, a *Activity) error
}
