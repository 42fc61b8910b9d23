// Package store defines the persisted entities of the task domain and the
// interfaces the realtime core uses to reach them. The storage engine behind
// these interfaces is an implementation detail; see the sqlitestore package.
package store

import "time"

// Notification type values.
const (
	TypeAssignment = "ASSIGNMENT"
	TypeTaskUpdate = "TASK_UPDATE"
	TypeComment    = "COMMENT"
	TypeSystem     = "SYSTEM"
)

// Notification is the durable record behind every realtime push. It is
// created unread on dispatch, mutated only by mark-all-read, and never
// deleted by this subsystem.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Context   string    `json:"context,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedBy   int64      `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"taskId"`
	UserID    int64     `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity is one immutable audit record of a task mutation.
type Activity struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	TaskID    int64     `json:"taskId,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
