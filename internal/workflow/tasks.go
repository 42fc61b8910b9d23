// Package workflow implements the task mutation flows that drive the
// notification fan-out: who changed what, who is assigned now, and who must
// hear about it.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskwire/taskwire/internal/assign"
	"github.com/taskwire/taskwire/internal/notify"
	"github.com/taskwire/taskwire/internal/store"
)

var ErrTitleRequired = errors.New("workflow: task title is required")

// TaskService orchestrates task mutations: persist the change, append the
// audit record, then fan out notifications. Notification delivery is
// best-effort; a failed dispatch never rolls back a committed mutation.
type TaskService struct {
	tasks      store.TaskStore
	activities store.ActivityStore
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

func NewTaskService(tasks store.TaskStore, activities store.ActivityStore, dispatcher *notify.Dispatcher, logger *slog.Logger) *TaskService {
	return &TaskService{
		tasks:      tasks,
		activities: activities,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "task_workflow")),
	}
}

type CreateTaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	Assignees   []int64    `json:"assignees"`
}

// UpdateTaskInput carries only the fields the caller wants to change. A nil
// Assignees means "leave the assignment relation alone"; an empty non-nil
// slice clears it.
type UpdateTaskInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	Assignees   *[]int64   `json:"assignees"`
}

func (s *TaskService) CreateTask(ctx context.Context, actor int64, in CreateTaskInput) (*store.Task, error) {
	if in.Title == "" {
		return nil, ErrTitleRequired
	}

	delta := assign.Diff(nil, in.Assignees)
	task := &store.Task{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedBy:   actor,
	}
	if err := s.tasks.CreateTask(ctx, task, delta.Final); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.recordActivity(ctx, actor, task.ID, "task_created", task.Title)
	s.dispatcher.Fanout(ctx,
		assign.AssignedRecipients(delta, actor),
		fmt.Sprintf("You have been assigned to task '%s'", task.Title),
		store.TypeAssignment,
		taskContext(task.ID),
	)
	return task, nil
}

func (s *TaskService) Task(ctx context.Context, id int64) (*store.Task, []int64, error) {
	task, err := s.tasks.Task(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	assignees, err := s.tasks.TaskAssignees(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return task, assignees, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, actor, taskID int64, in UpdateTaskInput) (*store.Task, error) {
	task, err := s.tasks.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	current, err := s.tasks.TaskAssignees(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("update task %d: %w", taskID, err)
	}

	desired := current
	if in.Assignees != nil {
		desired = *in.Assignees
	}
	delta := assign.Diff(current, desired)
	if err := s.tasks.ApplyAssigneeDelta(ctx, taskID, delta.ToAdd, delta.ToRemove); err != nil {
		return nil, fmt.Errorf("sync assignees for task %d: %w", taskID, err)
	}

	s.recordActivity(ctx, actor, taskID, "task_updated", task.Title)

	// Newly added assignees get the assignment notification; everyone who
	// was already on the task gets the generic update. The two sets are
	// disjoint, and the actor appears in neither.
	s.dispatcher.Fanout(ctx,
		assign.AssignedRecipients(delta, actor),
		fmt.Sprintf("You have been assigned to task '%s'", task.Title),
		store.TypeAssignment,
		taskContext(taskID),
	)
	s.dispatcher.Fanout(ctx,
		assign.UpdateRecipients(delta, actor),
		fmt.Sprintf("Task '%s' was updated", task.Title),
		store.TypeTaskUpdate,
		taskContext(taskID),
	)
	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, actor, taskID int64) error {
	task, err := s.tasks.Task(ctx, taskID)
	if err != nil {
		return err
	}
	// Snapshot the recipients before the cascade wipes the relation.
	assignees, err := s.tasks.TaskAssignees(ctx, taskID)
	if err != nil {
		return err
	}

	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("delete task %d: %w", taskID, err)
	}

	s.recordActivity(ctx, actor, taskID, "task_deleted", task.Title)
	s.dispatcher.Fanout(ctx,
		assign.Dedupe(assignees, actor),
		fmt.Sprintf("Task '%s' was deleted", task.Title),
		store.TypeTaskUpdate,
		taskContext(taskID),
	)
	return nil
}

func (s *TaskService) AddComment(ctx context.Context, actor, taskID int64, content string) (*store.Comment, error) {
	task, err := s.tasks.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	assignees, err := s.tasks.TaskAssignees(ctx, taskID)
	if err != nil {
		return nil, err
	}

	comment := &store.Comment{TaskID: taskID, UserID: actor, Content: content}
	if err := s.tasks.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("add comment to task %d: %w", taskID, err)
	}

	s.recordActivity(ctx, actor, taskID, "comment_added", content)

	// Creator plus current assignees, excluding whoever commented.
	recipients := assign.Dedupe(append([]int64{task.CreatedBy}, assignees...), actor)
	s.dispatcher.Fanout(ctx,
		recipients,
		fmt.Sprintf("New comment on task '%s'", task.Title),
		store.TypeComment,
		taskContext(taskID),
	)
	return comment, nil
}

// recordActivity appends an audit record. Audit failures are logged, not
// propagated; the mutation already committed.
func (s *TaskService) recordActivity(ctx context.Context, actor, taskID int64, action, details string) {
	a := &store.Activity{UserID: actor, TaskID: taskID, Action: action, Details: details}
	if err := s.activities.AppendActivity(ctx, a); err != nil {
		s.logger.Error("Failed to append activity record",
			slog.Int64("taskID", taskID),
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

func taskContext(taskID int64) string {
	raw, _ := json.Marshal(map[string]int64{"taskId": taskID})
	return string(raw)
}
