// Package sqlitestore implements the store interfaces on SQLite via the pure
// Go modernc.org/sqlite driver.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/taskwire/taskwire/internal/store"
)

// Store implements store.NotificationStore, store.TaskStore and
// store.ActivityStore over one SQLite database.
type Store struct {
	db *sql.DB
}

var (
	_ store.NotificationStore = (*Store)(nil)
	_ store.TaskStore         = (*Store)(nil)
	_ store.ActivityStore     = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- Notifications ---

func (s *Store) CreateNotification(ctx context.Context, n *store.Notification) error {
	n.IsRead = false
	n.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, message, type, context, is_read, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		n.UserID, n.Message, n.Type, nullString(n.Context), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read notification id: %w", err)
	}
	return nil
}

func (s *Store) NotificationsForUser(ctx context.Context, userID int64) ([]store.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, message, type, context, is_read, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]store.Notification, 0)
	for rows.Next() {
		var n store.Notification
		var context sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &context, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Context = context.String
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

// --- Tasks ---

func (s *Store) CreateTask(ctx context.Context, t *store.Task, assignees []int64) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = "TODO"
	}
	if t.Priority == "" {
		t.Priority = "MEDIUM"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tasks (title, description, status, priority, due_date, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Status, t.Priority, nullTime(t.DueDate), t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read task id: %w", err)
	}

	for _, userID := range assignees {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_assignments (task_id, user_id) VALUES (?, ?)`,
			t.ID, userID,
		); err != nil {
			return fmt.Errorf("failed to assign user %d: %w", userID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Task(ctx context.Context, id int64) (*store.Task, error) {
	var t store.Task
	var dueDate sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, status, priority, due_date, created_by, created_at, updated_at
		 FROM tasks WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &dueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	return &t, nil
}

func (s *Store) TaskAssignees(ctx context.Context, taskID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM task_assignments WHERE task_id = ? ORDER BY user_id`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignees: %w", err)
	}
	defer rows.Close()

	assignees := make([]int64, 0)
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		assignees = append(assignees, userID)
	}
	return assignees, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, t *store.Task) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, t.Status, t.Priority, nullTime(t.DueDate), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ApplyAssigneeDelta(ctx context.Context, taskID int64, add, remove []int64) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, userID := range remove {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM task_assignments WHERE task_id = ? AND user_id = ?`,
			taskID, userID,
		); err != nil {
			return fmt.Errorf("failed to unassign user %d: %w", userID, err)
		}
	}
	for _, userID := range add {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_assignments (task_id, user_id) VALUES (?, ?)`,
			taskID, userID,
		); err != nil {
			return fmt.Errorf("failed to assign user %d: %w", userID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateComment(ctx context.Context, c *store.Comment) error {
	c.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (task_id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
		c.TaskID, c.UserID, c.Content, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

// --- Activities ---

func (s *Store) AppendActivity(ctx context.Context, a *store.Activity) error {
	a.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (user_id, task_id, action, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.UserID, nullID(a.TaskID), a.Action, nullString(a.Details), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// --- helpers ---

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
