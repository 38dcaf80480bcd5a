package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
)

var timeNow = time.Now

// priorityRank mirrors ledger.Priority.Rank so ordering happens in SQL.
const priorityRank = `CASE t.priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 WHEN 'urgent' THEN 3 END`

func (s *Store) CreateTask(ctx context.Context, task *ledger.Task) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO tasks(title, description, status, priority, worktree_id, created_by, assigned_agent, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Title, nullString(task.Description), string(task.Status), string(task.Priority), task.WorktreeID,
		nullString(task.CreatedBy), nullString(task.AssignedAgent), toUnix(task.CreatedAt), toUnix(task.UpdatedAt))
	if err != nil {
		return err
	}
	task.ID, err = res.LastInsertId()
	return err
}

const taskSelect = `SELECT t.id, t.title, t.description, t.status, t.priority, t.worktree_id, w.name,
  t.created_by, t.assigned_agent, t.created_at, t.updated_at
FROM tasks t JOIN worktrees w ON w.id = t.worktree_id`

func scanTask(row scanner) (*ledger.Task, error) {
	var (
		t                       ledger.Task
		desc, creator, assignee sql.NullString
		status, priority        string
		created, updated        int64
	)
	if err := row.Scan(&t.ID, &t.Title, &desc, &status, &priority, &t.WorktreeID, &t.WorktreeName,
		&creator, &assignee, &created, &updated); err != nil {
		return nil, err
	}
	t.Description = desc.String
	t.Status = ledger.Status(status)
	t.Priority = ledger.Priority(priority)
	t.CreatedBy = creator.String
	t.AssignedAgent = assignee.String
	t.CreatedAt, t.UpdatedAt = fromUnix(created), fromUnix(updated)
	return &t, nil
}

func (s *Store) TaskByID(ctx context.Context, id int64) (*ledger.Task, error) {
	t, err := scanTask(s.q.QueryRowContext(ctx, taskSelect+` WHERE t.id = ?`, id))
	if err != nil {
		return nil, notFoundIfNoRows(err, "Task", ledger.TaskRef(id))
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, filter ledger.TaskFilter) ([]ledger.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.WorktreeID != 0 {
		where = append(where, "t.worktree_id = ?")
		args = append(args, filter.WorktreeID)
	}
	if filter.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		where = append(where, "t.priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.ActiveWorktreesOnly {
		where = append(where, "w.status = 'active'")
	}

	query := taskSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + priorityRank + ", t.id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateTask writes each supplied field in place. Concurrent writers are
// last-writer-wins per row.
func (s *Store) UpdateTask(ctx context.Context, id int64, changes ledger.TaskChanges) error {
	sets := []string{"updated_at = ?"}
	args := []any{toUnix(changes.UpdatedAt)}
	if changes.Status != nil {
		if !changes.Status.Valid() {
			return fmt.Errorf("status %q: %w", *changes.Status, ledger.ErrValidation)
		}
		sets = append(sets, "status = ?")
		args = append(args, string(*changes.Status))
	}
	if changes.Priority != nil {
		if !changes.Priority.Valid() {
			return fmt.Errorf("priority %q: %w", *changes.Priority, ledger.ErrValidation)
		}
		sets = append(sets, "priority = ?")
		args = append(args, string(*changes.Priority))
	}
	args = append(args, id)

	res, err := s.q.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.NotFound("Task", ledger.TaskRef(id))
	}
	return nil
}
