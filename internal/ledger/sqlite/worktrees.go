package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
)

func (s *Store) CreateWorktree(ctx context.Context, wt *ledger.Worktree) error {
	status := wt.Status
	if status == "" {
		status = ledger.WorktreeActive
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO worktrees(name, repository_id, path, branch, status, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		wt.Name, wt.RepositoryID, wt.Path, nullString(wt.Branch), string(status),
		toUnix(wt.CreatedAt), toUnix(wt.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("worktree %q: %w", wt.Name, ledger.ErrConflict)
	}
	if err != nil {
		return err
	}
	wt.Status = status
	wt.ID, err = res.LastInsertId()
	return err
}

const worktreeSelect = `SELECT w.id, w.name, w.repository_id, r.name, w.path, w.branch, w.status, w.created_at, w.updated_at
FROM worktrees w JOIN repositories r ON r.id = w.repository_id`

func scanWorktree(row scanner) (*ledger.Worktree, error) {
	var (
		w                ledger.Worktree
		branch           sql.NullString
		status           string
		created, updated int64
	)
	if err := row.Scan(&w.ID, &w.Name, &w.RepositoryID, &w.RepositoryName, &w.Path, &branch, &status, &created, &updated); err != nil {
		return nil, err
	}
	w.Branch = branch.String
	w.Status = ledger.WorktreeStatus(status)
	w.CreatedAt, w.UpdatedAt = fromUnix(created), fromUnix(updated)
	return &w, nil
}

func (s *Store) WorktreeByName(ctx context.Context, name string) (*ledger.Worktree, error) {
	w, err := scanWorktree(s.q.QueryRowContext(ctx, worktreeSelect+` WHERE w.name = ?`, name))
	if err != nil {
		return nil, notFoundIfNoRows(err, "Worktree", "'"+name+"'")
	}
	return w, nil
}

func (s *Store) ListWorktrees(ctx context.Context, status ledger.WorktreeStatus) ([]ledger.Worktree, error) {
	query, args := worktreeSelect, []any{}
	if status != "" {
		query += ` WHERE w.status = ?`
		args = append(args, string(status))
	}
	rows, err := s.q.QueryContext(ctx, query+` ORDER BY w.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Worktree
	for rows.Next() {
		w, err := scanWorktree(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (s *Store) SetWorktreeStatus(ctx context.Context, name string, status ledger.WorktreeStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE worktrees SET status = ?, updated_at = ? WHERE name = ?`,
		string(status), toUnix(timeNow()), name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.NotFound("Worktree", "'"+name+"'")
	}
	return nil
}
