package sqlite

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
)

func (s *Store) CreateRepository(ctx context.Context, repo *ledger.Repository) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO repositories(name, path, primary_branch, created_at, updated_at) VALUES(?, ?, ?, ?, ?)`,
		repo.Name, repo.Path, repo.PrimaryBranch, toUnix(repo.CreatedAt), toUnix(repo.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("repository %q: %w", repo.Name, ledger.ErrConflict)
	}
	if err != nil {
		return err
	}
	repo.ID, err = res.LastInsertId()
	return err
}

const repositoryColumns = `id, name, path, primary_branch, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(row scanner) (*ledger.Repository, error) {
	var (
		r                ledger.Repository
		created, updated int64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Path, &r.PrimaryBranch, &created, &updated); err != nil {
		return nil, err
	}
	r.CreatedAt, r.UpdatedAt = fromUnix(created), fromUnix(updated)
	return &r, nil
}

func (s *Store) RepositoryByName(ctx context.Context, name string) (*ledger.Repository, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+repositoryColumns+` FROM repositories WHERE name = ?`, name)
	r, err := scanRepository(row)
	if err != nil {
		return nil, notFoundIfNoRows(err, "Repository", "'"+name+"'")
	}
	return r, nil
}

func (s *Store) ListRepositories(ctx context.Context) ([]ledger.Repository, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+repositoryColumns+` FROM repositories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeleteRepository removes a repository and, through cascades, its
// worktrees, tasks and history.
func (s *Store) DeleteRepository(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.NotFound("Repository", fmt.Sprintf("#%d", id))
	}
	return nil
}
