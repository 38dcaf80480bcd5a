package ledger

import "context"

// Store is the persistence contract the ledger relies on. Implementations
// must enforce foreign keys, cascade deletes, and unique repository and
// worktree names, returning ErrConflict on duplicates and a NotFoundError
// for missing rows.
type Store interface {
	CreateRepository(ctx context.Context, repo *Repository) error
	RepositoryByName(ctx context.Context, name string) (*Repository, error)
	ListRepositories(ctx context.Context) ([]Repository, error)
	DeleteRepository(ctx context.Context, id int64) error

	CreateWorktree(ctx context.Context, wt *Worktree) error
	WorktreeByName(ctx context.Context, name string) (*Worktree, error)
	// ListWorktrees returns worktrees ordered by name. Empty status lists all.
	ListWorktrees(ctx context.Context, status WorktreeStatus) ([]Worktree, error)
	SetWorktreeStatus(ctx context.Context, name string, status WorktreeStatus) error

	CreateTask(ctx context.Context, task *Task) error
	TaskByID(ctx context.Context, id int64) (*Task, error)
	// ListTasks orders by priority rank ascending, then insertion order.
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	UpdateTask(ctx context.Context, id int64, changes TaskChanges) error

	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	// History returns a task's entries oldest first.
	History(ctx context.Context, taskID int64) ([]HistoryEntry, error)
	// LatestHistory returns the newest entry per task, by created time with
	// ties going to the later insert. Tasks without history are absent.
	LatestHistory(ctx context.Context, taskIDs []int64) (map[int64]HistoryEntry, error)

	// WithinTx runs fn against a Store bound to one transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Close() error
}

// Notifier is told about every history row after it is committed.
type Notifier interface {
	HistoryAppended(ctx context.Context, change Change)
}

// Change describes one committed history row.
type Change struct {
	Worktree string
	Task     Task
	Entry    HistoryEntry
}

type nopNotifier struct{}

func (nopNotifier) HistoryAppended(context.Context, Change) {}
