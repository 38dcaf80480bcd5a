package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/sanitize"
	"go.uber.org/zap"
)

// Service applies ledger operations on top of a Store.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the receiver of committed history rows.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: nopNotifier{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store for read-side consumers.
func (s *Service) Store() Store { return s.store }

// CreateTaskInput holds createTask arguments. Empty Priority means medium.
type CreateTaskInput struct {
	Title        string
	WorktreeName string
	Description  string
	Priority     string
}

// CreateTask creates an investigating task in the named worktree and records
// a created history row attributed to agentID.
func (s *Service) CreateTask(ctx context.Context, agentID string, in CreateTaskInput) (*Task, *Worktree, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, nil, required("title")
	}
	if strings.TrimSpace(in.WorktreeName) == "" {
		return nil, nil, required("worktree_name")
	}
	priority := PriorityMedium
	if in.Priority != "" {
		p, err := ParsePriority(in.Priority)
		if err != nil {
			return nil, nil, err
		}
		priority = p
	}
	if agentID == "" {
		return nil, nil, required("agent_id")
	}

	wt, err := s.store.WorktreeByName(ctx, in.WorktreeName)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	task := &Task{
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		Status:        StatusInvestigating,
		Priority:      priority,
		WorktreeID:    wt.ID,
		WorktreeName:  wt.Name,
		CreatedBy:     TaskCreator,
		AssignedAgent: TaskAssignee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	entry := HistoryEntry{
		Action:    ActionCreated,
		NewValue:  string(StatusInvestigating),
		Notes:     "Task created by " + TaskCreator,
		AgentID:   agentID,
		CreatedAt: now,
	}

	err = s.store.WithinTx(ctx, func(tx Store) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		entry.TaskID = task.ID
		return tx.AppendHistory(ctx, &entry)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create task: %w", err)
	}
	task.History = []HistoryEntry{entry}

	s.logger.Info("task created",
		zap.Int64("task_id", task.ID),
		zap.String("worktree", wt.Name),
		zap.String("priority", string(priority)),
		zap.String("agent_id", agentID),
	)
	s.notify(ctx, wt.Name, task, entry)
	return task, wt, nil
}

// UpdateTaskInput holds updateTask arguments. Empty strings mean "not supplied".
type UpdateTaskInput struct {
	TaskID   int64
	Status   string
	Priority string
	Notes    string
}

// UpdateResult reports what UpdateTask did.
type UpdateResult struct {
	Task        *Task
	OldStatus   Status
	OldPriority Priority
	Entries     []HistoryEntry
}

// StatusChanged reports whether the call changed the status.
func (r *UpdateResult) StatusChanged() bool { return r.Task.Status != r.OldStatus }

// PriorityChanged reports whether the call changed the priority.
func (r *UpdateResult) PriorityChanged() bool { return r.Task.Priority != r.OldPriority }

// UpdateTask applies the supplied changes, writing one history row per field
// that actually changes. Notes supplied without any field change produce a
// single notes_added row. A call that changes nothing and carries no notes
// writes nothing.
//
// The current values are read before the write transaction starts, so two
// concurrent updates of the same task may both record a transition from the
// same old value; the stored status is whichever write commits last. One
// agent per worktree makes this acceptable.
func (s *Service) UpdateTask(ctx context.Context, agentID string, in UpdateTaskInput) (*UpdateResult, error) {
	var (
		newStatus   Status
		newPriority Priority
		err         error
	)
	if in.Status != "" {
		if newStatus, err = ParseStatus(in.Status); err != nil {
			return nil, err
		}
	}
	if in.Priority != "" {
		if newPriority, err = ParsePriority(in.Priority); err != nil {
			return nil, err
		}
	}
	if agentID == "" {
		return nil, required("agent_id")
	}
	notes := strings.TrimSpace(in.Notes)

	task, err := s.store.TaskByID(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{OldStatus: task.Status, OldPriority: task.Priority}
	now := s.now()
	changes := TaskChanges{UpdatedAt: now}
	var entries []HistoryEntry

	if newStatus != "" && newStatus != task.Status {
		changes.Status = &newStatus
		entries = append(entries, HistoryEntry{
			TaskID:   task.ID,
			Action:   ActionStatusChanged,
			OldValue: string(task.Status),
			NewValue: string(newStatus),
			Notes:    notes,
		})
	}
	if newPriority != "" && newPriority != task.Priority {
		changes.Priority = &newPriority
		prioNotes := "Priority updated"
		if notes != "" {
			prioNotes += " - " + notes
		}
		entries = append(entries, HistoryEntry{
			TaskID:   task.ID,
			Action:   ActionPriorityChanged,
			OldValue: string(task.Priority),
			NewValue: string(newPriority),
			Notes:    prioNotes,
		})
	}
	if len(entries) == 0 && notes != "" {
		entries = append(entries, HistoryEntry{
			TaskID: task.ID,
			Action: ActionNotesAdded,
			Notes:  notes,
		})
	}

	if len(entries) == 0 {
		result.Task = task
		return result, nil
	}

	for i := range entries {
		entries[i].AgentID = agentID
		entries[i].CreatedAt = now
	}

	err = s.store.WithinTx(ctx, func(tx Store) error {
		if changes.Status != nil || changes.Priority != nil {
			if err := tx.UpdateTask(ctx, task.ID, changes); err != nil {
				return err
			}
		}
		for i := range entries {
			if err := tx.AppendHistory(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", task.ID, err)
	}

	if changes.Status != nil {
		task.Status = *changes.Status
	}
	if changes.Priority != nil {
		task.Priority = *changes.Priority
	}
	task.UpdatedAt = now
	result.Task = task
	result.Entries = entries

	s.logger.Info("task updated",
		zap.Int64("task_id", task.ID),
		zap.Int("history_rows", len(entries)),
		zap.String("agent_id", agentID),
	)
	for _, e := range entries {
		s.notify(ctx, task.WorktreeName, task, e)
	}
	return result, nil
}

// ListTasks returns the tasks of worktreeName ordered by priority rank
// ascending, each with its history loaded. An empty worktreeName means the
// caller has no worktree context. An empty result is not an error.
func (s *Service) ListTasks(ctx context.Context, worktreeName, status string) ([]Task, *Worktree, error) {
	if worktreeName == "" {
		return nil, nil, ErrNoContext
	}
	filter := TaskFilter{}
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, nil, err
		}
		filter.Status = st
	}

	wt, err := s.store.WorktreeByName(ctx, worktreeName)
	if err != nil {
		return nil, nil, err
	}
	filter.WorktreeID = wt.ID

	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("list tasks: %w", err)
	}
	for i := range tasks {
		if tasks[i].History, err = s.store.History(ctx, tasks[i].ID); err != nil {
			return nil, nil, fmt.Errorf("load history for task %d: %w", tasks[i].ID, err)
		}
	}
	return tasks, wt, nil
}

// GetTask returns one task with its history.
func (s *Service) GetTask(ctx context.Context, id int64) (*Task, error) {
	task, err := s.store.TaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.History, err = s.store.History(ctx, id); err != nil {
		return nil, fmt.Errorf("load history for task %d: %w", id, err)
	}
	return task, nil
}

// RegisterRepository creates a repository. Empty primaryBranch means master.
func (s *Service) RegisterRepository(ctx context.Context, name, path, primaryBranch string) (*Repository, error) {
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if name == "" {
		return nil, required("name")
	}
	if path == "" {
		return nil, required("path")
	}
	if err := sanitize.ValidateSegment(name); err != nil {
		return nil, invalidValue("name", err)
	}
	path, err := sanitize.ValidatePath(path)
	if err != nil {
		return nil, invalidValue("path", err)
	}
	if primaryBranch == "" {
		primaryBranch = DefaultPrimaryBranch
	}
	now := s.now()
	repo := &Repository{Name: name, Path: path, PrimaryBranch: primaryBranch, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("register repository %q: %w", name, err)
	}
	return repo, nil
}

// WorktreeInput describes a worktree to register.
type WorktreeInput struct {
	Name       string
	Repository string
	Path       string
	Branch     string
	Status     string
}

// RegisterWorktree creates a worktree under an existing repository.
func (s *Service) RegisterWorktree(ctx context.Context, in WorktreeInput) (*Worktree, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, required("name")
	}
	if err := sanitize.ValidateSegment(name); err != nil {
		return nil, invalidValue("name", err)
	}
	path := in.Path
	if path != "" {
		var err error
		if path, err = sanitize.ValidatePath(path); err != nil {
			return nil, invalidValue("path", err)
		}
	}
	status, err := ParseWorktreeStatus(in.Status)
	if err != nil {
		return nil, err
	}
	repo, err := s.store.RepositoryByName(ctx, in.Repository)
	if err != nil {
		return nil, err
	}
	now := s.now()
	wt := &Worktree{
		Name:           name,
		RepositoryID:   repo.ID,
		RepositoryName: repo.Name,
		Path:           path,
		Branch:         in.Branch,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateWorktree(ctx, wt); err != nil {
		return nil, fmt.Errorf("register worktree %q: %w", name, err)
	}
	return wt, nil
}

// SetWorktreeStatus moves a worktree between active, paused and archived.
func (s *Service) SetWorktreeStatus(ctx context.Context, name, status string) error {
	st, err := ParseWorktreeStatus(status)
	if err != nil {
		return err
	}
	return s.store.SetWorktreeStatus(ctx, name, st)
}

// Worktree looks a worktree up by name.
func (s *Service) Worktree(ctx context.Context, name string) (*Worktree, error) {
	return s.store.WorktreeByName(ctx, name)
}

// ActiveWorktreeNames lists the names of active worktrees.
func (s *Service) ActiveWorktreeNames(ctx context.Context) ([]string, error) {
	wts, err := s.store.ListWorktrees(ctx, WorktreeActive)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(wts))
	for i, wt := range wts {
		names[i] = wt.Name
	}
	return names, nil
}

func (s *Service) notify(ctx context.Context, worktree string, task *Task, entry HistoryEntry) {
	snapshot := *task
	snapshot.History = nil
	s.notifier.HistoryAppended(ctx, Change{Worktree: worktree, Task: snapshot, Entry: entry})
}

// TaskRef formats a task id the way user-facing messages show it.
func TaskRef(id int64) string {
	return "#" + strconv.FormatInt(id, 10)
}
