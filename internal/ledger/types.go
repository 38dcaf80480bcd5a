package ledger

import "time"

// Status is the lifecycle label of a Task.
type Status string

const (
	StatusInvestigating Status = "investigating"
	StatusInProgress    Status = "in_progress"
	StatusBlocked       Status = "blocked"
	StatusCompleted     Status = "completed"
)

// Statuses lists every valid task status in display order.
var Statuses = []Status{StatusInvestigating, StatusInProgress, StatusBlocked, StatusCompleted}

// Valid reports whether s is one of Statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus validates raw against Statuses.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", invalidEnum("status", raw, StatusStrings())
	}
	return s, nil
}

// StatusStrings returns Statuses as plain strings.
func StatusStrings() []string {
	out := make([]string, len(Statuses))
	for i, s := range Statuses {
		out[i] = string(s)
	}
	return out
}

// Priority orders tasks by severity.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every valid priority, least severe first.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Rank is the sort key of p: low=0 through urgent=3, -1 if invalid.
func (p Priority) Rank() int {
	for i, v := range Priorities {
		if p == v {
			return i
		}
	}
	return -1
}

// Valid reports whether p is one of Priorities.
func (p Priority) Valid() bool { return p.Rank() >= 0 }

// ParsePriority validates raw against Priorities.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(raw)
	if !p.Valid() {
		return "", invalidEnum("priority", raw, PriorityStrings())
	}
	return p, nil
}

// PriorityStrings returns Priorities as plain strings.
func PriorityStrings() []string {
	out := make([]string, len(Priorities))
	for i, p := range Priorities {
		out[i] = string(p)
	}
	return out
}

// WorktreeStatus is the lifecycle of a Worktree.
type WorktreeStatus string

const (
	WorktreeActive   WorktreeStatus = "active"
	WorktreePaused   WorktreeStatus = "paused"
	WorktreeArchived WorktreeStatus = "archived"
)

// ParseWorktreeStatus validates raw. Empty means active.
func ParseWorktreeStatus(raw string) (WorktreeStatus, error) {
	switch s := WorktreeStatus(raw); s {
	case "":
		return WorktreeActive, nil
	case WorktreeActive, WorktreePaused, WorktreeArchived:
		return s, nil
	}
	return "", invalidEnum("worktree status", raw, []string{"active", "paused", "archived"})
}

// History actions written by Service.
const (
	ActionCreated         = "created"
	ActionStatusChanged   = "status_changed"
	ActionPriorityChanged = "priority_changed"
	ActionNotesAdded      = "notes_added"
)

// Creator and assignee recorded on every new task.
const (
	TaskCreator  = "orchestrator"
	TaskAssignee = "implementer"
)

// DefaultPrimaryBranch is used when a repository is registered without one.
const DefaultPrimaryBranch = "master"

// Repository is a named source-control checkout.
type Repository struct {
	ID            int64
	Name          string
	Path          string
	PrimaryBranch string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Worktree is an isolated checkout of a Repository used by one implementer.
type Worktree struct {
	ID             int64
	Name           string
	RepositoryID   int64
	RepositoryName string
	Path           string
	// Branch overrides detection when set.
	Branch    string
	Status    WorktreeStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentBranch returns the explicit branch, else the branch checked out at
// Path, else "".
func (w *Worktree) CurrentBranch() string {
	if w.Branch != "" {
		return w.Branch
	}
	return DetectBranch(w.Path)
}

// Task is a unit of work scoped to one Worktree.
type Task struct {
	ID            int64
	Title         string
	Description   string
	Status        Status
	Priority      Priority
	WorktreeID    int64
	WorktreeName  string
	CreatedBy     string
	AssignedAgent string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// History is populated by Service.ListTasks and Service.GetTask,
	// oldest first.
	History []HistoryEntry
}

// LastHistory returns the most recent loaded history entry.
func (t *Task) LastHistory() (HistoryEntry, bool) {
	if len(t.History) == 0 {
		return HistoryEntry{}, false
	}
	return t.History[len(t.History)-1], true
}

// HistoryEntry is an immutable audit record. Empty OldValue, NewValue or
// Notes mean the value was absent.
type HistoryEntry struct {
	ID        int64
	TaskID    int64
	Action    string
	OldValue  string
	NewValue  string
	Notes     string
	AgentID   string
	CreatedAt time.Time
}

// TaskFilter narrows Store.ListTasks. Zero values match everything.
type TaskFilter struct {
	WorktreeID int64
	Status     Status
	Priority   Priority
	// ActiveWorktreesOnly restricts results to worktrees whose status is active.
	ActiveWorktreesOnly bool
}

// TaskChanges carries the fields Store.UpdateTask writes. Nil fields are left alone.
type TaskChanges struct {
	Status    *Status
	Priority  *Priority
	UpdatedAt time.Time
}
