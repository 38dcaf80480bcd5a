package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
	"github.com/fyrsmithlabs/orctasks/internal/ledger/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []ledger.Change
}

func (r *recordingNotifier) HistoryAppended(_ context.Context, c ledger.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

type fixture struct {
	svc      *ledger.Service
	store    *sqlite.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	n := &recordingNotifier{}
	svc := ledger.NewService(store, ledger.WithClock(clock), ledger.WithNotifier(n))

	_, err = svc.RegisterRepository(ctx, "r1", "/src/r1", "")
	require.NoError(t, err)
	_, err = svc.RegisterWorktree(ctx, ledger.WorktreeInput{Name: "w1", Repository: "r1", Path: "/src/worktrees/w1"})
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, notifier: n}
}

func (f *fixture) history(t *testing.T, id int64) []ledger.HistoryEntry {
	t.Helper()
	h, err := f.store.History(context.Background(), id)
	require.NoError(t, err)
	return h
}

func TestService_CreateThenUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, wt, err := f.svc.CreateTask(ctx, "orchestrator", ledger.CreateTaskInput{Title: "Fix bug", WorktreeName: "w1"})
	require.NoError(t, err)
	assert.Equal(t, "w1", wt.Name)
	assert.Equal(t, ledger.StatusInvestigating, task.Status)
	assert.Equal(t, ledger.PriorityMedium, task.Priority)
	assert.Equal(t, "orchestrator", task.CreatedBy)
	assert.Equal(t, "implementer", task.AssignedAgent)

	h := f.history(t, task.ID)
	require.Len(t, h, 1)
	assert.Equal(t, ledger.ActionCreated, h[0].Action)
	assert.Equal(t, "investigating", h[0].NewValue)
	assert.Equal(t, "orchestrator", h[0].AgentID)

	res, err := f.svc.UpdateTask(ctx, "implementer_w1", ledger.UpdateTaskInput{TaskID: task.ID, Status: "in_progress", Notes: "started"})
	require.NoError(t, err)
	assert.True(t, res.StatusChanged())
	assert.False(t, res.PriorityChanged())
	assert.Equal(t, ledger.StatusInProgress, res.Task.Status)

	h = f.history(t, task.ID)
	require.Len(t, h, 2)
	assert.Equal(t, ledger.ActionStatusChanged, h[1].Action)
	assert.Equal(t, "investigating", h[1].OldValue)
	assert.Equal(t, "in_progress", h[1].NewValue)
	assert.Equal(t, "started", h[1].Notes)
	assert.Equal(t, "implementer_w1", h[1].AgentID)

	stored, err := f.svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusInProgress, stored.Status)
	assert.Len(t, stored.History, 2)

	assert.Len(t, f.notifier.changes, 2)
	assert.Equal(t, "w1", f.notifier.changes[1].Worktree)
}

func TestService_UpdateTask_HistoryRows(t *testing.T) {
	tests := []struct {
		name    string
		input   ledger.UpdateTaskInput
		actions []string
		notes   []string
	}{
		{
			name:    "same status without notes is a no-op",
			input:   ledger.UpdateTaskInput{Status: "investigating"},
			actions: nil,
		},
		{
			name:    "same status with notes adds notes row",
			input:   ledger.UpdateTaskInput{Status: "investigating", Notes: "still looking"},
			actions: []string{ledger.ActionNotesAdded},
			notes:   []string{"still looking"},
		},
		{
			name:    "status and priority produce two rows",
			input:   ledger.UpdateTaskInput{Status: "blocked", Priority: "urgent"},
			actions: []string{ledger.ActionStatusChanged, ledger.ActionPriorityChanged},
			notes:   []string{"", "Priority updated"},
		},
		{
			name:    "priority with notes",
			input:   ledger.UpdateTaskInput{Priority: "high", Notes: "customer impact"},
			actions: []string{ledger.ActionPriorityChanged},
			notes:   []string{"Priority updated - customer impact"},
		},
		{
			name:    "notes only",
			input:   ledger.UpdateTaskInput{Notes: "checked logs"},
			actions: []string{ledger.ActionNotesAdded},
			notes:   []string{"checked logs"},
		},
		{
			name:    "nothing supplied",
			input:   ledger.UpdateTaskInput{},
			actions: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			task, _, err := f.svc.CreateTask(ctx, "orchestrator", ledger.CreateTaskInput{Title: "t", WorktreeName: "w1"})
			require.NoError(t, err)

			in := tt.input
			in.TaskID = task.ID
			res, err := f.svc.UpdateTask(ctx, "implementer_w1", in)
			require.NoError(t, err)
			require.Len(t, res.Entries, len(tt.actions))

			added := f.history(t, task.ID)[1:]
			require.Len(t, added, len(tt.actions))
			for i, action := range tt.actions {
				assert.Equal(t, action, added[i].Action)
				assert.Equal(t, tt.notes[i], added[i].Notes)
			}
		})
	}
}

func TestService_UpdateTask_StatusChangeCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _, err := f.svc.CreateTask(ctx, "orchestrator", ledger.CreateTaskInput{Title: "t", WorktreeName: "w1"})
	require.NoError(t, err)

	sequence := []string{"in_progress", "in_progress", "blocked", "in_progress", "completed", "completed", "investigating"}
	changing := 0
	prev := "investigating"
	for _, s := range sequence {
		if s != prev {
			changing++
		}
		prev = s
		_, err := f.svc.UpdateTask(ctx, "implementer_w1", ledger.UpdateTaskInput{TaskID: task.ID, Status: s})
		require.NoError(t, err)
	}

	count := 0
	for _, e := range f.history(t, task.ID) {
		if e.Action == ledger.ActionStatusChanged {
			count++
		}
	}
	assert.Equal(t, changing, count)
}

func TestService_ValidationRejectsBeforeWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.CreateTask(ctx, "orchestrator", ledger.CreateTaskInput{Title: "  ", WorktreeName: "w1"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, _, err = f.svc.CreateTask(ctx, "orchestrator", ledger.CreateTaskInput{Title: "t", WorktreeName: "w1", Priority: "critical"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Contains(t, err.Error(), "invalid priority 'critical'")

	task, _, err := f.svc.CreateTask(ctx, "orchestrator", ledger.CreateTaskInput{Title: "t", WorktreeName: "w1"})
	require.NoError(t, err)

	_, err = f.svc.UpdateTask(ctx, "implementer_w1", ledger.UpdateTaskInput{TaskID: task.ID, Status: "done", Notes: "x"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Len(t, f.history(t, task.ID), 1)

	_, err = f.svc.UpdateTask(ctx, "", ledger.UpdateTaskInput{TaskID: task.ID, Notes: "x"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestService_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.CreateTask(ctx, "orchestrator", ledger.CreateTaskInput{Title: "t", WorktreeName: "nope"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.EqualError(t, err, "Worktree 'nope' not found")

	_, err = f.svc.UpdateTask(ctx, "orchestrator", ledger.UpdateTaskInput{TaskID: 99, Status: "blocked"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.EqualError(t, err, "Task #99 not found")

	tasks, err := f.store.ListTasks(ctx, ledger.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestService_ListTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []ledger.CreateTaskInput{
		{Title: "u1", Priority: "urgent"},
		{Title: "h1", Priority: "high"},
		{Title: "m1"},
		{Title: "l1", Priority: "low"},
		{Title: "u2", Priority: "urgent"},
		{Title: "m2", Priority: "medium"},
	} {
		in.WorktreeName = "w1"
		_, _, err := f.svc.CreateTask(ctx, "orchestrator", in)
		require.NoError(t, err)
	}

	tasks, wt, err := f.svc.ListTasks(ctx, "w1", "")
	require.NoError(t, err)
	assert.Equal(t, "r1", wt.RepositoryName)

	var titles []string
	for _, task := range tasks {
		titles = append(titles, task.Title)
		assert.Len(t, task.History, 1)
	}
	assert.Equal(t, []string{"l1", "m1", "m2", "h1", "u1", "u2"}, titles)

	blocked, _, err := f.svc.ListTasks(ctx, "w1", "blocked")
	require.NoError(t, err)
	assert.Empty(t, blocked)

	_, _, err = f.svc.ListTasks(ctx, "", "")
	assert.True(t, errors.Is(err, ledger.ErrNoContext))

	_, _, err = f.svc.ListTasks(ctx, "w1", "paused")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestService_RegisterConflictsAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterRepository(ctx, "r1", "/elsewhere", "main")
	assert.ErrorIs(t, err, ledger.ErrConflict)

	_, err = f.svc.RegisterWorktree(ctx, ledger.WorktreeInput{Name: "w1", Repository: "r1"})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	_, err = f.svc.RegisterWorktree(ctx, ledger.WorktreeInput{Name: "w2", Repository: "missing"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.svc.RegisterWorktree(ctx, ledger.WorktreeInput{Name: "w2", Repository: "r1", Status: "gone"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	require.NoError(t, f.svc.SetWorktreeStatus(ctx, "w1", "paused"))
	names, err := f.svc.ActiveWorktreeNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	assert.ErrorIs(t, f.svc.SetWorktreeStatus(ctx, "nope", "active"), ledger.ErrNotFound)
}

func TestService_RegisterRejectsUnsafeNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterRepository(ctx, "a/b", "/src/ab", "")
	require.ErrorIs(t, err, ledger.ErrValidation)
	assert.Contains(t, err.Error(), "invalid name")

	_, err = f.svc.RegisterRepository(ctx, "r2", "/src/../etc", "")
	require.ErrorIs(t, err, ledger.ErrValidation)
	assert.Contains(t, err.Error(), "invalid path")

	_, err = f.svc.RegisterWorktree(ctx, ledger.WorktreeInput{Name: "my wt", Repository: "r1"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	wt, err := f.svc.RegisterWorktree(ctx, ledger.WorktreeInput{Name: "w3", Repository: "r1", Path: "/src/worktrees//w3/"})
	require.NoError(t, err)
	assert.Equal(t, "/src/worktrees/w3", wt.Path)
}

func TestPriorityRank(t *testing.T) {
	assert.Equal(t, 0, ledger.PriorityLow.Rank())
	assert.Equal(t, 3, ledger.PriorityUrgent.Rank())
	assert.Equal(t, -1, ledger.Priority("critical").Rank())
	assert.Less(t, ledger.PriorityMedium.Rank(), ledger.PriorityHigh.Rank())
}
