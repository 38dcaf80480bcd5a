package aggregator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
	"github.com/fyrsmithlabs/orctasks/internal/ledger/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	svc   *ledger.Service
	store *sqlite.Store
	agg   *Aggregator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	svc := ledger.NewService(store, ledger.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))
	return &env{svc: svc, store: store, agg: New(store)}
}

func (e *env) worktree(t *testing.T, repo, name, branch, status string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.store.RepositoryByName(ctx, repo); err != nil {
		_, err := e.svc.RegisterRepository(ctx, repo, "/src/"+repo, "")
		require.NoError(t, err)
	}
	_, err := e.svc.RegisterWorktree(ctx, ledger.WorktreeInput{Name: name, Repository: repo, Branch: branch, Status: status})
	require.NoError(t, err)
}

func (e *env) task(t *testing.T, wt, title, priority string) int64 {
	t.Helper()
	task, _, err := e.svc.CreateTask(context.Background(), "orchestrator", ledger.CreateTaskInput{Title: title, WorktreeName: wt, Priority: priority})
	require.NoError(t, err)
	return task.ID
}

func (e *env) update(t *testing.T, id int64, status, notes string) {
	t.Helper()
	_, err := e.svc.UpdateTask(context.Background(), "implementer", ledger.UpdateTaskInput{TaskID: id, Status: status, Notes: notes})
	require.NoError(t, err)
}

func TestGlobalStatus_NoActiveWorktrees(t *testing.T) {
	e := newEnv(t)
	e.worktree(t, "intercom", "paused-wt", "", "paused")
	_, err := e.svc.RegisterRepository(context.Background(), "infrastructure", "/src/infra", "")
	require.NoError(t, err)

	report, err := e.agg.GlobalStatus(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"infrastructure", "intercom"}, report.Repositories)
	assert.Equal(t, "🌍 **Global ORC Status**\n\nNo active worktrees found.\n\nAvailable repositories:\n• infrastructure\n• intercom", report.Render())
}

func TestGlobalStatus_Report(t *testing.T) {
	e := newEnv(t)
	e.worktree(t, "r1", "alpha", "main", "")
	e.worktree(t, "r1", "beta", "dev", "")
	e.worktree(t, "r2", "gamma", "x", "")
	e.worktree(t, "r2", "parked", "y", "archived")

	urgent := e.task(t, "alpha", "Outage", "urgent")
	blocked := e.task(t, "alpha", "Waiting on infra", "medium")
	done := e.task(t, "beta", "Shipped", "urgent")
	e.task(t, "parked", "Ignored", "urgent")

	e.update(t, blocked, "blocked", "need creds")
	e.update(t, blocked, "", "still waiting on creds")
	e.update(t, done, "completed", "")

	report, err := e.agg.GlobalStatus(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalActive)
	assert.Equal(t, 1, report.TotalCompleted)
	require.Len(t, report.Urgent, 1)
	assert.Equal(t, urgent, report.Urgent[0].ID)
	require.Len(t, report.Blocked, 1)
	assert.Equal(t, "still waiting on creds", report.Blocked[0].Note)

	want := "🌍 **Global ORC Status**\n\n" +
		"**Summary**: 2 active tasks across 3 worktrees\n\n" +
		"🚨 **Urgent Tasks** (1):\n" +
		"• #1: Outage (alpha)\n\n" +
		"🚫 **Blocked Tasks** (1):\n" +
		"• #2: Waiting on infra - still waiting on creds\n\n" +
		"**alpha** (r1)\n   Branch: main\n   Tasks: 2 active\n" +
		"\n" +
		"**beta** (r1)\n   Branch: dev\n   Tasks: ✅ All complete (1)\n" +
		"\n" +
		"**gamma** (r2)\n   Branch: x\n   Tasks: No tasks\n"
	assert.Equal(t, want, report.Render())
}

func TestGlobalStatus_IncludeCompleted(t *testing.T) {
	e := newEnv(t)
	e.worktree(t, "r1", "alpha", "main", "")
	e.task(t, "alpha", "open", "low")
	done := e.task(t, "alpha", "closed", "low")
	e.update(t, done, "completed", "")

	report, err := e.agg.GlobalStatus(context.Background(), true)
	require.NoError(t, err)
	out := report.Render()
	assert.Contains(t, out, "**Summary**: 1 active tasks across 1 worktrees, 1 completed\n\n")
	assert.Contains(t, out, "Tasks: 1 active, 1 complete\n")
}

func TestGlobalStatus_BlockedWithoutNotes(t *testing.T) {
	e := newEnv(t)
	e.worktree(t, "r1", "alpha", "", "")
	id := e.task(t, "alpha", "stuck", "low")
	e.update(t, id, "blocked", "")

	report, err := e.agg.GlobalStatus(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, report.Render(), "• #1: stuck - No details\n")
	assert.Contains(t, report.Render(), "Branch: unknown\n")
}
