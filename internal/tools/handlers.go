package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/aggregator"
	"github.com/fyrsmithlabs/orctasks/internal/ledger"
)

// ServerBanner is reported by test_tool.
const ServerBanner = "ORC Task Management v1.0.0"

// Deps are the services handlers use.
type Deps struct {
	Ledger     *ledger.Service
	Aggregator *aggregator.Aggregator
	// Now defaults to time.Now.
	Now func() time.Time
}

// Default builds the catalogue of every task operation.
func Default(d Deps, opts ...Option) (*Catalogue, error) {
	return NewCatalogue(Operations(d), opts...)
}

// Operations returns the task operation definitions bound to d.
func Operations(d Deps) []Operation {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := handlers{deps: d}
	return []Operation{
		{
			Name:        "create_task",
			Description: "Create new task for investigation (orchestrator context)",
			Category:    CategoryOrchestrator,
			Schema: Schema{
				{Name: "title", Type: TypeString, Required: true, Description: "Task title"},
				{Name: "worktree_name", Type: TypeString, Required: true, Description: "Target worktree name"},
				{Name: "description", Type: TypeString, Description: "Detailed task description"},
				{Name: "priority", Type: TypeString, Enum: ledger.PriorityStrings(), Default: string(ledger.PriorityMedium), Description: "Task priority (default: medium)"},
			},
			Handler: h.createTask,
		},
		{
			Name:        "update_task",
			Description: "Update task status and add progress notes",
			Category:    CategoryShared,
			Schema: Schema{
				{Name: "task_id", Type: TypeInteger, Required: true, Description: "Task ID to update"},
				{Name: "status", Type: TypeString, Enum: ledger.StatusStrings(), Description: "New status"},
				{Name: "notes", Type: TypeString, Description: "Progress notes or comments"},
				{Name: "priority", Type: TypeString, Enum: ledger.PriorityStrings(), Description: "Update priority (optional)"},
			},
			Handler: h.updateTask,
		},
		{
			Name:        "get_my_tasks",
			Description: "Get tasks for current worktree context (implementer)",
			Category:    CategoryImplementer,
			Schema: Schema{
				{Name: "status", Type: TypeString, Enum: ledger.StatusStrings(), Description: "Filter by status"},
			},
			Handler: h.getMyTasks,
		},
		{
			Name:        "global_status",
			Description: "Get status overview across all active worktrees (orchestrator context)",
			Category:    CategoryOrchestrator,
			Schema: Schema{
				{Name: "include_completed", Type: TypeBoolean, Default: false, Description: "Include completed tasks in counts (default: false)"},
			},
			Handler: h.globalStatus,
		},
		{
			Name:        "test_tool",
			Description: "Test tool to verify ORC Task Management MCP server is working",
			Category:    CategoryDiagnostic,
			Schema: Schema{
				{Name: "message", Type: TypeString, Default: "ORC Task Management MCP server is working!", Description: "Test message to echo back"},
			},
			Handler: h.testTool,
		},
	}
}

type handlers struct {
	deps Deps
}

func (h handlers) createTask(ctx context.Context, call Call) (Result, error) {
	task, wt, err := h.deps.Ledger.CreateTask(ctx, call.Caller.AgentID, ledger.CreateTaskInput{
		Title:        call.Args.String("title"),
		WorktreeName: call.Args.String("worktree_name"),
		Description:  call.Args.String("description"),
		Priority:     call.Args.String("priority"),
	})
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		names, lerr := h.deps.Ledger.ActiveWorktreeNames(ctx)
		if lerr != nil {
			return Result{}, err
		}
		return Result{}, Hinted(err, "Available: "+strings.Join(names, ", "))
	case errors.Is(err, ledger.ErrValidation):
		return Result{}, Failed("Failed to create task", err)
	case err != nil:
		return Result{}, Failed("Error", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ **Created Task #%d**\n\n", task.ID)
	fmt.Fprintf(&b, "**Title**: %s\n", task.Title)
	fmt.Fprintf(&b, "**Worktree**: %s (%s)\n", wt.Name, wt.RepositoryName)
	fmt.Fprintf(&b, "**Priority**: %s\n", task.Priority)
	fmt.Fprintf(&b, "**Status**: %s\n", task.Status)
	if task.Description != "" {
		fmt.Fprintf(&b, "\n**Description**: %s", task.Description)
	}
	return TextResult(b.String()), nil
}

func (h handlers) updateTask(ctx context.Context, call Call) (Result, error) {
	notes := call.Args.String("notes")
	res, err := h.deps.Ledger.UpdateTask(ctx, call.Caller.AgentID, ledger.UpdateTaskInput{
		TaskID:   call.Args.Int("task_id"),
		Status:   call.Args.String("status"),
		Priority: call.Args.String("priority"),
		Notes:    notes,
	})
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return Result{}, err
	case errors.Is(err, ledger.ErrValidation):
		return Result{}, Failed("Update failed", err)
	case err != nil:
		return Result{}, Failed("Error", err)
	}

	task := res.Task
	var b strings.Builder
	fmt.Fprintf(&b, "%s **Updated Task #%d: %s**\n\n", statusEmoji(task.Status), task.ID, task.Title)
	if res.StatusChanged() {
		fmt.Fprintf(&b, "**Status**: %s → %s\n", humanize(string(res.OldStatus)), humanize(string(task.Status)))
	}
	if res.PriorityChanged() {
		fmt.Fprintf(&b, "**Priority**: %s → %s\n", humanize(string(res.OldPriority)), humanize(string(task.Priority)))
	}
	fmt.Fprintf(&b, "**Worktree**: %s\n", task.WorktreeName)
	fmt.Fprintf(&b, "**Updated by**: %s\n", call.Caller.AgentID)
	if notes != "" {
		fmt.Fprintf(&b, "\n**Notes**: %s", notes)
	}
	return TextResult(b.String()), nil
}

func (h handlers) getMyTasks(ctx context.Context, call Call) (Result, error) {
	status := call.Args.String("status")
	tasks, wt, err := h.deps.Ledger.ListTasks(ctx, call.Caller.WorktreeName(), status)
	switch {
	case errors.Is(err, ledger.ErrNoContext):
		return Result{}, &OperationError{
			Message: "No worktree context detected. Make sure you're in a worktree directory.",
			Err:     err,
		}
	case err != nil:
		return Result{}, Failed("Error", err)
	}

	branch := wt.CurrentBranch()
	if branch == "" {
		branch = "unknown"
	}

	if len(tasks) == 0 {
		filter := ""
		if status != "" {
			filter = fmt.Sprintf(" with status '%s'", status)
		}
		return TextResult(fmt.Sprintf("📭 No tasks found for **%s**%s\n\nRepository: %s\nBranch: %s",
			wt.Name, filter, wt.RepositoryName, branch)), nil
	}

	now := h.deps.Now()
	var b strings.Builder
	fmt.Fprintf(&b, "📋 **Tasks for %s**\n", wt.Name)
	fmt.Fprintf(&b, "Repository: %s | Branch: %s\n\n", wt.RepositoryName, branch)
	for _, t := range tasks {
		flag := ""
		switch t.Priority {
		case ledger.PriorityUrgent:
			flag = " 🚨"
		case ledger.PriorityHigh:
			flag = " ⚠️"
		}
		lastUpdate := ""
		if last, ok := newestEntry(t.History); ok {
			lastUpdate = fmt.Sprintf(" (%s %s)", last.AgentID, timeAgo(now.Sub(last.CreatedAt)))
		}
		fmt.Fprintf(&b, "%s **#%d: %s**%s\n", statusEmoji(t.Status), t.ID, t.Title, flag)
		fmt.Fprintf(&b, "   Status: %s | Priority: %s%s\n", humanize(string(t.Status)), humanize(string(t.Priority)), lastUpdate)
		if t.Description != "" {
			fmt.Fprintf(&b, "   %s\n", t.Description)
		}
		b.WriteString("\n")
	}
	return TextResult(b.String()), nil
}

func (h handlers) globalStatus(ctx context.Context, call Call) (Result, error) {
	report, err := h.deps.Aggregator.GlobalStatus(ctx, call.Args.Bool("include_completed"))
	if err != nil {
		return Result{}, Failed("Error", err)
	}
	return TextResult(report.Render()), nil
}

func (h handlers) testTool(_ context.Context, call Call) (Result, error) {
	return DataResult(map[string]any{
		"success":   true,
		"message":   call.Args.String("message"),
		"timestamp": h.deps.Now().Format(time.RFC3339),
		"server":    ServerBanner,
	}), nil
}

// newestEntry picks the latest by created time, later insert on ties.
func newestEntry(entries []ledger.HistoryEntry) (ledger.HistoryEntry, bool) {
	if len(entries) == 0 {
		return ledger.HistoryEntry{}, false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if !e.CreatedAt.Before(best.CreatedAt) {
			best = e
		}
	}
	return best, true
}

func statusEmoji(s ledger.Status) string {
	switch s {
	case ledger.StatusInvestigating:
		return "🔍"
	case ledger.StatusInProgress:
		return "⚡"
	case ledger.StatusBlocked:
		return "🚫"
	case ledger.StatusCompleted:
		return "✅"
	}
	return "📋"
}

// humanize turns "in_progress" into "In progress".
func humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func timeAgo(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs <= 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs <= 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs <= 86400:
		return fmt.Sprintf("%dh ago", secs/3600)
	}
	return fmt.Sprintf("%dd ago", secs/86400)
}
