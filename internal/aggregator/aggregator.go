// Package aggregator summarizes task state across every active worktree.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
)

// WorktreeSummary holds per-worktree counts.
type WorktreeSummary struct {
	Name       string
	Repository string
	Branch     string
	Active     int
	Completed  int
}

// TaskLine is a task listed in the urgent or blocked section.
type TaskLine struct {
	ID       int64
	Title    string
	Worktree string
	// Note is the newest history note, blocked tasks only.
	Note string
}

// Report is the result of GlobalStatus.
type Report struct {
	IncludeCompleted bool
	Worktrees        []WorktreeSummary
	Urgent           []TaskLine
	Blocked          []TaskLine
	TotalActive      int
	TotalCompleted   int
	// Repositories is filled only when there are no active worktrees.
	Repositories []string
}

// Aggregator reads the ledger store.
type Aggregator struct {
	store ledger.Store
}

// New creates an Aggregator.
func New(store ledger.Store) *Aggregator {
	return &Aggregator{store: store}
}

// GlobalStatus builds the cross-worktree report. Only worktrees with status
// active contribute. Urgent collects unfinished urgent tasks; Blocked
// collects blocked tasks annotated with the notes of their newest history
// row. Both lists are in task id order.
func (a *Aggregator) GlobalStatus(ctx context.Context, includeCompleted bool) (*Report, error) {
	report := &Report{IncludeCompleted: includeCompleted}

	worktrees, err := a.store.ListWorktrees(ctx, ledger.WorktreeActive)
	if err != nil {
		return nil, fmt.Errorf("list active worktrees: %w", err)
	}
	if len(worktrees) == 0 {
		repos, err := a.store.ListRepositories(ctx)
		if err != nil {
			return nil, fmt.Errorf("list repositories: %w", err)
		}
		for _, r := range repos {
			report.Repositories = append(report.Repositories, r.Name)
		}
		return report, nil
	}

	tasks, err := a.store.ListTasks(ctx, ledger.TaskFilter{ActiveWorktreesOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	byWorktree := make(map[int64]*WorktreeSummary, len(worktrees))
	report.Worktrees = make([]WorktreeSummary, len(worktrees))
	for i, wt := range worktrees {
		report.Worktrees[i] = WorktreeSummary{
			Name:       wt.Name,
			Repository: wt.RepositoryName,
			Branch:     wt.CurrentBranch(),
		}
		byWorktree[wt.ID] = &report.Worktrees[i]
	}

	var blockedIDs []int64
	for _, t := range tasks {
		sum, ok := byWorktree[t.WorktreeID]
		if !ok {
			continue
		}
		if t.Status == ledger.StatusCompleted {
			sum.Completed++
			report.TotalCompleted++
		} else {
			sum.Active++
			report.TotalActive++
		}
		if t.Priority == ledger.PriorityUrgent && t.Status != ledger.StatusCompleted {
			report.Urgent = append(report.Urgent, TaskLine{ID: t.ID, Title: t.Title, Worktree: t.WorktreeName})
		}
		if t.Status == ledger.StatusBlocked {
			report.Blocked = append(report.Blocked, TaskLine{ID: t.ID, Title: t.Title, Worktree: t.WorktreeName})
			blockedIDs = append(blockedIDs, t.ID)
		}
	}

	if len(blockedIDs) > 0 {
		latest, err := a.store.LatestHistory(ctx, blockedIDs)
		if err != nil {
			return nil, fmt.Errorf("load latest history: %w", err)
		}
		for i := range report.Blocked {
			report.Blocked[i].Note = latest[report.Blocked[i].ID].Notes
		}
	}

	return report, nil
}

// Render formats the report as markdown: header, totals, urgent section,
// blocked section, then one block per worktree.
func (r *Report) Render() string {
	var b strings.Builder
	b.WriteString("🌍 **Global ORC Status**\n\n")

	if len(r.Worktrees) == 0 {
		b.WriteString("No active worktrees found.\n\nAvailable repositories:\n")
		lines := make([]string, len(r.Repositories))
		for i, name := range r.Repositories {
			lines[i] = "• " + name
		}
		b.WriteString(strings.Join(lines, "\n"))
		return b.String()
	}

	fmt.Fprintf(&b, "**Summary**: %d active tasks across %d worktrees", r.TotalActive, len(r.Worktrees))
	if r.IncludeCompleted && r.TotalCompleted > 0 {
		fmt.Fprintf(&b, ", %d completed", r.TotalCompleted)
	}
	b.WriteString("\n\n")

	if len(r.Urgent) > 0 {
		fmt.Fprintf(&b, "🚨 **Urgent Tasks** (%d):\n", len(r.Urgent))
		for _, t := range r.Urgent {
			fmt.Fprintf(&b, "• #%d: %s (%s)\n", t.ID, t.Title, t.Worktree)
		}
		b.WriteString("\n")
	}

	if len(r.Blocked) > 0 {
		fmt.Fprintf(&b, "🚫 **Blocked Tasks** (%d):\n", len(r.Blocked))
		for _, t := range r.Blocked {
			note := t.Note
			if note == "" {
				note = "No details"
			}
			fmt.Fprintf(&b, "• #%d: %s - %s\n", t.ID, t.Title, note)
		}
		b.WriteString("\n")
	}

	blocks := make([]string, len(r.Worktrees))
	for i, wt := range r.Worktrees {
		branch := wt.Branch
		if branch == "" {
			branch = "unknown"
		}
		blocks[i] = fmt.Sprintf("**%s** (%s)\n   Branch: %s\n   Tasks: %s\n", wt.Name, wt.Repository, branch, r.taskSummary(wt))
	}
	b.WriteString(strings.Join(blocks, "\n"))
	return b.String()
}

func (r *Report) taskSummary(wt WorktreeSummary) string {
	switch {
	case wt.Active == 0 && wt.Completed == 0:
		return "No tasks"
	case wt.Active == 0:
		return fmt.Sprintf("✅ All complete (%d)", wt.Completed)
	}
	s := fmt.Sprintf("%d active", wt.Active)
	if r.IncludeCompleted && wt.Completed > 0 {
		s += fmt.Sprintf(", %d complete", wt.Completed)
	}
	return s
}
