// Package seed loads sample repositories, worktrees and tasks into a ledger.
//
// Seeding is idempotent: repositories and worktrees are matched by name and
// tasks by title within their worktree, so running it twice changes nothing.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AgentID is recorded on every history row the seeder writes.
const AgentID = "system_seed"

//go:embed default.yaml
var defaultData []byte

// File is the seed document.
type File struct {
	Repositories []Repository `yaml:"repositories"`
	Worktrees    []Worktree   `yaml:"worktrees"`
	Tasks        []Task       `yaml:"tasks"`
}

type Repository struct {
	Name          string `yaml:"name"`
	Path          string `yaml:"path"`
	PrimaryBranch string `yaml:"primary_branch"`
}

type Worktree struct {
	Name       string `yaml:"name"`
	Repository string `yaml:"repository"`
	Path       string `yaml:"path"`
	Branch     string `yaml:"branch"`
	Status     string `yaml:"status"`
}

type Task struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Worktree    string `yaml:"worktree"`
	Status      string `yaml:"status"`
	Priority    string `yaml:"priority"`
}

// Summary counts what a run created.
type Summary struct {
	Repositories int
	Worktrees    int
	Tasks        int
	History      int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d repositories, %d worktrees, %d tasks, %d history entries created",
		s.Repositories, s.Worktrees, s.Tasks, s.History)
}

// Default returns the embedded sample document.
func Default() (*File, error) {
	return Parse(defaultData)
}

// Load reads a seed document from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document, rejecting unknown keys.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	return &f, nil
}

// Seeder applies seed documents to a ledger.
type Seeder struct {
	svc    *ledger.Service
	logger *zap.Logger
	now    func() time.Time
	home   string
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithLogger sets the seeder's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Seeder) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

// WithHome sets the directory ~/ expands to.
func WithHome(dir string) Option {
	return func(s *Seeder) { s.home = dir }
}

// New creates a Seeder writing through svc.
func New(svc *ledger.Service, opts ...Option) *Seeder {
	s := &Seeder{svc: svc, logger: zap.NewNop(), now: time.Now}
	s.home, _ = os.UserHomeDir()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply creates every entity in f that does not already exist.
func (s *Seeder) Apply(ctx context.Context, f *File) (Summary, error) {
	var sum Summary
	store := s.svc.Store()

	for _, r := range f.Repositories {
		_, err := store.RepositoryByName(ctx, r.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return sum, err
		}
		if _, err := s.svc.RegisterRepository(ctx, r.Name, s.expand(r.Path), r.PrimaryBranch); err != nil {
			return sum, err
		}
		s.logger.Info("seeded repository", zap.String("name", r.Name))
		sum.Repositories++
	}

	for _, w := range f.Worktrees {
		_, err := s.svc.Worktree(ctx, w.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return sum, err
		}
		_, err = s.svc.RegisterWorktree(ctx, ledger.WorktreeInput{
			Name:       w.Name,
			Repository: w.Repository,
			Path:       s.expand(w.Path),
			Branch:     w.Branch,
			Status:     w.Status,
		})
		if err != nil {
			return sum, err
		}
		s.logger.Info("seeded worktree", zap.String("name", w.Name), zap.String("repository", w.Repository))
		sum.Worktrees++
	}

	for _, t := range f.Tasks {
		rows, created, err := s.seedTask(ctx, t)
		if err != nil {
			return sum, fmt.Errorf("seed task %q: %w", t.Title, err)
		}
		if created {
			sum.Tasks++
			sum.History += rows
		}
	}
	return sum, nil
}

func (s *Seeder) seedTask(ctx context.Context, t Task) (int, bool, error) {
	status := ledger.StatusInvestigating
	if t.Status != "" {
		st, err := ledger.ParseStatus(t.Status)
		if err != nil {
			return 0, false, err
		}
		status = st
	}
	priority := ledger.PriorityMedium
	if t.Priority != "" {
		p, err := ledger.ParsePriority(t.Priority)
		if err != nil {
			return 0, false, err
		}
		priority = p
	}

	store := s.svc.Store()
	wt, err := store.WorktreeByName(ctx, t.Worktree)
	if err != nil {
		return 0, false, err
	}
	existing, err := store.ListTasks(ctx, ledger.TaskFilter{WorktreeID: wt.ID})
	if err != nil {
		return 0, false, err
	}
	for _, e := range existing {
		if e.Title == t.Title {
			return 0, false, nil
		}
	}

	now := s.now()
	task := &ledger.Task{
		Title:         t.Title,
		Description:   t.Description,
		Status:        status,
		Priority:      priority,
		WorktreeID:    wt.ID,
		WorktreeName:  wt.Name,
		CreatedBy:     ledger.TaskCreator,
		AssignedAgent: ledger.TaskAssignee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	entries := []ledger.HistoryEntry{{
		Action:    ledger.ActionCreated,
		NewValue:  string(status),
		Notes:     "Initial task creation (seed data)",
		AgentID:   AgentID,
		CreatedAt: now,
	}}
	if status != ledger.StatusInvestigating {
		entries = append(entries, ledger.HistoryEntry{
			Action:    ledger.ActionStatusChanged,
			OldValue:  string(ledger.StatusInvestigating),
			NewValue:  string(status),
			Notes:     "Status updated during initial setup",
			AgentID:   AgentID,
			CreatedAt: now,
		})
	}

	err = store.WithinTx(ctx, func(tx ledger.Store) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		for i := range entries {
			entries[i].TaskID = task.ID
			if err := tx.AppendHistory(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	s.logger.Info("seeded task",
		zap.Int64("task_id", task.ID),
		zap.String("worktree", wt.Name),
		zap.String("status", string(status)),
	)
	return len(entries), true, nil
}

func (s *Seeder) expand(path string) string {
	if s.home == "" || !strings.HasPrefix(path, "~/") {
		return path
	}
	return filepath.Join(s.home, path[2:])
}
