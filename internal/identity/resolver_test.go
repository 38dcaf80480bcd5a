package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	worktrees map[string]*ledger.Worktree
	err       error
}

func (f fakeLookup) Worktree(_ context.Context, name string) (*ledger.Worktree, error) {
	if f.err != nil {
		return nil, f.err
	}
	if wt, ok := f.worktrees[name]; ok {
		return wt, nil
	}
	return nil, ledger.NotFound("Worktree", "'"+name+"'")
}

func newTestResolver() *Resolver {
	return NewResolver(fakeLookup{worktrees: map[string]*ledger.Worktree{
		"ml-dlq": {ID: 1, Name: "ml-dlq"},
	}})
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		workdir  string
		role     Role
		agentID  string
		worktree string
	}{
		{"orchestrator", "/home/me/orc", RoleOrchestrator, "orchestrator", ""},
		{"orchestrator subdir", "/home/me/orc/notes", RoleOrchestrator, "orchestrator", ""},
		{"orchestrator wins over worktree", "/home/me/orc/worktrees/ml-dlq", RoleOrchestrator, "orchestrator", ""},
		{"known worktree", "/src/worktrees/ml-dlq", RoleImplementer, "implementer_ml-dlq", "ml-dlq"},
		{"known worktree subdir", "/src/worktrees/ml-dlq/pkg/api/", RoleImplementer, "implementer_ml-dlq", "ml-dlq"},
		{"unknown worktree", "/src/worktrees/ghost", RoleMaintenance, "maintenance", ""},
		{"worktrees root only", "/src/worktrees", RoleMaintenance, "maintenance", ""},
		{"marker is a whole segment", "/home/me/orchard", RoleMaintenance, "maintenance", ""},
		{"elsewhere", "/tmp", RoleMaintenance, "maintenance", ""},
		{"empty", "", RoleMaintenance, "maintenance", ""},
	}

	r := newTestResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.workdir)
			require.NoError(t, err)
			assert.Equal(t, tt.role, got.Role)
			assert.Equal(t, tt.agentID, got.AgentID)
			assert.Equal(t, tt.worktree, got.WorktreeName())
			assert.Equal(t, tt.workdir, got.WorkingDir)
		})
	}
}

func TestResolver_Classify(t *testing.T) {
	r := newTestResolver()

	role, name := r.Classify("/src/worktrees/ghost")
	assert.Equal(t, RoleImplementer, role)
	assert.Equal(t, "ghost", name)
	assert.Equal(t, "implementer_unknown", AgentIDFor(RoleImplementer, ""))

	role, _ = r.Classify("/src/orc")
	assert.Equal(t, RoleOrchestrator, role)
}

func TestResolver_CustomMarkers(t *testing.T) {
	r := NewResolver(fakeLookup{worktrees: map[string]*ledger.Worktree{"w1": {Name: "w1"}}}, WithMarkers("lead", "trees"))

	got, err := r.Resolve(context.Background(), "/x/lead")
	require.NoError(t, err)
	assert.Equal(t, RoleOrchestrator, got.Role)

	got, err = r.Resolve(context.Background(), "/x/trees/w1")
	require.NoError(t, err)
	assert.Equal(t, "implementer_w1", got.AgentID)

	got, err = r.Resolve(context.Background(), "/x/orc")
	require.NoError(t, err)
	assert.Equal(t, RoleMaintenance, got.Role)
}

func TestResolver_LookupFailure(t *testing.T) {
	r := NewResolver(fakeLookup{err: errors.New("database is locked")})

	got, err := r.Resolve(context.Background(), "/src/worktrees/ml-dlq")
	require.Error(t, err)
	assert.Equal(t, RoleMaintenance, got.Role)
}

func TestProcessDir(t *testing.T) {
	t.Setenv("PWD", "/src/worktrees/ml-dlq")
	assert.Equal(t, "/src/worktrees/ml-dlq", ProcessDir())

	t.Setenv("PWD", "")
	assert.NotEmpty(t, ProcessDir())
}
