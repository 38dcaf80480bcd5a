// Package identity infers which agent is calling from its working directory.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
)

// Role is the kind of agent making a call.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleImplementer  Role = "implementer"
	RoleMaintenance  Role = "maintenance"
)

// Default path markers.
const (
	DefaultOrchestratorMarker = "orc"
	DefaultWorktreesMarker    = "worktrees"
)

// Context is the resolved caller identity for one invocation.
type Context struct {
	Role    Role
	AgentID string
	// Worktree is set only for implementers.
	Worktree   *ledger.Worktree
	WorkingDir string
}

// WorktreeName returns the caller's worktree name or "".
func (c Context) WorktreeName() string {
	if c.Worktree == nil {
		return ""
	}
	return c.Worktree.Name
}

// Maintenance is the identity used when nothing better is known.
func Maintenance(workdir string) Context {
	return Context{Role: RoleMaintenance, AgentID: AgentIDFor(RoleMaintenance, ""), WorkingDir: workdir}
}

// AgentIDFor maps a role to its agent id. An implementer without a worktree
// name becomes "implementer_unknown".
func AgentIDFor(role Role, worktree string) string {
	switch role {
	case RoleOrchestrator:
		return "orchestrator"
	case RoleImplementer:
		if worktree == "" {
			worktree = "unknown"
		}
		return "implementer_" + worktree
	default:
		return "maintenance"
	}
}

// WorktreeLookup finds worktrees by name. *ledger.Service satisfies it.
type WorktreeLookup interface {
	Worktree(ctx context.Context, name string) (*ledger.Worktree, error)
}

// Resolver turns a working directory into a Context. It holds no per-call
// state, so every call reflects the directory it is given.
type Resolver struct {
	lookup             WorktreeLookup
	orchestratorMarker string
	worktreesMarker    string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMarkers overrides the orchestrator and worktrees-root path segments.
// Empty values keep the defaults.
func WithMarkers(orchestrator, worktrees string) Option {
	return func(r *Resolver) {
		if orchestrator != "" {
			r.orchestratorMarker = orchestrator
		}
		if worktrees != "" {
			r.worktreesMarker = worktrees
		}
	}
}

// NewResolver creates a Resolver backed by lookup.
func NewResolver(lookup WorktreeLookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup:             lookup,
		orchestratorMarker: DefaultOrchestratorMarker,
		worktreesMarker:    DefaultWorktreesMarker,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify inspects the path alone. It reports implementer plus the
// candidate worktree name whenever the path sits below the worktrees root,
// whether or not that worktree exists.
func (r *Resolver) Classify(workdir string) (Role, string) {
	segments := splitPath(workdir)
	for _, seg := range segments {
		if seg == r.orchestratorMarker {
			return RoleOrchestrator, ""
		}
	}
	for i, seg := range segments {
		if seg == r.worktreesMarker && i+1 < len(segments) {
			return RoleImplementer, segments[i+1]
		}
	}
	return RoleMaintenance, ""
}

// Resolve classifies workdir and confirms any worktree against the ledger.
// A worktree name with no matching record resolves to maintenance so that
// history is never attributed to a worktree that does not exist.
func (r *Resolver) Resolve(ctx context.Context, workdir string) (Context, error) {
	role, name := r.Classify(workdir)
	switch role {
	case RoleOrchestrator:
		return Context{Role: role, AgentID: AgentIDFor(role, ""), WorkingDir: workdir}, nil
	case RoleImplementer:
		wt, err := r.lookup.Worktree(ctx, name)
		if errors.Is(err, ledger.ErrNotFound) {
			return Maintenance(workdir), nil
		}
		if err != nil {
			return Maintenance(workdir), fmt.Errorf("resolve worktree %q: %w", name, err)
		}
		return Context{Role: role, AgentID: AgentIDFor(role, wt.Name), Worktree: wt, WorkingDir: workdir}, nil
	}
	return Maintenance(workdir), nil
}

// ProcessDir returns $PWD, falling back to os.Getwd.
func ProcessDir() string {
	if pwd := os.Getenv("PWD"); pwd != "" {
		return pwd
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return ""
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	p = filepath.ToSlash(filepath.Clean(p))
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
