package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepoOnBranch(t *testing.T, branch string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0o644))
	_, err = wt.Add("README")
	require.NoError(t, err)
	_, err = wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	}))
	return dir
}

func TestDetectBranch(t *testing.T) {
	dir := initRepoOnBranch(t, "ml/dlq-fix")

	assert.Equal(t, "ml/dlq-fix", DetectBranch(dir))

	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	assert.Equal(t, "ml/dlq-fix", DetectBranch(sub))

	assert.Equal(t, "", DetectBranch(t.TempDir()))
	assert.Equal(t, "", DetectBranch(""))
}

func TestWorktree_CurrentBranch(t *testing.T) {
	dir := initRepoOnBranch(t, "feature")

	explicit := &Worktree{Branch: "override", Path: dir}
	assert.Equal(t, "override", explicit.CurrentBranch())

	detected := &Worktree{Path: dir}
	assert.Equal(t, "feature", detected.CurrentBranch())

	unknown := &Worktree{Path: filepath.Join(t.TempDir(), "missing")}
	assert.Equal(t, "", unknown.CurrentBranch())
}
