package ledger

import (
	"github.com/go-git/go-git/v5"
)

// DetectBranch returns the short name of the branch checked out at path, or
// "" when path is not inside a git checkout or HEAD is detached. Linked
// worktrees are resolved through their common git directory.
func DetectBranch(path string) string {
	if path == "" {
		return ""
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	if !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}
