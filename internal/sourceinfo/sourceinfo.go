// Package sourceinfo describes the git revision of the project being built.
package sourceinfo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Info is the revision recorded in build reports.
type Info struct {
	Commit string `json:"commit"`
	Branch string `json:"branch,omitempty"`
	Dirty  bool   `json:"dirty"`
}

// Short returns the abbreviated commit hash.
func (i Info) Short() string {
	if len(i.Commit) > 12 {
		return i.Commit[:12]
	}
	return i.Commit
}

// ErrNotRepository is returned when dir is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Head resolves HEAD for the repository containing dir. Parent directories
// are searched for the .git directory.
func Head(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Info{}, ErrNotRepository
		}
		return Info{}, fmt.Errorf("open repository: %w", err)
	}
	ref, err := repo.Head()
	if err != nil {
		return Info{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	info := Info{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		info.Branch = ref.Name().Short()
	}
	if wt, err := repo.Worktree(); err == nil {
		if st, err := wt.Status(); err == nil {
			info.Dirty = !st.IsClean()
		}
	}
	return info, nil
}
