package sourceinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func TestHeadResolvesCommitFromSubdirectory(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	sub := filepath.Join(root, "_develop", "js")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "app.js"), []byte("console.log(1)\n"), 0o600))

	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add(".")
	require.NoError(t, err)
	hash, err := w.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	require.NoError(t, err)

	info, err := Head(sub)
	require.NoError(t, err)
	require.Equal(t, hash.String(), info.Commit)
	require.Equal(t, "master", info.Branch)
	require.False(t, info.Dirty)
	require.Len(t, info.Short(), 12)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "app.js"), []byte("console.log(2)\n"), 0o600))
	info, err = Head(sub)
	require.NoError(t, err)
	require.True(t, info.Dirty)
}

func TestHeadOutsideRepository(t *testing.T) {
	_, err := Head(t.TempDir())
	require.ErrorIs(t, err, ErrNotRepository)
}
