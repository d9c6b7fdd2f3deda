package provenance

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("v1"), 0o644))
	run("add", "file.txt")
	run("commit", "-m", "initial")
	return dir
}

func TestCheckCleanRepository(t *testing.T) {
	requireGit(t)
	repo := initRepo(t)

	info, err := Check(context.Background(), []string{repo})
	require.NoError(t, err)
	require.Len(t, info, 1)
	require.Len(t, info[repo].Commit, 40)
	require.NotEmpty(t, info[repo].Branch)
	require.NotEmpty(t, info[repo].CommittedAt)
}

func TestCheckDirtyRepository(t *testing.T) {
	requireGit(t)
	repo := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(repo, "file.txt"), []byte("v2"), 0o644))

	_, err := Check(context.Background(), []string{repo})
	require.Error(t, err)
	var dirtyErr *DirtyRepositoryError
	require.ErrorAs(t, err, &dirtyErr)
	require.Equal(t, []string{repo}, dirtyErr.Repositories)
	require.Contains(t, err.Error(), repo)
}

func TestCheckEnumeratesAllDirtyRepositories(t *testing.T) {
	requireGit(t)
	a := initRepo(t)
	b := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(a, "file.txt"), []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b, "file.txt"), []byte("v2"), 0o644))

	_, err := Check(context.Background(), []string{a, b})
	var dirtyErr *DirtyRepositoryError
	require.ErrorAs(t, err, &dirtyErr)
	require.ElementsMatch(t, []string{a, b}, dirtyErr.Repositories)
}

func TestCheckMissingRepository(t *testing.T) {
	requireGit(t)
	_, err := Check(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
}

func TestCheckNoRepositories(t *testing.T) {
	info, err := Check(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, info)
}
