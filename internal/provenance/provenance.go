// Package provenance gates computed runs on source-repository cleanliness and
// records the commit state that produced each run.
package provenance

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// CommitInfo is the recorded state of one repository at compute time.
type CommitInfo struct {
	Commit      string `json:"commit"`
	Branch      string `json:"branch"`
	CommittedAt string `json:"committed_at"`
}

// DirtyRepositoryError reports every configured repository with uncommitted
// changes. It aborts a compute before any side effect.
type DirtyRepositoryError struct {
	Repositories []string
}

func (e *DirtyRepositoryError) Error() string {
	return fmt.Sprintf(
		"uncommitted changes in: %s; commit the changes before computing",
		strings.Join(e.Repositories, ", "))
}

// Check inspects every repository and returns its commit metadata. A single
// dirty working tree fails the whole check; inspection errors (missing
// directory, not a git repo) are aggregated and fail it likewise.
func Check(ctx context.Context, repos []string) (map[string]CommitInfo, error) {
	info := make(map[string]CommitInfo, len(repos))
	var dirty []string
	var merr *multierror.Error

	for _, repo := range repos {
		status, err := git(ctx, repo, "status", "--porcelain")
		if err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "inspecting repository %q", repo))
			continue
		}
		if strings.TrimSpace(status) != "" {
			dirty = append(dirty, repo)
			continue
		}

		commit, err := git(ctx, repo, "rev-parse", "HEAD")
		if err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "reading HEAD of %q", repo))
			continue
		}
		branch, err := git(ctx, repo, "rev-parse", "--abbrev-ref", "HEAD")
		if err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "reading branch of %q", repo))
			continue
		}
		committedAt, err := git(ctx, repo, "log", "-1", "--format=%cI")
		if err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "reading commit time of %q", repo))
			continue
		}
		info[repo] = CommitInfo{
			Commit:      commit,
			Branch:      branch,
			CommittedAt: committedAt,
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	if len(dirty) > 0 {
		return nil, &DirtyRepositoryError{Repositories: dirty}
	}
	return info, nil
}

func git(ctx context.Context, repo string, args ...string) (string, error) {
	full := append([]string{"-C", repo}, args...)
	out, err := exec.CommandContext(ctx, "git", full...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", errors.Errorf("git %s: %s", strings.Join(args, " "),
				strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", errors.Wrapf(err, "git %s", strings.Join(args, " "))
	}
	return strings.TrimSpace(string(out)), nil
}
