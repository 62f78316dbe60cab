package git

import (
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// runNoEditor executes git with GIT_EDITOR disabled so commands that would
// open a commit message editor complete non-interactively.
func (r *Repo) runNoEditor(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.root
	cmd.Env = append(os.Environ(), "GIT_EDITOR=true")
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}

// looksConflicted reports whether failed-command output indicates merge
// conflicts rather than a hard failure.
func looksConflicted(output string) bool {
	return strings.Contains(output, "CONFLICT") ||
		strings.Contains(output, "Automatic merge failed") ||
		strings.Contains(output, "could not apply")
}

// conflictedOrError resolves an ambiguous git failure: conflicts are
// reported as data, everything else as an error.
func (r *Repo) conflictedOrError(op, output string, err error) (bool, error) {
	if looksConflicted(output) {
		return true, nil
	}
	if files, ferr := r.UnmergedFiles(); ferr == nil && len(files) > 0 {
		return true, nil
	}
	return false, fmt.Errorf("%s: %s: %w", op, output, err)
}

// Merge merges a branch into the current branch. Returns true when the
// merge stopped on conflicts; the merge is then left in progress for the
// operator to resolve.
func (r *Repo) Merge(branch, message string, noFF bool) (bool, error) {
	args := []string{"merge"}
	if noFF {
		args = append(args, "--no-ff")
	}
	if message != "" {
		args = append(args, "-m", message)
	}
	args = append(args, branch)

	output, err := r.combined(args...)
	if err != nil {
		return r.conflictedOrError("git merge", output, err)
	}
	return false, nil
}

// MergeSquash stages the combined diff of a branch onto the current branch
// without committing. Returns true when the squash stopped on conflicts.
func (r *Repo) MergeSquash(branch string) (bool, error) {
	output, err := r.combined("merge", "--squash", branch)
	if err != nil {
		return r.conflictedOrError("git merge --squash", output, err)
	}
	return false, nil
}

// RebaseOnto replays the current branch onto base. Returns true when the
// rebase stopped on conflicts; the rebase is then left in progress.
func (r *Repo) RebaseOnto(base string) (bool, error) {
	output, err := r.runNoEditor("rebase", base)
	if err != nil {
		if looksConflicted(output) || r.RebaseInProgress() {
			return true, nil
		}
		return false, fmt.Errorf("git rebase: %s: %w", output, err)
	}
	return false, nil
}

// ContinueRebase resumes an in-progress rebase after conflicts were staged.
// Returns true when the rebase stopped on conflicts again.
func (r *Repo) ContinueRebase() (bool, error) {
	output, err := r.runNoEditor("rebase", "--continue")
	if err != nil {
		return r.conflictedOrError("git rebase --continue", output, err)
	}
	return false, nil
}

// AbortRebase cancels an in-progress rebase.
func (r *Repo) AbortRebase() error {
	if err := r.run("rebase", "--abort"); err != nil {
		return fmt.Errorf("aborting rebase: %w", err)
	}
	return nil
}

// AbortMerge cancels an in-progress merge.
func (r *Repo) AbortMerge() error {
	if err := r.run("merge", "--abort"); err != nil {
		return fmt.Errorf("aborting merge: %w", err)
	}
	return nil
}

// AbortSquash discards a staged squash merge: index and working tree reset
// to HEAD and the prepared squash message is removed.
func (r *Repo) AbortSquash() error {
	if err := r.run("reset", "--hard", "HEAD"); err != nil {
		return fmt.Errorf("discarding squash state: %w", err)
	}
	if err := os.Remove(r.gitPath("SQUASH_MSG")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing squash message: %w", err)
	}
	return nil
}

// MergeInProgress reports whether a merge is waiting for conflict
// resolution or a commit.
func (r *Repo) MergeInProgress() bool {
	_, err := os.Stat(r.gitPath("MERGE_HEAD"))
	return err == nil
}

// RebaseInProgress reports whether a rebase is underway.
func (r *Repo) RebaseInProgress() bool {
	if _, err := os.Stat(r.gitPath("rebase-merge")); err == nil {
		return true
	}
	if _, err := os.Stat(r.gitPath("rebase-apply")); err == nil {
		return true
	}
	return false
}

// SquashInProgress reports whether a squash merge is staged but not yet
// committed.
func (r *Repo) SquashInProgress() bool {
	_, err := os.Stat(r.gitPath("SQUASH_MSG"))
	return err == nil
}

// UnmergedFiles returns paths in the unmerged index state, or nil when the
// index is clean.
func (r *Repo) UnmergedFiles() ([]string, error) {
	out, err := r.output("diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("listing conflicted files: %w", err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// StageFile marks a file as resolved by adding it to the index.
func (r *Repo) StageFile(path string) error {
	if err := r.run("add", "--", path); err != nil {
		return fmt.Errorf("staging %s: %w", path, err)
	}
	return nil
}

// HasStagedChanges reports whether the index differs from HEAD.
// diff --quiet exits 1 on differences, which run reports as an error.
func (r *Repo) HasStagedChanges() (bool, error) {
	err := r.run("diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("checking staged changes: %w", err)
}

// Commit records the staged index with a message.
func (r *Repo) Commit(message string) error {
	if err := r.run("commit", "-m", message); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// CommitNoEdit concludes an in-progress merge with its prepared message.
func (r *Repo) CommitNoEdit() error {
	if output, err := r.runNoEditor("commit", "--no-edit"); err != nil {
		return fmt.Errorf("committing merge: %s: %w", output, err)
	}
	return nil
}
