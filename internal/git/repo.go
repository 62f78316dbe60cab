// Package git wraps the git CLI behind an explicit repository handle.
// Every operation runs against the handle's root directory; nothing in
// this package depends on the process working directory.
package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"para/internal/errors"
)

// Repo is a handle to a git repository rooted at a fixed path.
type Repo struct {
	root string
}

// Discover finds the repository containing the current working directory.
func Discover() (*Repo, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return DiscoverFrom(wd)
}

// DiscoverFrom finds the repository containing path. Inside a linked
// worktree the handle points at the worktree root, not the main checkout;
// use MainRepo to hop to the primary working tree.
func DiscoverFrom(path string) (*Repo, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = path
	output, err := cmd.Output()
	if err != nil {
		return nil, errors.NotARepository(path)
	}
	return &Repo{root: strings.TrimSpace(string(output))}, nil
}

// Open returns a handle for a known repository root without discovery.
func Open(root string) (*Repo, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.NotARepository(root)
	}
	return DiscoverFrom(root)
}

// Root returns the repository root path.
func (r *Repo) Root() string {
	return r.root
}

// MainRepo resolves the primary working tree that owns this repository.
// For a handle already rooted at the main checkout it returns the
// receiver.
func (r *Repo) MainRepo() (*Repo, error) {
	commonDir, err := r.output("rev-parse", "--git-common-dir")
	if err != nil {
		return nil, fmt.Errorf("resolving git common dir: %w", err)
	}
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(r.root, commonDir)
	}
	mainRoot := filepath.Dir(commonDir)
	if mainRoot == r.root {
		return r, nil
	}
	return &Repo{root: mainRoot}, nil
}

// IsLinkedWorktree reports whether this handle points at a linked worktree
// rather than the primary checkout.
func (r *Repo) IsLinkedWorktree() bool {
	gitDir, err := r.output("rev-parse", "--git-dir")
	if err != nil {
		return false
	}
	commonDir, err := r.output("rev-parse", "--git-common-dir")
	if err != nil {
		return false
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(r.root, gitDir)
	}
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(r.root, commonDir)
	}
	return gitDir != commonDir
}

// run executes git with the given arguments and discards stdout.
func (r *Repo) run(args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.root
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(output)), err)
	}
	return nil
}

// output executes git and returns trimmed stdout.
func (r *Repo) output(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.root
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(output)), nil
}

// combined executes git and returns trimmed combined output along with the
// error, for callers that need to inspect failure text.
func (r *Repo) combined(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.root
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}

// gitPath resolves a path inside the .git directory, correct for both the
// main checkout and linked worktrees.
func (r *Repo) gitPath(name string) string {
	out, err := r.output("rev-parse", "--git-path", name)
	if err != nil {
		return filepath.Join(r.root, ".git", name)
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(r.root, out)
	}
	return out
}

// EnsureExcluded appends a pattern to .git/info/exclude so engine scratch
// files never show up as untracked. Idempotent.
func (r *Repo) EnsureExcluded(pattern string) error {
	path := r.gitPath("info/exclude")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == pattern {
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if len(data) > 0 && data[len(data)-1] != '\n' {
		pattern = "\n" + pattern
	}
	if _, err := f.WriteString(pattern + "\n"); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// CurrentBranch returns the branch HEAD points at.
func (r *Repo) CurrentBranch() (string, error) {
	out, err := r.output("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("getting current branch: %w", err)
	}
	return out, nil
}

// HeadCommit returns the commit hash of HEAD.
func (r *Repo) HeadCommit() (string, error) {
	out, err := r.output("rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("getting HEAD commit: %w", err)
	}
	return out, nil
}

// BranchCommit returns the commit hash a branch points at.
func (r *Repo) BranchCommit(name string) (string, error) {
	out, err := r.output("rev-parse", "--verify", "refs/heads/"+name)
	if err != nil {
		return "", errors.BranchNotFound(name)
	}
	return out, nil
}

// MainBranch detects the repository's default branch: main, then master,
// then whatever HEAD currently names.
func (r *Repo) MainBranch() (string, error) {
	for _, candidate := range []string{"main", "master"} {
		if r.BranchExists(candidate) {
			return candidate, nil
		}
	}
	return r.CurrentBranch()
}

// Checkout switches the working tree to a branch.
func (r *Repo) Checkout(branch string) error {
	return r.run("checkout", branch)
}

// HasUncommittedChanges reports whether the working tree is dirty.
func (r *Repo) HasUncommittedChanges() (bool, error) {
	out, err := r.output("status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("checking git status: %w", err)
	}
	return out != "", nil
}

// HasRemote reports whether the named remote is configured.
func (r *Repo) HasRemote(name string) bool {
	return r.run("remote", "get-url", name) == nil
}

// Fetch updates remote-tracking refs for one branch.
func (r *Repo) Fetch(remote, branch string) error {
	return r.run("fetch", remote, branch)
}

// FastForward advances the current branch to ref, refusing non-ff moves.
func (r *Repo) FastForward(ref string) error {
	return r.run("merge", "--ff-only", ref)
}

// ResetHard moves the current branch and working tree to a commit.
func (r *Repo) ResetHard(commit string) error {
	return r.run("reset", "--hard", commit)
}

// CommitsAhead counts commits reachable from tip but not from base.
func (r *Repo) CommitsAhead(base, tip string) (int, error) {
	out, err := r.output("rev-list", "--count", base+".."+tip)
	if err != nil {
		return 0, fmt.Errorf("counting commits %s..%s: %w", base, tip, err)
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parsing commit count %q: %w", out, err)
	}
	return n, nil
}

// CommitSubjects returns the subject lines of base..tip, newest first.
func (r *Repo) CommitSubjects(base, tip string) ([]string, error) {
	out, err := r.output("log", "--format=%s", base+".."+tip)
	if err != nil {
		return nil, fmt.Errorf("listing commits %s..%s: %w", base, tip, err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
