package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"para/internal/errors"
)

// Worktree describes one entry from `git worktree list`.
type Worktree struct {
	Path   string
	Head   string
	Branch string
}

// EnvironmentKind classifies where a para command was invoked from.
type EnvironmentKind string

const (
	EnvMain     EnvironmentKind = "main"
	EnvWorktree EnvironmentKind = "worktree"
)

// SessionEnvironment describes the session context of a path.
type SessionEnvironment struct {
	Kind   EnvironmentKind
	Branch string
	Root   string
}

// CreateWorktree adds a worktree for an existing branch.
func (r *Repo) CreateWorktree(path, branch string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating worktree directory: %w", err)
	}

	var err error
	if r.BranchExists(branch) {
		err = r.run("worktree", "add", path, branch)
	} else {
		err = r.run("worktree", "add", "-b", branch, path)
	}
	if err != nil {
		return fmt.Errorf("git worktree add: %w", err)
	}
	return nil
}

// CreateWorktreeFrom adds a worktree on a new branch cut from startPoint.
func (r *Repo) CreateWorktreeFrom(path, newBranch, startPoint string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating worktree directory: %w", err)
	}
	if err := r.run("worktree", "add", "-b", newBranch, path, startPoint); err != nil {
		return fmt.Errorf("git worktree add: %w", err)
	}
	return nil
}

// RemoveWorktree detaches a worktree, falling back to removing the
// directory when git refuses.
func (r *Repo) RemoveWorktree(path string) error {
	if err := r.run("worktree", "remove", "--force", path); err != nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("removing worktree directory: %w", rmErr)
		}
		return r.PruneWorktrees()
	}
	return nil
}

// PruneWorktrees drops stale worktree bookkeeping.
func (r *Repo) PruneWorktrees() error {
	return r.run("worktree", "prune")
}

// ListWorktrees parses `git worktree list --porcelain`.
func (r *Repo) ListWorktrees() ([]Worktree, error) {
	out, err := r.output("worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}

	var worktrees []Worktree
	var current Worktree
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current.Path != "" {
				worktrees = append(worktrees, current)
			}
			current = Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	if current.Path != "" {
		worktrees = append(worktrees, current)
	}
	return worktrees, nil
}

// ValidateSessionEnvironment classifies a path as the main checkout or a
// session worktree on a branch under the given prefix. Paths outside both
// are rejected.
func ValidateSessionEnvironment(path, prefix string) (*SessionEnvironment, error) {
	repo, err := DiscoverFrom(path)
	if err != nil {
		return nil, err
	}

	branch, err := repo.CurrentBranch()
	if err != nil {
		return nil, err
	}

	if !repo.IsLinkedWorktree() {
		return &SessionEnvironment{Kind: EnvMain, Branch: branch, Root: repo.Root()}, nil
	}
	if strings.HasPrefix(branch, prefix+"/") {
		return &SessionEnvironment{Kind: EnvWorktree, Branch: branch, Root: repo.Root()}, nil
	}
	return nil, errors.E(errors.Op("git.ValidateSessionEnvironment"), errors.KindSessionNotFound,
		fmt.Sprintf("%s is a worktree on %q, not a %s session branch", path, branch, prefix))
}
