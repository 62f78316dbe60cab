package git

import (
	"fmt"
	"strings"
)

// BranchExists reports whether a local branch exists.
func (r *Repo) BranchExists(name string) bool {
	return r.run("show-ref", "--verify", "--quiet", "refs/heads/"+name) == nil
}

// CreateBranch creates a branch at the given start point without checking
// it out. An empty startPoint means the current HEAD.
func (r *Repo) CreateBranch(name, startPoint string) error {
	args := []string{"branch", name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	if err := r.run(args...); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

// CheckoutNew creates a branch at startPoint and switches to it.
func (r *Repo) CheckoutNew(name, startPoint string) error {
	args := []string{"checkout", "-b", name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	if err := r.run(args...); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

// DeleteBranch removes a local branch even if unmerged.
func (r *Repo) DeleteBranch(name string) error {
	if err := r.run("branch", "-D", name); err != nil {
		return fmt.Errorf("deleting branch %s: %w", name, err)
	}
	return nil
}

// ListBranches returns all local branch names.
func (r *Repo) ListBranches() ([]string, error) {
	out, err := r.output("for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ListBranchesWithPrefix returns local branches under the given prefix,
// e.g. "para/tmp/".
func (r *Repo) ListBranchesWithPrefix(prefix string) ([]string, error) {
	branches, err := r.ListBranches()
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, b := range branches {
		if strings.HasPrefix(b, prefix) {
			matched = append(matched, b)
		}
	}
	return matched, nil
}
