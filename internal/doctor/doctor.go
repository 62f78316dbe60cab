// Package doctor checks the environment para depends on: git on PATH, a
// reachable repository, a writable data directory and healthy integration
// state.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"para/internal/cleanup"
	"para/internal/config"
	"para/internal/git"
	"para/internal/state"
)

type CheckResult struct {
	Name    string
	Status  string // "ok", "warn", "error"
	Message string
	Details []string
}

// Run executes every check and renders the report. repoPath overrides
// repository discovery; empty means discover from the working directory.
func Run(cfg *config.Config, repoPath string) error {
	fmt.Println("┌─ para doctor ─────────────────────────────────────────────────────────┐")
	fmt.Println("│                                                                       │")

	var results []CheckResult

	results = append(results, checkGit())
	results = append(results, checkConfig(cfg))

	repo, repoResult := checkRepo(repoPath)
	results = append(results, repoResult)
	if repo != nil {
		store := state.NewStore(cfg.StateDir(repo.Root()))
		results = append(results, checkDataDir(cfg, repo))
		results = append(results, checkState(store))
		results = append(results, checkLeftovers(repo, store, cfg))
	}

	var hasErrors, hasWarnings bool
	for _, r := range results {
		icon := "✓"
		if r.Status == "warn" {
			icon = "!"
			hasWarnings = true
		} else if r.Status == "error" {
			icon = "✗"
			hasErrors = true
		}

		fmt.Printf("│  [%s] %-65s │\n", icon, truncate(r.Name+": "+r.Message, 65))
		for _, detail := range r.Details {
			fmt.Printf("│      %-63s │\n", truncate(detail, 63))
		}
	}

	fmt.Println("│                                                                       │")
	fmt.Println("└───────────────────────────────────────────────────────────────────────┘")

	if hasErrors {
		fmt.Println("\nSome checks failed. Please fix the errors above.")
		return fmt.Errorf("doctor found errors")
	} else if hasWarnings {
		fmt.Println("\nSome warnings found. Review the items above.")
	} else {
		fmt.Println("\nAll checks passed!")
	}

	return nil
}

func checkGit() CheckResult {
	path, err := exec.LookPath("git")
	if err != nil {
		return CheckResult{
			Name:    "git",
			Status:  "error",
			Message: "not installed",
			Details: []string{"Install git: brew install git (macOS) or apt install git (Linux)"},
		}
	}

	cmd := exec.Command("git", "--version")
	output, err := cmd.Output()
	if err != nil {
		return CheckResult{
			Name:    "git",
			Status:  "warn",
			Message: fmt.Sprintf("installed at %s but version unknown", path),
		}
	}

	version := strings.TrimSpace(string(output))
	version = strings.TrimPrefix(version, "git version ")

	return CheckResult{
		Name:    "git",
		Status:  "ok",
		Message: fmt.Sprintf("version %s", version),
	}
}

func checkConfig(cfg *config.Config) CheckResult {
	if err := cfg.Validate(); err != nil {
		return CheckResult{
			Name:    "config",
			Status:  "error",
			Message: "invalid",
			Details: []string{fmt.Sprintf("Error: %v", err)},
		}
	}

	return CheckResult{
		Name:    "config",
		Status:  "ok",
		Message: fmt.Sprintf("branch prefix %q, data dir %q", cfg.BranchPrefix, cfg.DataDirName),
	}
}

func checkRepo(repoPath string) (*git.Repo, CheckResult) {
	var repo *git.Repo
	var err error
	if repoPath != "" {
		repo, err = git.DiscoverFrom(repoPath)
	} else {
		repo, err = git.Discover()
	}
	if err != nil {
		return nil, CheckResult{
			Name:    "repository",
			Status:  "error",
			Message: "not inside a git repository",
			Details: []string{"Run para inside a repository or pass --repo <path>"},
		}
	}

	branch, err := repo.CurrentBranch()
	if err != nil {
		return repo, CheckResult{
			Name:    "repository",
			Status:  "warn",
			Message: fmt.Sprintf("%s (cannot read current branch)", repo.Root()),
		}
	}

	return repo, CheckResult{
		Name:    "repository",
		Status:  "ok",
		Message: fmt.Sprintf("%s (on %s)", repo.Root(), branch),
	}
}

func checkDataDir(cfg *config.Config, repo *git.Repo) CheckResult {
	dir := cfg.DataDir(repo.Root())

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return CheckResult{
			Name:    "data dir",
			Status:  "ok",
			Message: fmt.Sprintf("%s will be created on first integration", dir),
		}
	} else if err != nil {
		return CheckResult{
			Name:    "data dir",
			Status:  "error",
			Message: fmt.Sprintf("cannot access %s", dir),
			Details: []string{fmt.Sprintf("Error: %v", err)},
		}
	}

	if !info.IsDir() {
		return CheckResult{
			Name:    "data dir",
			Status:  "error",
			Message: fmt.Sprintf("%s exists but is not a directory", dir),
		}
	}

	testFile := filepath.Join(dir, ".para-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return CheckResult{
			Name:    "data dir",
			Status:  "error",
			Message: fmt.Sprintf("%s is not writable", dir),
			Details: []string{fmt.Sprintf("Error: %v", err)},
		}
	}
	os.Remove(testFile)

	return CheckResult{
		Name:    "data dir",
		Status:  "ok",
		Message: fmt.Sprintf("%s exists and is writable", dir),
	}
}

func checkState(store *state.Store) CheckResult {
	st, err := store.Load()
	if err != nil {
		return CheckResult{
			Name:    "integration state",
			Status:  "error",
			Message: "state file is corrupt",
			Details: []string{
				fmt.Sprintf("Path: %s", store.Path()),
				fmt.Sprintf("Error: %v", err),
				"Inspect or delete the file, then rerun",
			},
		}
	}
	if st == nil {
		return CheckResult{
			Name:    "integration state",
			Status:  "ok",
			Message: "no integration in progress",
		}
	}

	if st.Step.Kind == state.StepFailed {
		return CheckResult{
			Name:    "integration state",
			Status:  "warn",
			Message: fmt.Sprintf("session %s failed", st.SessionID),
			Details: []string{
				fmt.Sprintf("Error: %s", st.Step.Error),
				"Fix with: para abort",
			},
		}
	}

	return CheckResult{
		Name:    "integration state",
		Status:  "ok",
		Message: fmt.Sprintf("session %s active at step %s", st.SessionID, st.Step),
		Details: []string{"Resume with: para continue, or roll back with: para abort"},
	}
}

func checkLeftovers(repo *git.Repo, store *state.Store, cfg *config.Config) CheckResult {
	items, err := cleanup.New(repo, store, cfg).Scan(cleanup.Options{})
	if err != nil {
		return CheckResult{
			Name:    "leftovers",
			Status:  "warn",
			Message: "cannot scan for leftovers",
			Details: []string{fmt.Sprintf("Error: %v", err)},
		}
	}
	if len(items) > 0 {
		details := make([]string, 0, len(items)+1)
		for i, item := range items {
			if i == 3 {
				details = append(details, fmt.Sprintf("... and %d more", len(items)-i))
				break
			}
			details = append(details, item.Description())
		}
		details = append(details, "Fix with: para clean")
		return CheckResult{
			Name:    "leftovers",
			Status:  "warn",
			Message: fmt.Sprintf("%d item(s) to clean", len(items)),
			Details: details,
		}
	}

	return CheckResult{
		Name:    "leftovers",
		Status:  "ok",
		Message: "no stale branches or orphaned state",
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
