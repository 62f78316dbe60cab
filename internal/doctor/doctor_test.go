package doctor

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"para/internal/config"
	"para/internal/git"
	"para/internal/state"
)

func initTestRepo(t *testing.T) *git.Repo {
	t.Helper()
	tmpDir := t.TempDir()
	repoDir := filepath.Join(tmpDir, "repo")

	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatal(err)
	}

	gitRun(t, repoDir, "init", repoDir)
	gitRun(t, repoDir, "config", "user.email", "test@test.com")
	gitRun(t, repoDir, "config", "user.name", "Test")

	if err := os.WriteFile(filepath.Join(repoDir, "README.md"), []byte("# Test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	gitRun(t, repoDir, "add", ".")
	gitRun(t, repoDir, "commit", "-m", "Initial commit")

	repo, err := git.DiscoverFrom(repoDir)
	if err != nil {
		t.Fatalf("DiscoverFrom failed: %v", err)
	}
	return repo
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func TestCheckGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	result := checkGit()
	if result.Status != "ok" {
		t.Errorf("expected status 'ok', got %q (%s)", result.Status, result.Message)
	}
	if !strings.Contains(result.Message, "version") {
		t.Errorf("expected version in message, got %q", result.Message)
	}
}

func TestCheckConfig(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		result := checkConfig(config.DefaultConfig())
		if result.Status != "ok" {
			t.Errorf("expected status 'ok', got %q (%s)", result.Status, result.Message)
		}
	})

	t.Run("rejects empty branch prefix", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.BranchPrefix = ""
		result := checkConfig(cfg)
		if result.Status != "error" {
			t.Errorf("expected status 'error', got %q", result.Status)
		}
	})
}

func TestCheckRepo(t *testing.T) {
	t.Run("finds a repository by path", func(t *testing.T) {
		repo := initTestRepo(t)

		found, result := checkRepo(repo.Root())
		if found == nil {
			t.Fatal("expected a repo handle")
		}
		if result.Status != "ok" {
			t.Errorf("expected status 'ok', got %q (%s)", result.Status, result.Message)
		}
	})

	t.Run("errors outside a repository", func(t *testing.T) {
		found, result := checkRepo(t.TempDir())
		if found != nil {
			t.Error("expected no repo handle")
		}
		if result.Status != "error" {
			t.Errorf("expected status 'error', got %q", result.Status)
		}
	})
}

func TestCheckState(t *testing.T) {
	t.Run("ok without state", func(t *testing.T) {
		store := state.NewStore(filepath.Join(t.TempDir(), "state"))
		result := checkState(store)
		if result.Status != "ok" {
			t.Errorf("expected status 'ok', got %q", result.Status)
		}
		if result.Message != "no integration in progress" {
			t.Errorf("unexpected message %q", result.Message)
		}
	})

	t.Run("warns on failed integration", func(t *testing.T) {
		store := state.NewStore(filepath.Join(t.TempDir(), "state"))
		st := &state.IntegrationState{
			SessionID:          "add-auth",
			FeatureBranch:      "para/add-auth",
			BaseBranch:         "main",
			Strategy:           state.StrategySquash,
			CreatedAt:          state.NowRFC3339(),
			Step:               state.Failed("commit failed"),
			OriginalHeadCommit: "deadbeef",
		}
		if err := store.Save(st); err != nil {
			t.Fatal(err)
		}

		result := checkState(store)
		if result.Status != "warn" {
			t.Errorf("expected status 'warn', got %q", result.Status)
		}
		var mentionsAbort bool
		for _, d := range result.Details {
			if strings.Contains(d, "para abort") {
				mentionsAbort = true
			}
		}
		if !mentionsAbort {
			t.Error("details should suggest para abort")
		}
	})

	t.Run("errors on corrupt state", func(t *testing.T) {
		store := state.NewStore(filepath.Join(t.TempDir(), "state"))
		if err := store.EnsureStateDir(); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(store.Path(), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		result := checkState(store)
		if result.Status != "error" {
			t.Errorf("expected status 'error', got %q", result.Status)
		}
	})
}

func TestCheckDataDir(t *testing.T) {
	cfg := config.DefaultConfig()

	t.Run("ok when absent", func(t *testing.T) {
		repo := initTestRepo(t)
		result := checkDataDir(cfg, repo)
		if result.Status != "ok" {
			t.Errorf("expected status 'ok', got %q (%s)", result.Status, result.Message)
		}
	})

	t.Run("ok when present and writable", func(t *testing.T) {
		repo := initTestRepo(t)
		if err := os.MkdirAll(cfg.DataDir(repo.Root()), 0755); err != nil {
			t.Fatal(err)
		}
		result := checkDataDir(cfg, repo)
		if result.Status != "ok" {
			t.Errorf("expected status 'ok', got %q (%s)", result.Status, result.Message)
		}
		if !strings.Contains(result.Message, "writable") {
			t.Errorf("unexpected message %q", result.Message)
		}
	})
}

func TestCheckLeftovers(t *testing.T) {
	cfg := config.DefaultConfig()

	t.Run("clean repo has none", func(t *testing.T) {
		repo := initTestRepo(t)
		store := state.NewStore(cfg.StateDir(repo.Root()))
		result := checkLeftovers(repo, store, cfg)
		if result.Status != "ok" {
			t.Errorf("expected status 'ok', got %q (%s)", result.Status, result.Message)
		}
	})

	t.Run("warns about stale scratch branches", func(t *testing.T) {
		repo := initTestRepo(t)
		store := state.NewStore(cfg.StateDir(repo.Root()))
		if err := repo.CreateBranch("para/tmp/squash-ab12cd34", ""); err != nil {
			t.Fatal(err)
		}

		result := checkLeftovers(repo, store, cfg)
		if result.Status != "warn" {
			t.Errorf("expected status 'warn', got %q", result.Status)
		}
		var mentionsClean bool
		for _, d := range result.Details {
			if strings.Contains(d, "para clean") {
				mentionsClean = true
			}
		}
		if !mentionsClean {
			t.Error("details should suggest para clean")
		}
	})
}

func TestRunHealthyRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repo := initTestRepo(t)
	if err := Run(config.DefaultConfig(), repo.Root()); err != nil {
		t.Errorf("Run on a healthy repo returned %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 65); got != "short" {
		t.Errorf("truncate passthrough = %q", got)
	}
	long := strings.Repeat("x", 80)
	got := truncate(long, 65)
	if len(got) != 65 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate(long) = %q (len %d)", got, len(got))
	}
}
