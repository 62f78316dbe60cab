package cleanup

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"para/internal/archive"
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

	writeFile(t, repoDir, "README.md", "# Test\n")
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

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testScanner(t *testing.T) (*Scanner, *git.Repo, *state.Store) {
	t.Helper()
	repo := initTestRepo(t)
	cfg := config.DefaultConfig()
	store := state.NewStore(cfg.StateDir(repo.Root()))
	return New(repo, store, cfg), repo, store
}

func testState(step state.Step) *state.IntegrationState {
	return &state.IntegrationState{
		SessionID:          "add-auth",
		FeatureBranch:      "para/add-auth",
		BaseBranch:         "main",
		Strategy:           state.StrategySquash,
		CreatedAt:          state.NowRFC3339(),
		Step:               step,
		OriginalHeadCommit: "deadbeef",
	}
}

func kinds(items []Item) map[ItemKind]int {
	m := make(map[ItemKind]int)
	for _, it := range items {
		m[it.Kind]++
	}
	return m
}

func TestScanCleanRepo(t *testing.T) {
	sc, _, _ := testScanner(t)

	items, err := sc.Scan(Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected nothing to clean, got %v", items)
	}
}

func TestScanFindsStaleScratchBranches(t *testing.T) {
	sc, repo, _ := testScanner(t)

	if err := repo.CreateBranch("para/tmp/squash-ab12cd34", ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateBranch("para/backup/20250101-120000/old-run", ""); err != nil {
		t.Fatal(err)
	}

	items, err := sc.Scan(Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", items)
	}
	for _, it := range items {
		if it.Kind != StaleBranch {
			t.Errorf("item %v: kind = %s, want stale branch", it, it.Kind)
		}
	}

	applied, err := sc.Apply(items)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}
	if repo.BranchExists("para/tmp/squash-ab12cd34") {
		t.Error("scratch branch survived apply")
	}
	if repo.BranchExists("para/backup/20250101-120000/old-run") {
		t.Error("backup branch survived apply")
	}
}

func TestScanProtectsActiveIntegration(t *testing.T) {
	sc, repo, store := testScanner(t)

	if err := repo.CreateBranch("para/tmp/squash-ab12cd34", ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateBranch("para/backup/20250101-120000/add-auth", ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateBranch("para/tmp/rebase-99999999", ""); err != nil {
		t.Fatal(err)
	}

	st := testState(state.Started())
	st.TempBranches = []string{"para/tmp/squash-ab12cd34"}
	st.BackupBranch = "para/backup/20250101-120000/add-auth"
	if err := store.Save(st); err != nil {
		t.Fatal(err)
	}

	items, err := sc.Scan(Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only the unreferenced branch, got %v", items)
	}
	if items[0].Kind != StaleBranch || items[0].Branch != "para/tmp/rebase-99999999" {
		t.Errorf("unexpected item %v", items[0])
	}
}

func TestStaleFailedStateOffered(t *testing.T) {
	sc, repo, store := testScanner(t)

	if err := repo.CreateBranch("para/tmp/squash-ab12cd34", ""); err != nil {
		t.Fatal(err)
	}

	st := testState(state.Failed("commit failed"))
	st.CreatedAt = time.Now().UTC().Add(-8 * 24 * time.Hour).Format(time.RFC3339)
	st.TempBranches = []string{"para/tmp/squash-ab12cd34"}
	if err := store.Save(st); err != nil {
		t.Fatal(err)
	}

	items, err := sc.Scan(Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	got := kinds(items)
	if got[OrphanedStateFile] != 1 {
		t.Errorf("expected the stale failed state to be offered, got %v", items)
	}
	if got[StaleBranch] != 1 {
		t.Errorf("a removed state stops protecting its branches, got %v", items)
	}

	if _, err := sc.Apply(items); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if store.HasActive() {
		t.Error("state file survived apply")
	}
	if repo.BranchExists("para/tmp/squash-ab12cd34") {
		t.Error("scratch branch survived apply")
	}
}

func TestFreshFailedStateProtected(t *testing.T) {
	sc, repo, store := testScanner(t)

	if err := repo.CreateBranch("para/tmp/squash-ab12cd34", ""); err != nil {
		t.Fatal(err)
	}

	st := testState(state.Failed("commit failed"))
	st.TempBranches = []string{"para/tmp/squash-ab12cd34"}
	if err := store.Save(st); err != nil {
		t.Fatal(err)
	}

	items, err := sc.Scan(Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("a fresh failed integration must be left for inspection, got %v", items)
	}
}

func TestScratchLitterWithoutState(t *testing.T) {
	sc, _, store := testScanner(t)

	if err := store.EnsureStateDir(); err != nil {
		t.Fatal(err)
	}
	writeFile(t, store.ConflictsDir(), "file.txt.ours", "left over\n")

	items, err := sc.Scan(Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(items) != 1 || items[0].Kind != OrphanedStateFile {
		t.Fatalf("expected one orphaned-state item, got %v", items)
	}

	if _, err := sc.Apply(items); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := os.Stat(store.ConflictsDir()); !os.IsNotExist(err) {
		t.Error("conflicts scratch area survived apply")
	}
}

func TestArchiveRetention(t *testing.T) {
	sc, repo, _ := testScanner(t)

	old := archive.Encode("para", "old-session", archive.Timestamp(time.Now().AddDate(0, 0, -40)))
	fresh := archive.Encode("para", "fresh-session", archive.Now())
	if err := repo.CreateBranch(old, ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateBranch(fresh, ""); err != nil {
		t.Fatal(err)
	}

	items, err := sc.Scan(Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("archives need opting in, got %v", items)
	}

	items, err = sc.Scan(Options{IncludeArchives: true})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only the expired archive, got %v", items)
	}
	if items[0].Kind != OldArchive || items[0].Branch != old {
		t.Errorf("unexpected item %v", items[0])
	}

	if _, err := sc.Apply(items); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if repo.BranchExists(old) {
		t.Error("expired archive survived apply")
	}
	if !repo.BranchExists(fresh) {
		t.Error("fresh archive was deleted")
	}
}

func TestApplyToleratesAlreadyGone(t *testing.T) {
	sc, _, _ := testScanner(t)

	applied, err := sc.Apply([]Item{
		{Kind: StaleBranch, Branch: "para/tmp/squash-gone", Reason: "no integration references it"},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
}
