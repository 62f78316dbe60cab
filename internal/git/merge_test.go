package git

import (
	"testing"
)

// setupDivergent commits file.txt differently on main and para/add-auth so
// merging or rebasing one onto the other conflicts.
func setupDivergent(t *testing.T, repo *Repo) (main string) {
	t.Helper()
	main, err := repo.CurrentBranch()
	if err != nil {
		t.Fatal(err)
	}

	commitFile(t, repo, "file.txt", "base\n", "add file")
	gitRun(t, repo.Root(), "checkout", "-b", "para/add-auth")
	commitFile(t, repo, "file.txt", "feature change\n", "feature edit")
	gitRun(t, repo.Root(), "checkout", main)
	commitFile(t, repo, "file.txt", "main change\n", "main edit")
	return main
}

func TestMergeClean(t *testing.T) {
	repo := initTestRepo(t)
	main, _ := repo.CurrentBranch()

	gitRun(t, repo.Root(), "checkout", "-b", "para/add-auth")
	commitFile(t, repo, "feature.txt", "feature\n", "add feature")
	gitRun(t, repo.Root(), "checkout", main)

	conflicted, err := repo.Merge("para/add-auth", "Integrate para/add-auth", true)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if conflicted {
		t.Fatal("unexpected conflicts on disjoint files")
	}

	files, err := repo.UnmergedFiles()
	if err != nil {
		t.Fatalf("UnmergedFiles failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected clean index, got %v", files)
	}
}

func TestMergeConflictAndAbort(t *testing.T) {
	repo := initTestRepo(t)
	setupDivergent(t, repo)

	conflicted, err := repo.Merge("para/add-auth", "", true)
	if err != nil {
		t.Fatalf("Merge failed hard: %v", err)
	}
	if !conflicted {
		t.Fatal("expected conflicts on overlapping edit")
	}
	if !repo.MergeInProgress() {
		t.Error("expected merge in progress")
	}

	files, err := repo.UnmergedFiles()
	if err != nil {
		t.Fatalf("UnmergedFiles failed: %v", err)
	}
	if len(files) != 1 || files[0] != "file.txt" {
		t.Errorf("expected [file.txt], got %v", files)
	}

	if err := repo.AbortMerge(); err != nil {
		t.Fatalf("AbortMerge failed: %v", err)
	}
	if repo.MergeInProgress() {
		t.Error("merge still in progress after abort")
	}
}

func TestMergeConflictResolveAndCommit(t *testing.T) {
	repo := initTestRepo(t)
	setupDivergent(t, repo)

	conflicted, err := repo.Merge("para/add-auth", "", true)
	if err != nil || !conflicted {
		t.Fatalf("expected conflicted merge, got conflicted=%v err=%v", conflicted, err)
	}

	writeFile(t, repo.Root(), "file.txt", "resolved\n")
	if err := repo.StageFile("file.txt"); err != nil {
		t.Fatalf("StageFile failed: %v", err)
	}

	if err := repo.CommitNoEdit(); err != nil {
		t.Fatalf("CommitNoEdit failed: %v", err)
	}
	if repo.MergeInProgress() {
		t.Error("merge still in progress after commit")
	}
}

func TestMergeSquashProducesSingleCommit(t *testing.T) {
	repo := initTestRepo(t)
	main, _ := repo.CurrentBranch()

	gitRun(t, repo.Root(), "checkout", "-b", "para/add-auth")
	commitFile(t, repo, "a.txt", "a\n", "first")
	commitFile(t, repo, "b.txt", "b\n", "second")
	commitFile(t, repo, "c.txt", "c\n", "third")
	gitRun(t, repo.Root(), "checkout", main)

	before, _ := repo.HeadCommit()

	conflicted, err := repo.MergeSquash("para/add-auth")
	if err != nil {
		t.Fatalf("MergeSquash failed: %v", err)
	}
	if conflicted {
		t.Fatal("unexpected conflicts")
	}

	staged, err := repo.HasStagedChanges()
	if err != nil {
		t.Fatalf("HasStagedChanges failed: %v", err)
	}
	if !staged {
		t.Fatal("expected staged squash changes")
	}

	if err := repo.Commit("squashed feature"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	n, err := repo.CommitsAhead(before, main)
	if err != nil {
		t.Fatalf("CommitsAhead failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly 1 new commit, got %d", n)
	}
}

func TestRebaseCleanReplay(t *testing.T) {
	repo := initTestRepo(t)
	main, _ := repo.CurrentBranch()

	gitRun(t, repo.Root(), "checkout", "-b", "para/add-auth")
	commitFile(t, repo, "feature.txt", "feature\n", "feature work")
	gitRun(t, repo.Root(), "checkout", main)
	commitFile(t, repo, "other.txt", "other\n", "main work")

	gitRun(t, repo.Root(), "checkout", "para/add-auth")
	conflicted, err := repo.RebaseOnto(main)
	if err != nil {
		t.Fatalf("RebaseOnto failed: %v", err)
	}
	if conflicted {
		t.Fatal("unexpected conflicts on disjoint files")
	}
	if repo.RebaseInProgress() {
		t.Error("rebase still in progress after clean replay")
	}
}

func TestRebaseConflictContinue(t *testing.T) {
	repo := initTestRepo(t)
	main := setupDivergent(t, repo)

	gitRun(t, repo.Root(), "checkout", "para/add-auth")
	conflicted, err := repo.RebaseOnto(main)
	if err != nil {
		t.Fatalf("RebaseOnto failed hard: %v", err)
	}
	if !conflicted {
		t.Fatal("expected rebase conflicts")
	}
	if !repo.RebaseInProgress() {
		t.Error("expected rebase in progress")
	}

	writeFile(t, repo.Root(), "file.txt", "resolved\n")
	if err := repo.StageFile("file.txt"); err != nil {
		t.Fatalf("StageFile failed: %v", err)
	}

	conflicted, err = repo.ContinueRebase()
	if err != nil {
		t.Fatalf("ContinueRebase failed: %v", err)
	}
	if conflicted {
		t.Fatal("expected rebase to finish after resolution")
	}
	if repo.RebaseInProgress() {
		t.Error("rebase still in progress after continue")
	}
}

func TestHasStagedChanges(t *testing.T) {
	repo := initTestRepo(t)

	staged, err := repo.HasStagedChanges()
	if err != nil {
		t.Fatalf("HasStagedChanges failed: %v", err)
	}
	if staged {
		t.Error("expected no staged changes in clean repo")
	}

	writeFile(t, repo.Root(), "staged.txt", "staged\n")
	gitRun(t, repo.Root(), "add", "staged.txt")

	staged, err = repo.HasStagedChanges()
	if err != nil {
		t.Fatalf("HasStagedChanges failed: %v", err)
	}
	if !staged {
		t.Error("expected staged changes after add")
	}
}
