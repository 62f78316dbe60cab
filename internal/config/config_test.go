package config

import (
	"os"
	"path/filepath"
	"testing"

	"para/internal/errors"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	if cfg.BranchPrefix != "para" {
		t.Errorf("expected BranchPrefix 'para', got %q", cfg.BranchPrefix)
	}
	if cfg.DataDirName != ".para" {
		t.Errorf("expected DataDirName '.para', got %q", cfg.DataDirName)
	}
	if cfg.ArchiveRetentionDays != 30 {
		t.Errorf("expected ArchiveRetentionDays 30, got %d", cfg.ArchiveRetentionDays)
	}
	if !cfg.Integrate.AutoFetch {
		t.Error("expected Integrate.AutoFetch to default to true")
	}
	if !cfg.Notifications.Enabled {
		t.Error("expected Notifications.Enabled to default to true")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	custom := `
branch_prefix: work
integrate:
  default_strategy: merge
  auto_fetch: false
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(custom), 0644); err != nil {
		t.Fatalf("failed to write config.yaml: %v", err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	if cfg.BranchPrefix != "work" {
		t.Errorf("expected BranchPrefix 'work', got %q", cfg.BranchPrefix)
	}
	if cfg.Integrate.DefaultStrategy != "merge" {
		t.Errorf("expected DefaultStrategy 'merge', got %q", cfg.Integrate.DefaultStrategy)
	}
	if cfg.Integrate.AutoFetch {
		t.Error("expected AutoFetch false from file")
	}
	// Untouched fields keep their defaults.
	if cfg.DataDirName != ".para" {
		t.Errorf("expected DataDirName '.para', got %q", cfg.DataDirName)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"slash in prefix", "branch_prefix: para/sub\n"},
		{"empty prefix", "branch_prefix: \"\"\n"},
		{"negative retention", "archive_retention_days: -1\n"},
		{"unknown strategy", "integrate:\n  default_strategy: cherry\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := LoadFromDir(tmpDir)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, errors.KindConfig) {
				t.Errorf("expected KindConfig error, got %v", err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.BranchPrefix = "feature"
	cfg.HistoryLimit = 5
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.BranchPrefix != "feature" {
		t.Errorf("expected BranchPrefix 'feature', got %q", loaded.BranchPrefix)
	}
	if loaded.HistoryLimit != 5 {
		t.Errorf("expected HistoryLimit 5, got %d", loaded.HistoryLimit)
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := DefaultConfig()
	root := "/work/repo"

	if got := cfg.StateDir(root); got != "/work/repo/.para/state" {
		t.Errorf("StateDir = %q", got)
	}
	if got := cfg.HistoryPath(root); got != "/work/repo/.para/history.db" {
		t.Errorf("HistoryPath = %q", got)
	}
	if got := cfg.EventsPath(root); got != "/work/repo/.para/events.jsonl" {
		t.Errorf("EventsPath = %q", got)
	}
}
