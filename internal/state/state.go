// Package state persists the single in-progress integration per
// repository. The state file doubles as the integration lock: its
// presence at a fixed path is what "an integration is active" means.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"para/internal/errors"
)

// StateFileName is the singleton state file inside the state directory.
const StateFileName = "integration_state.json"

// Strategy selects how a feature branch folds into its target.
type Strategy string

const (
	StrategyMerge  Strategy = "Merge"
	StrategySquash Strategy = "Squash"
	StrategyRebase Strategy = "Rebase"
)

// ParseStrategy reads a strategy from CLI or config spelling.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "merge":
		return StrategyMerge, nil
	case "squash":
		return StrategySquash, nil
	case "rebase":
		return StrategyRebase, nil
	default:
		return "", errors.E(errors.Op("state.ParseStrategy"), errors.KindInvalidArgs,
			fmt.Sprintf("unknown strategy %q (expected merge, squash or rebase)", s))
	}
}

func (s Strategy) String() string {
	return string(s)
}

// IntegrationState is the durable record of one in-progress integration.
// At most one exists per repository.
type IntegrationState struct {
	SessionID     string   `json:"session_id"`
	FeatureBranch string   `json:"feature_branch"`
	BaseBranch    string   `json:"base_branch"`
	Strategy      Strategy `json:"strategy"`

	// ConflictFiles mirrors Step's payload and is non-empty only while
	// Step.Kind == StepConflictsDetected.
	ConflictFiles []string `json:"conflict_files"`

	CommitMessage string `json:"commit_message,omitempty"`
	CreatedAt     string `json:"created_at"`
	Step          Step   `json:"step"`

	// Captured once before the first destructive git operation; abort
	// uses them to restore the pre-integration state.
	OriginalHeadCommit string `json:"original_head_commit"`
	OriginalWorkingDir string `json:"original_working_dir"`
	BackupBranch       string `json:"backup_branch"`

	// TempBranches lists scratch branches created during execution; every
	// entry is deleted on success, failure cleanup or abort.
	TempBranches []string `json:"temp_branches"`
}

// NowRFC3339 returns the current UTC time in RFC 3339 form.
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Store reads and writes integration state under one directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. Nothing is created until
// EnsureStateDir or Save runs.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the state file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, StateFileName)
}

// ConflictsDir returns the scratch area for conflict artifacts.
func (s *Store) ConflictsDir() string {
	return filepath.Join(s.dir, "conflicts")
}

// BackupsDir returns the scratch area for backup artifacts.
func (s *Store) BackupsDir() string {
	return filepath.Join(s.dir, "backups")
}

// EnsureStateDir creates the state directory and its scratch sub-areas.
func (s *Store) EnsureStateDir() error {
	for _, dir := range []string{s.dir, s.ConflictsDir(), s.BackupsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.E(errors.Op("state.EnsureStateDir"), errors.KindFileOp,
				fmt.Sprintf("creating %s", dir), err)
		}
	}
	return nil
}

// Save writes the state as pretty-printed JSON, replacing the whole file.
func (s *Store) Save(st *IntegrationState) error {
	if err := s.EnsureStateDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.E(errors.Op("state.Save"), errors.KindSerialization, err)
	}
	if err := os.WriteFile(s.Path(), data, 0644); err != nil {
		return errors.E(errors.Op("state.Save"), errors.KindFileOp, err)
	}
	return nil
}

// Load reads the persisted state. A missing file returns (nil, nil):
// absence is the normal "no integration running" answer, not an error. A
// file that exists but cannot be parsed is a hard serialization error;
// silently treating lost state as "nothing in progress" could hide a
// half-finished integration.
func (s *Store) Load() (*IntegrationState, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.E(errors.Op("state.Load"), errors.KindFileOp, err)
	}

	var st IntegrationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.StateCorrupt(s.Path(), err)
	}
	return &st, nil
}

// Clear removes the state file. Clearing an absent file is a no-op.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return errors.E(errors.Op("state.Clear"), errors.KindFileOp, err)
	}
	return nil
}

// HasActive reports whether an integration is in progress. This is an
// existence check only; it never parses the file.
func (s *Store) HasActive() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// UpdateStep loads the current state, moves it to the given step and saves
// it back. ConflictFiles is kept in lockstep with the step payload.
func (s *Store) UpdateStep(step Step) (*IntegrationState, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.NoActiveIntegration("state.UpdateStep")
	}

	st.Step = step
	if step.Kind == StepConflictsDetected {
		st.ConflictFiles = step.Files
	} else {
		st.ConflictFiles = nil
	}

	if err := s.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

// CleanupAll removes the state file and the conflicts/ and backups/
// scratch areas wholesale.
func (s *Store) CleanupAll() error {
	if err := s.Clear(); err != nil {
		return err
	}
	for _, dir := range []string{s.ConflictsDir(), s.BackupsDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return errors.E(errors.Op("state.CleanupAll"), errors.KindFileOp,
				fmt.Sprintf("removing %s", dir), err)
		}
	}
	return nil
}
