// Package cleanup finds and removes integration leftovers: scratch and
// backup branches no integration references, stale failed state, and
// archived branches past their retention window. Anything named by an
// active integration is off limits.
package cleanup

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"para/internal/archive"
	"para/internal/config"
	"para/internal/errors"
	"para/internal/events"
	"para/internal/git"
	"para/internal/logger"
	"para/internal/state"
)

// failedStateMaxAge is how long a Failed integration is kept for inspection
// before the scanner offers to remove it.
const failedStateMaxAge = 7 * 24 * time.Hour

// ItemKind discriminates what a cleanup item removes.
type ItemKind int

const (
	// StaleBranch is a scratch or backup branch with no integration
	// referencing it.
	StaleBranch ItemKind = iota
	// OrphanedStateFile is integration state nothing will resume: a Failed
	// record past failedStateMaxAge, or scratch areas with no state file.
	OrphanedStateFile
	// OldArchive is an archived branch older than the retention window.
	OldArchive
)

func (k ItemKind) String() string {
	switch k {
	case StaleBranch:
		return "stale branch"
	case OrphanedStateFile:
		return "orphaned state"
	case OldArchive:
		return "old archive"
	}
	return "unknown"
}

// Item is one removable leftover. Branch is set for StaleBranch and
// OldArchive, Path for OrphanedStateFile.
type Item struct {
	Kind   ItemKind
	Branch string
	Path   string
	Reason string
}

// Description renders the item for the dry-run plan.
func (it Item) Description() string {
	switch it.Kind {
	case StaleBranch:
		return fmt.Sprintf("delete branch %s (%s)", it.Branch, it.Reason)
	case OrphanedStateFile:
		return fmt.Sprintf("remove %s (%s)", it.Path, it.Reason)
	case OldArchive:
		return fmt.Sprintf("delete archive %s (%s)", it.Branch, it.Reason)
	}
	return ""
}

// Options controls what Scan looks for.
type Options struct {
	// IncludeArchives adds archived branches older than the configured
	// retention to the plan. Off by default: archives are the recovery
	// safety net.
	IncludeArchives bool
}

// Scanner walks one repository for leftovers.
type Scanner struct {
	repo   *git.Repo
	store  *state.Store
	cfg    *config.Config
	events *events.Logger
	log    *slog.Logger
}

// New builds a Scanner sharing the engine's state store.
func New(repo *git.Repo, store *state.Store, cfg *config.Config) *Scanner {
	return &Scanner{
		repo:   repo,
		store:  store,
		cfg:    cfg,
		events: events.NewLogger(cfg.EventsPath(repo.Root())),
		log:    logger.ComponentLogger("cleanup"),
	}
}

// Scan returns everything that can be removed without touching an active
// integration. Branches named in a live state file's temp_branches or
// backup_branch are never offered; a stale Failed state stops protecting
// its branches because the plan removes the state itself.
func (s *Scanner) Scan(opts Options) ([]Item, error) {
	const op = "cleanup.Scan"

	st, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var items []Item

	protected := make(map[string]bool)
	if st != nil {
		if created, stale := staleFailed(st, now); stale {
			items = append(items, Item{
				Kind:   OrphanedStateFile,
				Path:   s.store.Path(),
				Reason: fmt.Sprintf("failed integration from %s", humanize.Time(created)),
			})
		} else {
			for _, b := range st.TempBranches {
				protected[b] = true
			}
			if st.BackupBranch != "" {
				protected[st.BackupBranch] = true
			}
		}
	} else if s.scratchLitter() {
		items = append(items, Item{
			Kind:   OrphanedStateFile,
			Path:   s.store.Dir(),
			Reason: "conflict and backup scratch areas with no integration state",
		})
	}

	for _, segment := range []string{"tmp", "backup"} {
		branches, err := s.repo.ListBranchesWithPrefix(fmt.Sprintf("%s/%s/", s.cfg.BranchPrefix, segment))
		if err != nil {
			return nil, errors.GitFailed(op, err)
		}
		for _, branch := range branches {
			if protected[branch] {
				continue
			}
			items = append(items, Item{
				Kind:   StaleBranch,
				Branch: branch,
				Reason: "no integration references it",
			})
		}
	}

	if opts.IncludeArchives && s.cfg.ArchiveRetentionDays > 0 {
		branches, err := s.repo.ListBranchesWithPrefix(s.cfg.BranchPrefix + "/")
		if err != nil {
			return nil, errors.GitFailed(op, err)
		}
		cutoff := now.AddDate(0, 0, -s.cfg.ArchiveRetentionDays)
		for _, info := range archive.Filter(s.cfg.BranchPrefix, branches) {
			t, err := time.Parse(archive.TimestampFormat, info.Timestamp)
			if err != nil {
				continue
			}
			if t.Before(cutoff) {
				items = append(items, Item{
					Kind:   OldArchive,
					Branch: info.FullBranchName,
					Reason: fmt.Sprintf("archived %s, retention is %d days", humanize.Time(t), s.cfg.ArchiveRetentionDays),
				})
			}
		}
	}

	return items, nil
}

// Apply removes the scanned items. Failures are logged and skipped so one
// undeletable branch does not strand the rest of the plan.
func (s *Scanner) Apply(items []Item) (int, error) {
	const op = "cleanup.Apply"

	applied, failed := 0, 0
	for _, item := range items {
		if err := s.applyOne(item); err != nil {
			failed++
			s.log.Warn("cleanup item failed", "item", item.Description(), "error", err)
			continue
		}
		applied++
		s.log.Info("cleaned", "item", item.Description())
	}

	if applied > 0 {
		if err := s.events.LogCleanup(fmt.Sprintf("removed %d of %d items", applied, len(items))); err != nil {
			s.log.Warn("event journal write failed", "error", err)
		}
	}
	if failed > 0 {
		return applied, errors.E(errors.Op(op), errors.KindFileOp,
			fmt.Sprintf("%d of %d cleanup items failed", failed, len(items)))
	}
	return applied, nil
}

func (s *Scanner) applyOne(item Item) error {
	switch item.Kind {
	case StaleBranch, OldArchive:
		if !s.repo.BranchExists(item.Branch) {
			return nil
		}
		return s.repo.DeleteBranch(item.Branch)
	case OrphanedStateFile:
		return s.store.CleanupAll()
	}
	return errors.E(errors.Op("cleanup.Apply"), errors.KindInvalidArgs,
		fmt.Sprintf("unknown cleanup item kind %d", item.Kind))
}

// scratchLitter reports whether conflicts/ or backups/ hold anything while
// no state file exists.
func (s *Scanner) scratchLitter() bool {
	for _, dir := range []string{s.store.ConflictsDir(), s.store.BackupsDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		if len(entries) > 0 {
			return true
		}
	}
	return false
}

// staleFailed reports whether a persisted integration is a Failed record old
// enough that nobody is coming back for it.
func staleFailed(st *state.IntegrationState, now time.Time) (time.Time, bool) {
	if st.Step.Kind != state.StepFailed {
		return time.Time{}, false
	}
	created, err := time.Parse(time.RFC3339, st.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return created, now.Sub(created) > failedStateMaxAge
}
