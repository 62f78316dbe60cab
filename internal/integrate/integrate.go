// Package integrate lands a session's feature branch on its target branch
// through an explicit, resumable state machine. Every position is persisted
// before the git operation that moves past it, so a conflict or a crash
// leaves a state file describing exactly where the integration stopped and
// what abort must restore.
package integrate

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"para/internal/archive"
	"para/internal/config"
	"para/internal/conflict"
	"para/internal/errors"
	"para/internal/events"
	"para/internal/git"
	"para/internal/history"
	"para/internal/logger"
	"para/internal/notify"
	"para/internal/state"
)

// Request describes one integration.
type Request struct {
	// SessionID is the display name; derived from FeatureBranch when empty.
	SessionID     string
	FeatureBranch string
	TargetBranch  string
	// Strategy empty means auto-select via DetectBestStrategy.
	Strategy      state.Strategy
	CommitMessage string
	DryRun        bool
}

// ResultKind discriminates the outcomes of Execute and Continue.
type ResultKind int

const (
	// KindSuccess: the feature landed on the target branch.
	KindSuccess ResultKind = iota
	// KindConflictsPending: the integration is paused on conflicted files
	// and stays active until Continue or Abort.
	KindConflictsPending
	// KindDryRun: preview only, nothing was touched.
	KindDryRun
)

// Result is the outcome of Execute or Continue. Unrecoverable failures are
// returned as errors and recorded on disk as the Failed step; conflicts are
// data, never errors.
type Result struct {
	Kind        ResultKind
	FinalBranch string   // Success
	Files       []string // ConflictsPending
	Preview     string   // DryRun
}

// SessionName derives the name a feature branch integrates under: the
// branch with the configured prefix stripped.
func SessionName(prefix, branch string) string {
	return strings.TrimPrefix(branch, prefix+"/")
}

// Manager drives integrations for one repository. All methods are
// synchronous; the persisted state file is the single-flight guard across
// processes.
type Manager struct {
	repo     *git.Repo
	store    *state.Store
	cfg      *config.Config
	events   *events.Logger
	notifier *notify.Notifier
	log      *slog.Logger
}

// New builds a Manager whose state store and event journal live under the
// repository's data directory.
func New(repo *git.Repo, cfg *config.Config) *Manager {
	root := repo.Root()
	return &Manager{
		repo:     repo,
		store:    state.NewStore(cfg.StateDir(root)),
		cfg:      cfg,
		events:   events.NewLogger(cfg.EventsPath(root)),
		notifier: notify.New(cfg.Notifications),
		log:      logger.ComponentLogger("integrate"),
	}
}

// Store exposes the state store for status and cleanup callers.
func (m *Manager) Store() *state.Store {
	return m.store
}

// Repo exposes the repository handle the manager operates on.
func (m *Manager) Repo() *git.Repo {
	return m.repo
}

// Execute runs one integration end to end. It returns ConflictsPending when
// the strategy stops on conflicted files; the integration then stays active
// until Continue or Abort.
func (m *Manager) Execute(req Request) (Result, error) {
	const op = "integrate.Execute"

	if err := m.validate(&req); err != nil {
		return Result{}, err
	}

	if req.Strategy == "" {
		strategy, reason := m.DetectBestStrategy(req.FeatureBranch, req.TargetBranch)
		req.Strategy = strategy
		m.log.Info("strategy auto-selected", "strategy", strategy, "reason", reason)
	}

	if req.DryRun {
		preview, err := m.Preview(req)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindDryRun, Preview: preview}, nil
	}

	cur, err := m.store.Load()
	if err != nil {
		return Result{}, err
	}
	if cur != nil {
		return Result{}, errors.IntegrationInProgress(cur.SessionID)
	}

	if err := m.repo.EnsureExcluded("/" + m.cfg.DataDirName + "/"); err != nil {
		return Result{}, errors.E(errors.Op(op), errors.KindFileOp, err)
	}
	dirty, err := m.repo.HasUncommittedChanges()
	if err != nil {
		return Result{}, errors.GitFailed(op, err)
	}
	if dirty {
		return Result{}, errors.E(errors.Op(op), errors.KindGit,
			"working tree has uncommitted changes; commit or stash them before integrating")
	}

	st, err := m.begin(req)
	if err != nil {
		return Result{}, err
	}
	m.journal(m.events.LogStarted(st.SessionID, st.FeatureBranch, st.BaseBranch, string(st.Strategy)))
	m.log.Info("integration started",
		"session", st.SessionID, "feature", st.FeatureBranch,
		"target", st.BaseBranch, "strategy", st.Strategy)

	return m.advance(st)
}

// Continue resumes a paused integration after the operator resolved the
// conflicted files. Safe to call repeatedly: while conflicts remain it
// reports them again without changing any state.
func (m *Manager) Continue() (Result, error) {
	const op = "integrate.Continue"

	st, err := m.store.Load()
	if err != nil {
		return Result{}, err
	}
	if st == nil {
		return Result{}, errors.NoActiveIntegration(op)
	}

	switch st.Step.Kind {
	case state.StepConflictsDetected:
		files, err := conflict.Detect(m.repo)
		if err != nil {
			return m.fail(st, err)
		}
		if len(files) > 0 {
			return Result{Kind: KindConflictsPending, Files: files}, nil
		}
		st.Step = state.ConflictsResolved()
		if err := m.store.Save(st); err != nil {
			return Result{}, err
		}
		m.journal(m.events.LogResumed(st.SessionID))
		m.log.Info("conflicts resolved, resuming", "session", st.SessionID)
	case state.StepConflictsResolved:
		// Crashed between persisting the resolution and finishing; resume.
	default:
		return Result{}, errors.E(errors.Op(op), errors.KindInvalidArgs,
			fmt.Sprintf("integration is at step %s; 'para continue' applies only after conflicts", st.Step))
	}

	conflicted, err := m.finishPending(st)
	if err != nil {
		return m.fail(st, err)
	}
	if conflicted {
		// The rebase stopped on its next round of conflicts.
		return m.pause(st)
	}

	// A paused merge finished with its merge commit; squash and rebase
	// still need their fast-forward onto the target.
	if st.Strategy == state.StrategyMerge {
		return m.complete(st)
	}
	conflicted, err = m.integrate(st)
	if err != nil {
		return m.fail(st, err)
	}
	if conflicted {
		return m.pause(st)
	}
	return m.complete(st)
}

// Abort rolls the repository back to its pre-integration state: any
// in-flight merge or rebase is cancelled, the target branch returns to its
// original tip, and every scratch and backup branch is deleted. It reports
// false when there is nothing to abort, so calling it twice is harmless.
// Abort works from any step, including Failed.
func (m *Manager) Abort() (bool, error) {
	const op = "integrate.Abort"

	st, err := m.store.Load()
	if err != nil {
		return false, err
	}
	if st == nil {
		return false, nil
	}

	if m.repo.RebaseInProgress() {
		if err := m.repo.AbortRebase(); err != nil {
			return false, errors.GitFailed(op, err)
		}
	}
	if m.repo.MergeInProgress() {
		if err := m.repo.AbortMerge(); err != nil {
			return false, errors.GitFailed(op, err)
		}
	}
	// Staged squashes and half-resolved files go with the reset.
	if err := m.repo.AbortSquash(); err != nil {
		return false, errors.GitFailed(op, err)
	}

	if err := m.repo.Checkout(st.BaseBranch); err != nil {
		return false, errors.GitFailed(op, err)
	}
	if err := m.repo.ResetHard(st.OriginalHeadCommit); err != nil {
		return false, errors.GitFailed(op, err)
	}

	for _, tmp := range st.TempBranches {
		if !m.repo.BranchExists(tmp) {
			continue
		}
		if err := m.repo.DeleteBranch(tmp); err != nil {
			m.log.Warn("deleting scratch branch", "branch", tmp, "error", err)
		}
	}
	if st.BackupBranch != "" && m.repo.BranchExists(st.BackupBranch) {
		if err := m.repo.DeleteBranch(st.BackupBranch); err != nil {
			m.log.Warn("deleting backup branch", "branch", st.BackupBranch, "error", err)
		}
	}

	if err := m.store.Clear(); err != nil {
		return false, err
	}
	m.journal(m.events.LogAborted(st.SessionID))
	m.notifier.Aborted(st.SessionID)
	m.recordHistory(st, history.ResultAborted)
	m.log.Info("integration aborted", "session", st.SessionID)
	return true, nil
}

// DetectBestStrategy picks a strategy for callers that do not pin one.
// Squash is the default; merge is chosen only when the branch reads as a
// curated sequence worth preserving. Rebase is never auto-selected because
// it rewrites commit identity.
func (m *Manager) DetectBestStrategy(feature, target string) (state.Strategy, string) {
	subjects, err := m.repo.CommitSubjects(target, feature)
	if err != nil || len(subjects) <= 1 {
		return state.StrategySquash, "squash keeps the target history linear"
	}
	for _, subject := range subjects {
		s := strings.ToLower(subject)
		if strings.HasPrefix(s, "wip") || strings.HasPrefix(s, "fixup!") ||
			strings.HasPrefix(s, "squash!") || strings.HasPrefix(s, "tmp") {
			return state.StrategySquash,
				fmt.Sprintf("%d commits include work-in-progress subjects; squashing them", len(subjects))
		}
	}
	return state.StrategyMerge,
		fmt.Sprintf("%d well-formed commits are worth preserving as history", len(subjects))
}

// Preview renders the numbered plan Execute would follow, using only
// read-only lookups against the repository.
func (m *Manager) Preview(req Request) (string, error) {
	n, err := m.repo.CommitsAhead(req.TargetBranch, req.FeatureBranch)
	if err != nil {
		return "", errors.GitFailed("integrate.Preview", err)
	}

	steps := []string{"create a backup branch at the current HEAD"}
	if m.cfg.Integrate.AutoFetch && m.repo.HasRemote("origin") {
		steps = append(steps, fmt.Sprintf("check out %s and fast-forward from origin", req.TargetBranch))
	} else {
		steps = append(steps, fmt.Sprintf("check out %s (no remote to fetch)", req.TargetBranch))
	}
	commits := fmt.Sprintf("%d commit%s", n, plural(n))
	switch req.Strategy {
	case state.StrategySquash:
		steps = append(steps,
			fmt.Sprintf("squash %s from %s into one on a scratch branch", commits, req.FeatureBranch),
			fmt.Sprintf("fast-forward %s to the squashed commit", req.TargetBranch),
			"delete scratch and backup branches")
	case state.StrategyRebase:
		steps = append(steps,
			fmt.Sprintf("replay %s from %s onto %s on a scratch branch", commits, req.FeatureBranch, req.TargetBranch),
			fmt.Sprintf("fast-forward %s to the rebased tip", req.TargetBranch),
			"delete scratch and backup branches")
	case state.StrategyMerge:
		steps = append(steps,
			fmt.Sprintf("merge %s into %s as a merge commit (%s)", req.FeatureBranch, req.TargetBranch, commits),
			"delete the backup branch")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "dry run: integrate %s into %s using %s\n", req.FeatureBranch, req.TargetBranch, req.Strategy)
	for i, step := range steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}
	b.WriteString("no branches, refs, or state were modified\n")
	return b.String(), nil
}

func (m *Manager) validate(req *Request) error {
	const op = "integrate.Execute"
	if req.FeatureBranch == "" {
		return errors.E(errors.Op(op), errors.KindInvalidArgs, "feature branch must not be empty")
	}
	if req.TargetBranch == "" {
		return errors.E(errors.Op(op), errors.KindInvalidArgs, "target branch must not be empty")
	}
	if req.FeatureBranch == req.TargetBranch {
		return errors.E(errors.Op(op), errors.KindInvalidArgs,
			fmt.Sprintf("cannot integrate %s into itself", req.FeatureBranch))
	}
	if req.Strategy != "" {
		parsed, err := state.ParseStrategy(string(req.Strategy))
		if err != nil {
			return err
		}
		req.Strategy = parsed
	}
	if !m.repo.BranchExists(req.FeatureBranch) {
		return errors.BranchNotFound(req.FeatureBranch)
	}
	if !m.repo.BranchExists(req.TargetBranch) {
		return errors.BranchNotFound(req.TargetBranch)
	}
	if req.SessionID == "" {
		req.SessionID = SessionName(m.cfg.BranchPrefix, req.FeatureBranch)
	}
	return nil
}

// begin captures rollback information and persists the Started step. The
// backup branch pins the exact HEAD the repository had before any mutation;
// original_head_commit pins the target tip abort must restore.
func (m *Manager) begin(req Request) (*state.IntegrationState, error) {
	const op = "integrate.Execute"

	originalHead, err := m.repo.BranchCommit(req.TargetBranch)
	if err != nil {
		return nil, err
	}
	currentHead, err := m.repo.HeadCommit()
	if err != nil {
		return nil, errors.GitFailed(op, err)
	}

	backup := fmt.Sprintf("%s/backup/%s/%s", m.cfg.BranchPrefix, archive.Now(), req.SessionID)
	if err := m.repo.CreateBranch(backup, currentHead); err != nil {
		return nil, errors.GitFailed(op, err)
	}

	st := &state.IntegrationState{
		SessionID:          req.SessionID,
		FeatureBranch:      req.FeatureBranch,
		BaseBranch:         req.TargetBranch,
		Strategy:           req.Strategy,
		CommitMessage:      req.CommitMessage,
		CreatedAt:          state.NowRFC3339(),
		Step:               state.Started(),
		OriginalHeadCommit: originalHead,
		OriginalWorkingDir: m.repo.Root(),
		BackupBranch:       backup,
	}
	if err := m.store.Save(st); err != nil {
		_ = m.repo.DeleteBranch(backup)
		return nil, err
	}
	return st, nil
}

// advance drives an integration from Started to completion, pausing on the
// first conflict.
func (m *Manager) advance(st *state.IntegrationState) (Result, error) {
	if err := m.updateBase(st); err != nil {
		return m.fail(st, err)
	}

	conflicted, err := m.prepare(st)
	if err != nil {
		return m.fail(st, err)
	}
	if conflicted {
		return m.pause(st)
	}

	conflicted, err = m.integrate(st)
	if err != nil {
		return m.fail(st, err)
	}
	if conflicted {
		return m.pause(st)
	}

	return m.complete(st)
}

// updateBase checks out the target branch and brings it up to date with its
// remote counterpart when one exists. The original head captured in begin is
// deliberately not refreshed: abort restores the pre-integration tip, not
// the fetched one.
func (m *Manager) updateBase(st *state.IntegrationState) error {
	const op = "integrate.Execute"

	if err := m.repo.Checkout(st.BaseBranch); err != nil {
		return errors.GitFailed(op, err)
	}
	if m.cfg.Integrate.AutoFetch && m.repo.HasRemote("origin") {
		if err := m.repo.Fetch("origin", st.BaseBranch); err != nil {
			// Offline is fine; integrate against the local tip.
			m.log.Warn("fetch failed, integrating against local tip", "error", err)
		} else if err := m.repo.FastForward("origin/" + st.BaseBranch); err != nil {
			return errors.GitFailed(op, err)
		}
	}

	st.Step = state.BaseBranchUpdated()
	return m.store.Save(st)
}

// prepare readies the feature side for the chosen strategy. Squash and
// rebase rewrite on a scratch branch so the session branch itself is never
// modified; the scratch name is persisted before the rewrite runs so abort
// can always find it. Returns true when the rewrite stopped on conflicts.
func (m *Manager) prepare(st *state.IntegrationState) (bool, error) {
	const op = "integrate.Execute"

	switch st.Strategy {
	case state.StrategyMerge:
		// No rewrite; the merge itself happens in the integrate step.

	case state.StrategySquash:
		scratch := m.scratchBranch("squash")
		st.TempBranches = append(st.TempBranches, scratch)
		if err := m.store.Save(st); err != nil {
			return false, err
		}
		if err := m.repo.CheckoutNew(scratch, st.BaseBranch); err != nil {
			return false, errors.GitFailed(op, err)
		}
		conflicted, err := m.repo.MergeSquash(st.FeatureBranch)
		if err != nil {
			return false, errors.GitFailed(op, err)
		}
		if conflicted {
			return true, nil
		}
		if err := m.commitSquash(st); err != nil {
			return false, err
		}

	case state.StrategyRebase:
		scratch := m.scratchBranch("rebase")
		st.TempBranches = append(st.TempBranches, scratch)
		if err := m.store.Save(st); err != nil {
			return false, err
		}
		if err := m.repo.CheckoutNew(scratch, st.FeatureBranch); err != nil {
			return false, errors.GitFailed(op, err)
		}
		conflicted, err := m.repo.RebaseOnto(st.BaseBranch)
		if err != nil {
			return false, errors.GitFailed(op, err)
		}
		if conflicted {
			return true, nil
		}
	}

	st.Step = state.FeatureBranchPrepared()
	return false, m.store.Save(st)
}

// integrate lands the prepared work on the target branch. Returns true when
// the merge stopped on conflicts.
func (m *Manager) integrate(st *state.IntegrationState) (bool, error) {
	const op = "integrate.Execute"

	switch st.Strategy {
	case state.StrategyMerge:
		message := st.CommitMessage
		if message == "" {
			message = fmt.Sprintf("Merge branch '%s' into %s", st.FeatureBranch, st.BaseBranch)
		}
		conflicted, err := m.repo.Merge(st.FeatureBranch, message, true)
		if err != nil {
			return false, errors.GitFailed(op, err)
		}
		return conflicted, nil

	case state.StrategySquash, state.StrategyRebase:
		if len(st.TempBranches) == 0 {
			return false, errors.E(errors.Op(op), errors.KindInvalidArgs,
				fmt.Sprintf("no scratch branch recorded for %s", st.Strategy))
		}
		if err := m.repo.Checkout(st.BaseBranch); err != nil {
			return false, errors.GitFailed(op, err)
		}
		scratch := st.TempBranches[len(st.TempBranches)-1]
		if err := m.repo.FastForward(scratch); err != nil {
			return false, errors.GitFailed(op, err)
		}
	}
	return false, nil
}

// finishPending completes whatever git operation a conflict interrupted.
// The operator may already have finished it by hand (git commit after a
// merge, git rebase --continue), so every branch tolerates nothing being in
// flight. Returns true when a rebase stopped on its next conflict.
func (m *Manager) finishPending(st *state.IntegrationState) (bool, error) {
	const op = "integrate.Continue"

	switch {
	case m.repo.RebaseInProgress():
		conflicted, err := m.repo.ContinueRebase()
		if err != nil {
			return false, errors.GitFailed(op, err)
		}
		return conflicted, nil
	case m.repo.SquashInProgress():
		if err := m.commitSquash(st); err != nil {
			return false, err
		}
	case m.repo.MergeInProgress():
		if err := m.repo.CommitNoEdit(); err != nil {
			return false, errors.GitFailed(op, err)
		}
	}
	return false, nil
}

// commitSquash records the staged squash as a single commit. An empty diff
// (feature already contained in target) skips the commit.
func (m *Manager) commitSquash(st *state.IntegrationState) error {
	const op = "integrate.Execute"

	staged, err := m.repo.HasStagedChanges()
	if err != nil {
		return errors.GitFailed(op, err)
	}
	if !staged {
		m.log.Info("squash produced no changes", "feature", st.FeatureBranch)
		return nil
	}
	if err := m.repo.Commit(m.squashMessage(st)); err != nil {
		return errors.GitFailed(op, err)
	}
	return nil
}

// squashMessage prefers the caller's message and otherwise synthesizes one
// from the collapsed commit count.
func (m *Manager) squashMessage(st *state.IntegrationState) string {
	if st.CommitMessage != "" {
		return st.CommitMessage
	}
	n, err := m.repo.CommitsAhead(st.BaseBranch, st.FeatureBranch)
	if err != nil || n == 0 {
		return fmt.Sprintf("Integrate %s", st.SessionID)
	}
	return fmt.Sprintf("Integrate %s (%d commit%s squashed)", st.SessionID, n, plural(n))
}

// pause persists the conflict position and reports it to the caller.
func (m *Manager) pause(st *state.IntegrationState) (Result, error) {
	files, err := conflict.Detect(m.repo)
	if err != nil {
		return m.fail(st, err)
	}
	st.Step = state.ConflictsDetected(files)
	st.ConflictFiles = files
	if err := m.store.Save(st); err != nil {
		return Result{}, err
	}
	m.journal(m.events.LogConflicts(st.SessionID, files))
	m.notifier.Conflicts(st.SessionID, len(files))
	m.log.Info("integration paused on conflicts", "session", st.SessionID, "files", len(files))
	return Result{Kind: KindConflictsPending, Files: files}, nil
}

// fail persists the Failed step so the operator can inspect what happened;
// only abort clears a failed integration.
func (m *Manager) fail(st *state.IntegrationState, cause error) (Result, error) {
	st.Step = state.Failed(cause.Error())
	if err := m.store.Save(st); err != nil {
		m.log.Error("persisting failure", "error", err)
	}
	m.journal(m.events.LogFailed(st.SessionID, cause.Error()))
	m.notifier.Failed(st.SessionID, cause.Error())
	m.recordHistory(st, history.ResultFailed)
	m.log.Error("integration failed", "session", st.SessionID, "error", cause)
	return Result{}, cause
}

// complete is the clean finish: scratch and backup branches dissolve, the
// state file disappears, and the repository ends up on the target branch.
// Branch deletion is best effort since the work has already landed; strays
// are caught by para clean.
func (m *Manager) complete(st *state.IntegrationState) (Result, error) {
	for _, tmp := range st.TempBranches {
		if err := m.repo.DeleteBranch(tmp); err != nil {
			m.log.Warn("deleting scratch branch", "branch", tmp, "error", err)
		}
	}
	if st.BackupBranch != "" {
		if err := m.repo.DeleteBranch(st.BackupBranch); err != nil {
			m.log.Warn("deleting backup branch", "branch", st.BackupBranch, "error", err)
		}
	}
	if err := m.store.Clear(); err != nil {
		return Result{}, err
	}
	m.journal(m.events.LogCompleted(st.SessionID, st.BaseBranch, string(st.Strategy)))
	m.notifier.Completed(st.SessionID, st.BaseBranch)
	m.recordHistory(st, history.ResultCompleted)
	m.log.Info("integration complete", "session", st.SessionID, "final", st.BaseBranch)
	return Result{Kind: KindSuccess, FinalBranch: st.BaseBranch}, nil
}

func (m *Manager) scratchBranch(kind string) string {
	return fmt.Sprintf("%s/tmp/%s-%s", m.cfg.BranchPrefix, kind, uuid.NewString()[:8])
}

// journal records an event, logging rather than failing on journal errors.
func (m *Manager) journal(err error) {
	if err != nil {
		m.log.Warn("event journal write failed", "error", err)
	}
}

// recordHistory appends a finished integration to the history database.
// Best effort: history is bookkeeping, not state.
func (m *Manager) recordHistory(st *state.IntegrationState, result history.Result) {
	started, err := time.Parse(time.RFC3339, st.CreatedAt)
	if err != nil {
		started = time.Now().UTC()
	}
	hs, err := history.Open(m.cfg.HistoryPath(m.repo.Root()))
	if err != nil {
		m.log.Warn("history store unavailable", "error", err)
		return
	}
	defer hs.Close()

	if _, err := hs.Add(&history.Record{
		SessionID:     st.SessionID,
		FeatureBranch: st.FeatureBranch,
		BaseBranch:    st.BaseBranch,
		Strategy:      string(st.Strategy),
		Result:        result,
		ConflictCount: len(st.ConflictFiles),
		StartedAt:     started,
	}); err != nil {
		m.log.Warn("recording history", "error", err)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
