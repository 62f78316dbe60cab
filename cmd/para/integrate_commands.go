package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"para/internal/config"
	"para/internal/conflict"
	"para/internal/errors"
	"para/internal/git"
	"para/internal/integrate"
	"para/internal/state"
)

func integrateCmd() *cobra.Command {
	var target, strategy, message string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "integrate [session-or-branch]",
		Short: "Land a session branch on its target branch",
		Long: `Integrate lands a session's feature branch on the target branch using
a merge, squash or rebase strategy. Without an argument the current
branch is integrated; a bare name resolves to {prefix}/{name}.

Conflicts pause the integration: resolve the files, stage them, then run
'para continue'. 'para abort' rolls everything back at any point.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, invoked, cfg, err := newManager()
			if err != nil {
				return err
			}

			feature, err := resolveFeatureBranch(invoked, cfg, args)
			if err != nil {
				return err
			}
			targetBranch, err := resolveTargetBranch(invoked, cfg, target)
			if err != nil {
				return err
			}

			req := integrate.Request{
				FeatureBranch: feature,
				TargetBranch:  targetBranch,
				CommitMessage: message,
				DryRun:        dryRun,
			}

			if strategy == "" {
				strategy = cfg.Integrate.DefaultStrategy
			}
			if strategy != "" {
				parsed, err := state.ParseStrategy(strategy)
				if err != nil {
					return err
				}
				req.Strategy = parsed
			} else {
				auto, reason := mgr.DetectBestStrategy(feature, targetBranch)
				fmt.Printf("strategy: %s (%s)\n", strings.ToLower(string(auto)), reason)
				req.Strategy = auto
			}

			res, err := mgr.Execute(req)
			if err != nil {
				return err
			}
			printResult(mgr.Repo(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "target branch (default: configured target or the repository main branch)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "integration strategy: merge, squash or rebase (default: auto-select)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message for the squash or merge commit")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the plan without touching anything")
	return cmd
}

func continueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue",
		Short: "Resume a paused integration after resolving conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, _, err := newManager()
			if err != nil {
				return err
			}

			res, err := mgr.Continue()
			if err != nil {
				return err
			}
			printResult(mgr.Repo(), res)
			return nil
		},
	}
}

func abortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Roll the integration back to its pre-integration state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, _, err := newManager()
			if err != nil {
				return err
			}

			aborted, err := mgr.Abort()
			if err != nil {
				return err
			}
			if !aborted {
				fmt.Println("nothing to abort")
				return nil
			}
			fmt.Println("integration aborted, previous state restored")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active integration, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, _, err := newManager()
			if err != nil {
				return err
			}

			st, err := mgr.Store().Load()
			if err != nil {
				return err
			}
			if st == nil {
				fmt.Println("no integration in progress")
				return nil
			}

			printKeyValues([]keyValue{
				{"session", st.SessionID},
				{"feature", st.FeatureBranch},
				{"target", st.BaseBranch},
				{"strategy", strings.ToLower(string(st.Strategy))},
				{"step", string(st.Step.Kind)},
				{"started", formatWhen(st.CreatedAt)},
			})

			switch st.Step.Kind {
			case state.StepConflictsDetected:
				fmt.Println()
				for _, f := range st.ConflictFiles {
					fmt.Printf("  conflicted: %s\n", f)
				}
				fmt.Println("\nresolve the files, stage them with 'git add', then run 'para continue'")
			case state.StepFailed:
				fmt.Printf("\n  error: %s\n", st.Step.Error)
				fmt.Println("\nroll back with 'para abort'")
			default:
				fmt.Println("\nresume with 'para continue' or roll back with 'para abort'")
			}
			return nil
		},
	}
}

// resolveFeatureBranch turns the CLI argument into a full branch name: a
// bare session name gets the prefix, a name containing a slash is taken
// verbatim, and no argument means the branch the command was run from.
func resolveFeatureBranch(invoked *git.Repo, cfg *config.Config, args []string) (string, error) {
	const op = "para.integrate"

	var branch string
	switch {
	case len(args) == 0:
		current, err := invoked.CurrentBranch()
		if err != nil {
			return "", errors.GitFailed(op, err)
		}
		if !strings.HasPrefix(current, cfg.BranchPrefix+"/") {
			return "", errors.E(errors.Op(op), errors.KindInvalidArgs,
				fmt.Sprintf("current branch %s is not a %s session branch; name the session to integrate", current, cfg.BranchPrefix))
		}
		branch = current
	case strings.Contains(args[0], "/"):
		branch = args[0]
	default:
		branch = cfg.BranchPrefix + "/" + args[0]
	}

	if !invoked.BranchExists(branch) {
		return "", errors.BranchNotFound(branch)
	}
	return branch, nil
}

// resolveTargetBranch applies the --target flag, the configured default and
// finally the repository's main branch, in that order.
func resolveTargetBranch(invoked *git.Repo, cfg *config.Config, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.DefaultTarget != "" {
		return cfg.DefaultTarget, nil
	}
	main, err := invoked.MainBranch()
	if err != nil {
		return "", errors.GitFailed("para.integrate", err)
	}
	return main, nil
}

// printResult renders an engine result. Conflicts are a pause, not a
// failure, so they print the resolution summary and exit zero.
func printResult(repo *git.Repo, res integrate.Result) {
	switch res.Kind {
	case integrate.KindDryRun:
		fmt.Print(res.Preview)
	case integrate.KindConflictsPending:
		summary, err := conflict.SummaryFor(repo, res.Files)
		if err != nil {
			fmt.Println("conflicts detected:")
			for _, f := range res.Files {
				fmt.Printf("  %s\n", f)
			}
			fmt.Println("\nresolve the files, stage them with 'git add', then run 'para continue'")
			return
		}
		fmt.Print(summary)
	case integrate.KindSuccess:
		fmt.Printf("integrated into %s\n", res.FinalBranch)
	}
}

// formatWhen renders an RFC 3339 timestamp with a relative age.
func formatWhen(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04:05"), humanize.Time(t))
}
