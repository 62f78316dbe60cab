package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"para/internal/archive"
	"para/internal/errors"
	"para/internal/events"
	"para/internal/logger"
)

func archivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archives",
		Short: "List archived session branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, repo, err := loadEnv()
			if err != nil {
				return err
			}
			branches, err := repo.ListBranchesWithPrefix(cfg.BranchPrefix + "/")
			if err != nil {
				return err
			}
			infos := archive.Filter(cfg.BranchPrefix, branches)
			if len(infos) == 0 {
				printEmptyMessage("no archived sessions")
				return nil
			}

			columns := []table.Column{
				{Title: "Session", Width: 20},
				{Title: "Archived", Width: 18},
				{Title: "Age", Width: 14},
				{Title: "Branch", Width: 44},
			}
			rows := make([]table.Row, 0, len(infos))
			for _, info := range infos {
				archived, age := formatArchiveTimestamp(info.Timestamp)
				rows = append(rows, table.Row{info.SessionName, archived, age, info.FullBranchName})
			}
			printTable(fmt.Sprintf("Archived sessions (%d)", len(infos)), columns, rows)
			return nil
		},
	}
}

func recoverCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "recover <session>",
		Short: "Restore a session branch from its newest archive",
		Long: `Recover recreates {prefix}/{session} from the newest archived copy of
the session. With --to it also checks the recovered branch out into a
new worktree at the given path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const op = "para.recover"
			cfg, _, repo, err := loadEnv()
			if err != nil {
				return err
			}
			session := args[0]

			branches, err := repo.ListBranchesWithPrefix(cfg.BranchPrefix + "/")
			if err != nil {
				return err
			}
			info, ok := archive.FindNewest(cfg.BranchPrefix, session, branches)
			if !ok {
				return errors.E(errors.Op(op), errors.KindSessionNotFound,
					fmt.Sprintf("no archived branches for session %s", session))
			}

			branch := cfg.BranchPrefix + "/" + session
			if repo.BranchExists(branch) {
				return errors.E(errors.Op(op), errors.KindInvalidArgs,
					fmt.Sprintf("branch %s already exists; delete or rename it first", branch))
			}
			if err := repo.CreateBranch(branch, info.FullBranchName); err != nil {
				return err
			}
			if to != "" {
				if err := repo.CreateWorktree(to, branch); err != nil {
					return err
				}
			}

			ev := events.NewLogger(cfg.EventsPath(repo.Root()))
			if err := ev.LogRecovered(session, branch); err != nil {
				logger.Warn("recording recovery event: %v", err)
			}

			fmt.Printf("recovered %s from %s\n", branch, info.FullBranchName)
			if to != "" {
				fmt.Printf("worktree created at %s\n", to)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "create a worktree for the recovered branch at this path")
	return cmd
}

// formatArchiveTimestamp renders the compact archive timestamp as a local
// date plus relative age. Unparseable timestamps come back verbatim.
func formatArchiveTimestamp(ts string) (archived, age string) {
	t, err := time.Parse(archive.TimestampFormat, ts)
	if err != nil {
		return ts, ""
	}
	return t.Local().Format("2006-01-02 15:04"), humanize.Time(t)
}
