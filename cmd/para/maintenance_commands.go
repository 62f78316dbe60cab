package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"para/internal/cleanup"
	"para/internal/config"
	"para/internal/doctor"
	"para/internal/events"
	"para/internal/history"
)

func cleanCmd() *cobra.Command {
	var dryRun, archives bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover scratch branches and stale state",
		Long: `Clean scans for integration leftovers: scratch and backup branches no
active integration references, orphaned state files, and (with
--archives) archived branches past the configured retention.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, cfg, err := newManager()
			if err != nil {
				return err
			}
			sc := cleanup.New(mgr.Repo(), mgr.Store(), cfg)

			items, err := sc.Scan(cleanup.Options{IncludeArchives: archives})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("nothing to clean")
				return nil
			}

			for _, item := range items {
				fmt.Printf("  %s\n", item.Description())
			}
			if dryRun {
				fmt.Println("\ndry run: nothing was removed")
				return nil
			}

			applied, err := sc.Apply(items)
			if applied > 0 {
				fmt.Printf("\nremoved %d item(s)\n", applied)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "list what would be removed without removing it")
	cmd.Flags().BoolVar(&archives, "archives", false, "also remove archived branches past the retention window")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past integrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, repo, err := loadEnv()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.HistoryLimit
			}

			dbPath := cfg.HistoryPath(repo.Root())
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				printEmptyMessage("no integrations recorded")
				return nil
			}

			db, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			recs, err := db.Recent(limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				printEmptyMessage("no integrations recorded")
				return nil
			}

			columns := []table.Column{
				{Title: "Session", Width: 18},
				{Title: "Strategy", Width: 8},
				{Title: "Result", Width: 9},
				{Title: "Conflicts", Width: 9},
				{Title: "Duration", Width: 10},
				{Title: "Finished", Width: 16},
			}
			rows := make([]table.Row, 0, len(recs))
			for _, r := range recs {
				rows = append(rows, table.Row{
					r.SessionID,
					strings.ToLower(r.Strategy),
					string(r.Result),
					fmt.Sprintf("%d", r.ConflictCount),
					formatDurationMS(r.DurationMS),
					humanize.Time(r.FinishedAt),
				})
			}
			printTable(fmt.Sprintf("Integration history (%d)", len(recs)), columns, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum rows to show (default: configured history limit)")
	return cmd
}

func eventsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the recent event journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, repo, err := loadEnv()
			if err != nil {
				return err
			}

			recent, err := events.NewLogger(cfg.EventsPath(repo.Root())).Recent(limit)
			if err != nil {
				return err
			}
			if len(recent) == 0 {
				printEmptyMessage("no events recorded")
				return nil
			}
			for _, e := range recent {
				fmt.Printf("%s  %-22s %s\n", formatEventTime(e.Time), e.Type, eventDetail(e))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum events to show")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the environment and any stuck integration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return doctor.Run(cfg, repoPath)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the para version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("para %s\n", config.Version)
		},
	}
}

func eventDetail(e events.Event) string {
	switch {
	case e.Error != "":
		return fmt.Sprintf("%s: %s", e.Session, e.Error)
	case len(e.ConflictFiles) > 0:
		return fmt.Sprintf("%s: %s", e.Session, strings.Join(e.ConflictFiles, ", "))
	case e.FeatureBranch != "" && e.BaseBranch != "":
		return fmt.Sprintf("%s: %s -> %s (%s)", e.Session, e.FeatureBranch, e.BaseBranch, strings.ToLower(e.Strategy))
	case e.FeatureBranch != "":
		return fmt.Sprintf("%s: %s", e.Session, e.FeatureBranch)
	case e.Detail != "" && e.Session != "":
		return fmt.Sprintf("%s: %s", e.Session, e.Detail)
	case e.Detail != "":
		return e.Detail
	default:
		return e.Session
	}
}

func formatEventTime(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDurationMS(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
