package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"para/internal/conflict"
)

var (
	conflictFileStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	oursLabelStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	theirsLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

func conflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List the files the paused integration left conflicted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, repo, err := loadEnv()
			if err != nil {
				return err
			}
			summary, err := conflict.Summary(repo)
			if err != nil {
				return err
			}
			fmt.Print(summary)
			return nil
		},
	}
	cmd.AddCommand(conflictsShowCmd())
	return cmd
}

func conflictsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Show both sides of a conflicted file with syntax highlighting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, repo, err := loadEnv()
			if err != nil {
				return err
			}
			regions, err := conflict.Markers(repo, args[0])
			if err != nil {
				return err
			}
			for i, region := range regions {
				if i > 0 {
					fmt.Println()
				}
				printRegion(region, i+1, len(regions))
			}
			return nil
		},
	}
}

func printRegion(r conflict.Region, n, total int) {
	fmt.Printf("%s (%d/%d)\n", conflictFileStyle.Render(r.File), n, total)
	if r.Ours == "" && r.Theirs == "" {
		fmt.Println("  (no textual conflict markers)")
		return
	}
	fmt.Println(oursLabelStyle.Render("<<< ours"))
	fmt.Print(indentBlock(highlightForFile(r.Ours, r.File)))
	fmt.Println(theirsLabelStyle.Render(">>> theirs"))
	fmt.Print(indentBlock(highlightForFile(r.Theirs, r.File)))
}

// highlightForFile renders code with terminal colors, picking a lexer from
// the file name. Unknown file types and rendering failures fall back to the
// raw text.
func highlightForFile(code, filename string) string {
	lexer := lexers.Match(filepath.Base(filename))
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

func indentBlock(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n") + "\n"
}
