// Package conflict inspects merge conflicts: which paths are unmerged and
// what the two sides look like. It never mutates the repository;
// resolution is a human job done with ordinary git tooling.
package conflict

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"para/internal/errors"
	"para/internal/git"
)

// Region is one conflicted block in a file, split into the two sides.
type Region struct {
	File   string
	Ours   string
	Theirs string
}

// Detect returns the ordered list of paths in the unmerged index state.
// An empty list means the index is clean.
func Detect(r *git.Repo) ([]string, error) {
	files, err := r.UnmergedFiles()
	if err != nil {
		return nil, errors.GitFailed("conflict.Detect", err)
	}
	return files, nil
}

// Markers parses the conflict markers of one working-tree file into
// regions. A conflicted file without textual markers (binary conflicts,
// delete/modify) yields a single region with empty sides.
func Markers(r *git.Repo, file string) ([]Region, error) {
	content, err := os.ReadFile(filepath.Join(r.Root(), file))
	if err != nil {
		return nil, errors.E(errors.Op("conflict.Markers"), errors.KindFileOp,
			fmt.Sprintf("reading %s", file), err)
	}

	var regions []Region
	var ourLines, theirLines []string
	var inConflict, inOurs bool

	for _, line := range strings.Split(string(content), "\n") {
		switch {
		case strings.HasPrefix(line, "<<<<<<<"):
			inConflict = true
			inOurs = true
			ourLines = nil
			theirLines = nil
		case strings.HasPrefix(line, "=======") && inConflict:
			inOurs = false
		case strings.HasPrefix(line, ">>>>>>>") && inConflict:
			regions = append(regions, Region{
				File:   file,
				Ours:   strings.Join(ourLines, "\n"),
				Theirs: strings.Join(theirLines, "\n"),
			})
			inConflict = false
		case inConflict:
			if inOurs {
				ourLines = append(ourLines, line)
			} else {
				theirLines = append(theirLines, line)
			}
		}
	}

	if len(regions) == 0 {
		regions = append(regions, Region{File: file})
	}
	return regions, nil
}

// Summary renders a human-readable block describing the current
// conflicts: every unmerged path plus a short view of both sides where
// markers are parseable.
func Summary(r *git.Repo) (string, error) {
	files, err := Detect(r)
	if err != nil {
		return "", err
	}
	return SummaryFor(r, files)
}

// SummaryFor renders the summary block for a known file list.
func SummaryFor(r *git.Repo, files []string) (string, error) {
	if len(files) == 0 {
		return "no conflicts detected\n", nil
	}

	var b strings.Builder
	if len(files) == 1 {
		fmt.Fprintf(&b, "1 conflicted file:\n")
	} else {
		fmt.Fprintf(&b, "%d conflicted files:\n", len(files))
	}

	for _, file := range files {
		fmt.Fprintf(&b, "\n  %s\n", file)

		regions, err := Markers(r, file)
		if err != nil {
			// Still list the path; the sides are a best-effort extra.
			fmt.Fprintf(&b, "    (unreadable: %v)\n", err)
			continue
		}
		region := regions[0]
		if region.Ours == "" && region.Theirs == "" {
			fmt.Fprintf(&b, "    (no textual conflict markers)\n")
			continue
		}
		fmt.Fprintf(&b, "    ours:   %s\n", sideDigest(region.Ours))
		fmt.Fprintf(&b, "    theirs: %s\n", sideDigest(region.Theirs))
		if len(regions) > 1 {
			fmt.Fprintf(&b, "    (+%d more conflicted regions)\n", len(regions)-1)
		}
	}

	b.WriteString("\nresolve the files, stage them with 'git add', then run 'para continue'\n")
	return b.String(), nil
}

// sideDigest compresses one side of a conflict to a single display line.
func sideDigest(side string) string {
	line := side
	if idx := strings.IndexByte(side, '\n'); idx >= 0 {
		line = side[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > 60 {
		line = line[:57] + "..."
	}
	if lines := strings.Count(side, "\n"); lines > 0 {
		return fmt.Sprintf("%s (%d lines)", line, lines+1)
	}
	return line
}
