// Package archive encodes and decodes para's archived-branch naming
// convention: {prefix}/archived/{timestamp}/{session}. The integration
// engine names its backup branches this way, and session recovery lists
// and restores archives by parsing branch names back into their parts.
package archive

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampFormat is the compact, fixed-width form embedded in branch
// names. It is zero-padded so the raw strings sort chronologically.
const TimestampFormat = "20060102-150405"

const archivedSegment = "archived"

// Info is the decoded form of an archived branch name. It is derived from
// the name on demand, never stored.
type Info struct {
	FullBranchName string
	SessionName    string
	Timestamp      string
}

// Encode builds the archived branch name for a session at a timestamp.
func Encode(prefix, session, timestamp string) string {
	return fmt.Sprintf("%s/%s/%s/%s", prefix, archivedSegment, timestamp, session)
}

// Decode parses an archived branch name. The second return value is false
// for any branch that does not match the 4-segment convention, so callers
// can filter a mixed branch list safely.
func Decode(prefix, branch string) (Info, bool) {
	parts := strings.Split(branch, "/")
	if len(parts) != 4 {
		return Info{}, false
	}
	if parts[0] != prefix || parts[1] != archivedSegment {
		return Info{}, false
	}
	if _, err := time.Parse(TimestampFormat, parts[2]); err != nil {
		return Info{}, false
	}
	if parts[3] == "" {
		return Info{}, false
	}
	return Info{
		FullBranchName: branch,
		SessionName:    parts[3],
		Timestamp:      parts[2],
	}, true
}

// ValidSessionName reports whether a session name survives an
// encode/decode round trip. Names containing a slash would add segments.
func ValidSessionName(name string) bool {
	return name != "" && !strings.Contains(name, "/")
}

// Timestamp formats a time in the compact branch-name form.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Now returns the current time in the compact branch-name form.
func Now() string {
	return Timestamp(time.Now())
}

// ParseTimestampRFC3339 converts the compact form to RFC 3339 for display.
// Unparseable input falls back to the current time; ordering decisions
// must use the raw string, never this.
func ParseTimestampRFC3339(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return t.Format(time.RFC3339)
}

// SortNewestFirst orders archive entries by raw timestamp descending. The
// fixed-width zero-padded format makes lexicographic comparison correct.
func SortNewestFirst(infos []Info) {
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Timestamp != infos[j].Timestamp {
			return infos[i].Timestamp > infos[j].Timestamp
		}
		return infos[i].SessionName < infos[j].SessionName
	})
}

// Filter decodes every archived branch in a mixed branch list and returns
// the entries newest-first.
func Filter(prefix string, branches []string) []Info {
	var infos []Info
	for _, branch := range branches {
		if info, ok := Decode(prefix, branch); ok {
			infos = append(infos, info)
		}
	}
	SortNewestFirst(infos)
	return infos
}

// FindNewest returns the most recent archive entry for a session.
func FindNewest(prefix, session string, branches []string) (Info, bool) {
	for _, info := range Filter(prefix, branches) {
		if info.SessionName == session {
			return info, true
		}
	}
	return Info{}, false
}
