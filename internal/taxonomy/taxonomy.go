// Package taxonomy holds the group model for the label-clustering protocol:
// parsing the model's free-text group listing into structured groups,
// rendering the frozen summary used to prompt assignment calls, and
// extracting delimiter-marked payloads from model responses.
//
// The wire format is a deliberately small line protocol:
//
//	Group 1 CategoryName: labelA, labelB
//	Group 2 CategoryName: labelC
//
// emitted between literal begin/end markers. Anything not matching the line
// pattern is treated as model commentary and skipped.
package taxonomy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Protocol markers. The model is instructed to wrap its payload in these;
// responses missing them are recovered by treating the whole body as payload.
const (
	GroupsBegin = "<<GROUPS-BEGIN>>"
	GroupsEnd   = "<<GROUPS-END>>"
	AssignBegin = "<<ASSIGN-BEGIN>>"
	AssignEnd   = "<<ASSIGN-END>>"
)

// Group is a cluster of semantically-equivalent labels. IDs are 1-based and
// kept dense: whenever a taxonomy is closed for reads its groups are numbered
// contiguously 1..N in slice order.
type Group struct {
	ID     int
	Name   string
	Labels []string
}

var groupLine = regexp.MustCompile(`^Group\s+(\d+)\s+(.+?):\s*(.+?)\s*$`)

// Parse converts a group-listing payload into structured groups. Lines that
// do not match the protocol pattern are discarded. Groups are ordered by
// their claimed numeric id, then renumbered densely from 1 so that duplicate
// or non-sequential model numbering cannot break the contiguous-id invariant.
func Parse(text string) []Group {
	var groups []Group
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := groupLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		g := Group{ID: id, Name: strings.TrimSpace(m[2])}
		for _, frag := range strings.Split(m[3], ",") {
			if lab := strings.TrimSpace(frag); lab != "" {
				g.Labels = append(g.Labels, lab)
			}
		}
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	for i := range groups {
		groups[i].ID = i + 1
	}
	return groups
}

// ExtractPayload returns the text between begin and end markers. When either
// marker is missing, or they appear out of order, the trimmed full response
// is returned instead (best-effort recovery against models that drop the
// markers despite instructions).
func ExtractPayload(response, begin, end string) string {
	start := strings.Index(response, begin)
	stop := strings.Index(response, end)
	if start == -1 || stop == -1 || stop <= start {
		return strings.TrimSpace(response)
	}
	return strings.TrimSpace(response[start+len(begin) : stop])
}

// Snapshot is the immutable group-listing view used to prompt every
// assignment call. It is taken once, after seeding, and never mutated:
// groups created during assignment are invisible to concurrent prompts.
type Snapshot struct {
	Summary    string
	GroupCount int
}

// DefaultMaxExamples bounds how many example labels each group contributes
// to the snapshot summary.
const DefaultMaxExamples = 6

// NewSnapshot renders groups into a frozen prompt summary, listing at most
// maxExamples labels per group.
func NewSnapshot(groups []Group, maxExamples int) Snapshot {
	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteByte('\n')
		}
		ex := g.Labels
		if len(ex) > maxExamples {
			ex = ex[:maxExamples]
		}
		examples := "(none yet)"
		if len(ex) > 0 {
			examples = strings.Join(ex, ", ")
		}
		fmt.Fprintf(&b, "Group %d %s: %s", g.ID, g.Name, examples)
	}
	return Snapshot{Summary: b.String(), GroupCount: len(groups)}
}

// Fingerprint identifies the frozen summary for decision-cache validation.
// Seeding is nondeterministic, so two runs over the same file can produce
// different taxonomies; cached group numbers are only meaningful against the
// exact snapshot they were decided under.
func (s Snapshot) Fingerprint() string {
	sum := sha256.Sum256([]byte(strconv.Itoa(s.GroupCount) + "\n" + s.Summary))
	return hex.EncodeToString(sum[:])
}
