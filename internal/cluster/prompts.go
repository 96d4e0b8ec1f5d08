package cluster

import (
	"fmt"
	"strings"

	"taxonorm/internal/taxonomy"
)

// Token budgets per protocol phase. Seeding returns the full group listing;
// assignment returns a single decision line.
const (
	seedMaxTokens   = 12000
	assignMaxTokens = 256
)

const seedSystemPrompt = "You are a precise taxonomy normalizer. " +
	"Group near-duplicate or synonymous labels together based on meaning. " +
	"Number groups sequentially (Group 1, Group 2, ...). " +
	"If a label has no synonyms, put it alone in its own group. " +
	"Do not group opposite categories together. " +
	"Return the groups between the exact markers, one group per line. " +
	"Use a concise CategoryName for each group."

const assignSystemPrompt = "You are a precise taxonomy normalizer. " +
	"You will assign ONE label to the best-fitting existing group, or propose a NEW group if none fits."

// seedUserPrompt renders the one-shot clustering instruction over the seed
// window.
func seedUserPrompt(labels []string) string {
	trimmed := make([]string, len(labels))
	for i, lab := range labels {
		trimmed[i] = strings.TrimSpace(lab)
	}
	return fmt.Sprintf(`Cluster these labels by meaning. Use the format:

%s
Group 1 CategoryName: labelA, labelB
Group 2 CategoryName: labelC
...
%s

Rules:
- Use the original labels verbatim.
- If the same label appears multiple times in the input, include it only once in your output.
- Keep first-seen order as much as possible.
- Do NOT add commentary or tables.
- Every distinct label must appear exactly once.

Labels (comma-separated, may include duplicates):
%s
`, taxonomy.GroupsBegin, taxonomy.GroupsEnd, strings.Join(trimmed, ", "))
}

// assignUserPrompt renders the per-label placement instruction against the
// frozen group summary.
func assignUserPrompt(label, groupsSummary string) string {
	return fmt.Sprintf(`We already have these groups:

%s

Now assign this label to ONE existing group by number, or propose a new group.

Label: %s

Return ONLY one line between the markers, no explanations:
%s
Group N
%s
OR
%s
NEW: GroupName
%s`, groupsSummary, label,
		taxonomy.AssignBegin, taxonomy.AssignEnd,
		taxonomy.AssignBegin, taxonomy.AssignEnd)
}
