package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taxonorm/internal/config"
	"taxonorm/internal/table"
	"taxonorm/internal/taxonomy"
)

// scriptedClient answers seed and assignment prompts deterministically:
// seeding clusters every distinct label into its own group in first-seen
// order; assignment places known labels by number and proposes NEW groups
// for the rest.
type scriptedClient struct {
	assign func(label string) string
	calls  int
}

func (c *scriptedClient) CompleteWithSystem(ctx context.Context, sys, user string, maxTokens int) (string, error) {
	c.calls++
	if strings.Contains(user, "Cluster these labels by meaning") {
		return c.seedResponse(user), nil
	}
	label := ""
	for _, line := range strings.Split(user, "\n") {
		if strings.HasPrefix(line, "Label: ") {
			label = strings.TrimPrefix(line, "Label: ")
		}
	}
	return taxonomy.AssignBegin + "\n" + c.assign(label) + "\n" + taxonomy.AssignEnd, nil
}

func (c *scriptedClient) Model() string { return "scripted" }

func (c *scriptedClient) seedResponse(user string) string {
	// The label list is the last non-empty line of the prompt.
	lines := strings.Split(strings.TrimSpace(user), "\n")
	labelList := lines[len(lines)-1]

	var b strings.Builder
	b.WriteString(taxonomy.GroupsBegin + "\n")
	seen := map[string]bool{}
	n := 0
	for _, frag := range strings.Split(labelList, ",") {
		lab := strings.TrimSpace(frag)
		if lab == "" || seen[lab] {
			continue
		}
		seen[lab] = true
		n++
		fmt.Fprintf(&b, "Group %d %s: %s\n", n, lab, lab)
	}
	b.WriteString(taxonomy.GroupsEnd)
	return b.String()
}

func testConfig(t *testing.T, inputs []string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.APIKey = "test"
	cfg.Cluster.SeedSize = 2
	cfg.Cluster.MaxConcurrent = 4
	cfg.Dataset.InputFiles = inputs
	cfg.Dataset.OutputDir = filepath.Join(t.TempDir(), "out")
	require.NoError(t, cfg.Validate())
	return cfg
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := writeCSV(t, dir, "moods.csv",
		"factor,Category\nf1,sunny\nf2,rainy\nf3,sunny\nf4,gloomy\n")

	client := &scriptedClient{assign: func(label string) string {
		switch label {
		case "sunny":
			return "Group 1"
		default:
			return "NEW: Gloom"
		}
	}}

	cfg := testConfig(t, []string{input})
	p := New(cfg, client, nil, zap.NewNop())
	require.NoError(t, p.Run(context.Background()))

	out, err := table.Load(filepath.Join(cfg.Dataset.OutputDir, "moods.csv"))
	require.NoError(t, err)

	assert.Equal(t, []string{"factor", "Category", "Group", "Group Name"}, out.Header)
	// Seed window: sunny, rainy (groups 1, 2). Remaining: sunny -> Group 1,
	// gloomy -> NEW Gloom (group 3). Every input row present exactly once.
	assert.Len(t, out.Rows, 4)

	byFactor := map[string][]string{}
	for _, row := range out.Rows {
		byFactor[row[0]] = row
	}
	assert.Equal(t, "1", byFactor["f1"][2])
	assert.Equal(t, "1", byFactor["f3"][2])
	assert.Equal(t, "2", byFactor["f2"][2])
	assert.Equal(t, "3", byFactor["f4"][2])
	assert.Equal(t, "Gloom", byFactor["f4"][3])
}

func TestRun_FileFailureIsolated(t *testing.T) {
	dir := t.TempDir()
	bad := writeCSV(t, dir, "bad.csv", "factor,outcome\nf1,x\n")
	good := writeCSV(t, dir, "good.csv", "factor,Category\nf1,sunny\n")

	client := &scriptedClient{assign: func(label string) string { return "Group 1" }}

	cfg := testConfig(t, []string{bad, good})
	p := New(cfg, client, nil, zap.NewNop())

	err := p.Run(context.Background())
	require.Error(t, err)

	var se *table.SchemaError
	assert.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "bad.csv")

	// The bad file produced no output; the good file still completed.
	_, statErr := os.Stat(filepath.Join(cfg.Dataset.OutputDir, "bad.csv"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(cfg.Dataset.OutputDir, "good.csv"))
	assert.NoError(t, statErr)
}

func TestRun_SeedOnlyFile(t *testing.T) {
	dir := t.TempDir()
	input := writeCSV(t, dir, "tiny.csv", "factor,Category\nf1,sunny\n")

	client := &scriptedClient{assign: func(label string) string {
		t.Error("assignment must not run when all labels fit the seed window")
		return "Group 1"
	}}

	cfg := testConfig(t, []string{input})
	p := New(cfg, client, nil, zap.NewNop())
	require.NoError(t, p.Run(context.Background()))

	// One seed call only.
	assert.Equal(t, 1, client.calls)
}
