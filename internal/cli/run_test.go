package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croftlab/agrisense/internal/store"
)

func TestRunAcidicSoilConsultation(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--rules", filepath.Join("testdata", "rules"),
		"--observations", filepath.Join("testdata", "observations", "soil.yaml"),
	})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Session: ")
	assert.Contains(t, output, "Quiescent after 2 cycle(s)")
	assert.Contains(t, output, "diagnosis")
	assert.Contains(t, output, "apply lime")
}

func TestRunJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--rules", filepath.Join("testdata", "rules"),
		"--observations", filepath.Join("testdata", "observations", "soil.yaml"),
	})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, float64(2), data["cycles"])

	conclusions, ok := data["conclusions"].([]any)
	require.True(t, ok)
	assert.Len(t, conclusions, 2)
}

func TestRunPersistsTrace(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--rules", filepath.Join("testdata", "rules"),
		"--observations", filepath.Join("testdata", "observations", "soil.yaml"),
		"--db", dbPath,
	})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	token := resp.Data.(map[string]any)["token"].(string)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	trace, err := st.ReadTrace(context.Background(), token)
	require.NoError(t, err)
	assert.Len(t, trace.Facts, 3, "observation plus two derived facts")
	assert.Len(t, trace.Firings, 2)
	assert.Len(t, trace.Conclusions, 2)
}

func TestRunMissingObservationsFile(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--rules", filepath.Join("testdata", "rules"),
		"--observations", filepath.Join(t.TempDir(), "nope.yaml"),
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E201")
}

func TestRunBadRulesDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--rules", "/nonexistent/rules",
		"--observations", filepath.Join("testdata", "observations", "soil.yaml"),
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E005")
}

func TestRunCycleLimit(t *testing.T) {
	tmpDir := t.TempDir()
	rulesDir := filepath.Join(tmpDir, "rules")
	require.NoError(t, os.Mkdir(rulesDir, 0o755))

	churn := `package kb

output: ["alert"]

rules: "churn": {
	when: [{kind: "moisture", where: {level: "$level"}}]
	then: [
		{retract: "moisture", attrs: {level: "$level"}},
		{assert: "moisture", attrs: {level: "$level"}},
	]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "kb.cue"), []byte(churn), 0o644))

	obsPath := filepath.Join(tmpDir, "obs.yaml")
	obs := "observations:\n  - kind: moisture\n    attrs:\n      level: low\n"
	require.NoError(t, os.WriteFile(obsPath, []byte(obs), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--rules", rulesDir,
		"--observations", obsPath,
		"--max-cycles", "3",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "cycle ceiling")
}
