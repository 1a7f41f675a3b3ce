package cli

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworkforce/courtwatch/internal/analysis"
)

const tennisExport = `{"data":{"workouts":[
	{"id":"run","name":"户外跑步","duration":1800,"start":"2024-01-01 07:00:00"},
	{"id":"a","name":"网球训练","duration":200,"start":"2024-01-01 10:00:00"},
	{"id":"b","name":"网球","duration":60,"start":"2024-01-01 11:00:00"}
]}}`

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("COURTWATCH_ANALYSIS_API_KEY", "")
	t.Setenv("COURTWATCH_LOG_LEVEL", "error")
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeExport(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "courtwatch", cmd.Use)

	for _, name := range []string{"watch", "scan", "analyze", "state"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	watch, _, err := cmd.Find([]string{"watch"})
	require.NoError(t, err)
	for _, flag := range []string{"watch-dir", "state", "target", "min-duration", "debounce", "admin-addr"} {
		assert.NotNil(t, watch.Flags().Lookup(flag), flag)
	}
}

func TestAnalyzePrintsSentinelWithoutKey(t *testing.T) {
	isolate(t)
	path := writeExport(t, t.TempDir(), "export.json", tennisExport)

	out, err := execute(t, "analyze", path)

	require.NoError(t, err)
	assert.Equal(t, analysis.SentinelUnavailable+"\n", out)
}

func TestAnalyzeIgnoresDurationAndIndexes(t *testing.T) {
	isolate(t)
	path := writeExport(t, t.TempDir(), "export.json", tennisExport)

	out, err := execute(t, "analyze", path, "1")
	require.NoError(t, err)
	assert.Equal(t, analysis.SentinelUnavailable+"\n", out)

	out, err = execute(t, "analyze", path, "2")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAnalyzeUnreadableFilePrintsNothing(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	out, err := execute(t, "analyze", filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = execute(t, "analyze", filepath.Join(dir, "missing.json"), "first")
	assert.Error(t, err)
}

func TestScanDeliversAndRecordsState(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	isolate(t)
	t.Setenv("COURTWATCH_DELIVERY_COMMAND_PATH", "true")
	dir := t.TempDir()
	path := writeExport(t, dir, "2024-01-01.json", tennisExport)
	state := filepath.Join(t.TempDir(), "state.json")

	out, err := execute(t, "scan", path, "--state", state, "--target", "me")
	require.NoError(t, err)
	assert.Contains(t, out, "1 new, 1 delivered")

	out, err = execute(t, "state", "--state", state)
	require.NoError(t, err)
	assert.Equal(t, "a\n", out)

	out, err = execute(t, "scan", path, "--state", state, "--target", "me")
	require.NoError(t, err)
	assert.Contains(t, out, "0 new, 0 delivered (benign)")

	snapshot, err := os.ReadFile(filepath.Join(filepath.Dir(state), "context", "latest_match.json"))
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), `"workout_id": "a"`)
}

func TestScanDeliveryFailureLeavesStateEmpty(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	isolate(t)
	t.Setenv("COURTWATCH_DELIVERY_COMMAND_PATH", "false")
	path := writeExport(t, t.TempDir(), "2024-01-01.json", tennisExport)
	state := filepath.Join(t.TempDir(), "state.json")

	_, err := execute(t, "scan", path, "--state", state, "--target", "me")
	assert.ErrorIs(t, err, ErrScanFailed)

	out, err := execute(t, "state", "--state", state, "--json")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `"count": 0`), out)
}

func TestScanRequiresTarget(t *testing.T) {
	isolate(t)
	path := writeExport(t, t.TempDir(), "2024-01-01.json", tennisExport)

	_, err := execute(t, "scan", path, "--state", filepath.Join(t.TempDir(), "state.json"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery.target")
}
