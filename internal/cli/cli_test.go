package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flagcube"
	"github.com/hupe1980/flagcube/dataset"
	"github.com/hupe1980/flagcube/internal/fs"
)

// execute runs flagsim with args in an isolated HOME and working directory.
func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var out, errOut bytes.Buffer
	c := NewWithOutput(&out, &errOut)
	c.SetArgs(args)
	code := c.ExecuteContext(t.Context())
	return code, out.String(), errOut.String()
}

// writeConfig writes a small config file and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flagsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const smallConfig = `
shape:
  correlations: 2
  channels: 8
  baselines: 3
  time_slots: 4
agents:
  clip: 2
data:
  outlier_rate: 0.2
logging:
  level: error
`

func TestVersion(t *testing.T) {
	code, out, _ := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, Version)

	code, out, _ = execute(t, "version", "--json")
	assert.Equal(t, ExitSuccess, code)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestSetVersionInfo(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	SetVersionInfo("9.9.9", "", "")
	assert.Contains(t, GetVersionString(), "9.9.9")
}

func TestConfig_PrintsDefaults(t *testing.T) {
	code, out, _ := execute(t, "config", "--defaults")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "time_slots: 16")
	assert.Contains(t, out, "policy: honor")
}

func TestConfig_InvalidFile(t *testing.T) {
	path := writeConfig(t, "agents:\n  policy: maybe\n")
	code, _, errOut := execute(t, "config", "--config", path)
	assert.Equal(t, ExitValidation, code)
	assert.Contains(t, errOut, "maybe")
}

func TestEstimate(t *testing.T) {
	path := writeConfig(t, smallConfig)
	code, out, _ := execute(t, "estimate", "--config", path, "--json")
	require.Equal(t, ExitSuccess, code)

	var est EstimateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &est))
	assert.Equal(t, 2, est.Agents)
	assert.Equal(t, flagcube.EstimateMemoryUsage(8, 3, 4), est.FullBytes)
	assert.Equal(t, flagcube.ModeCompact.String(), est.Plan.Mode)
	assert.Equal(t, 4, est.Plan.Depth)

	code, out, _ = execute(t, "estimate", "--config", path, "--agents", "40")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, flagcube.ModeWide.String())
}

func TestEstimate_MemoryLimit(t *testing.T) {
	path := writeConfig(t, smallConfig+"storage:\n  memory_limit: 16\n")
	code, _, _ := execute(t, "estimate", "--config", path)
	assert.Equal(t, ExitResource, code)
}

func TestRun(t *testing.T) {
	path := writeConfig(t, smallConfig)
	code, out, errOut := execute(t, "run", "--config", path, "--json")
	require.Equal(t, ExitSuccess, code, errOut)

	var r RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.NotEmpty(t, r.RunID)
	require.Len(t, r.Agents, 2)
	assert.Equal(t, uint64(0b01), r.Agents[0].Mask)
	assert.Equal(t, uint64(0b10), r.Agents[1].Mask)
	assert.Positive(t, r.Outliers)
	assert.Positive(t, r.FlaggedCells)
	assert.Equal(t, int64(4), r.Metrics.PublishCount)

	require.NotNil(t, r.Store)
	require.NotNil(t, r.Store.LastPublished)
	assert.Equal(t, 3, *r.Store.LastPublished)
}

func TestRun_WritesFrameFile(t *testing.T) {
	path := writeConfig(t, smallConfig)
	frames := filepath.Join(t.TempDir(), "flags.flgc")

	code, out, errOut := execute(t, "run", "--config", path, "--out", frames)
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "wrote 4 frames")

	fh, err := os.Open(frames)
	require.NoError(t, err)
	defer fh.Close()

	hdr, got, err := dataset.ReadFrames(fh)
	require.NoError(t, err)
	assert.Equal(t, dataset.CompressionZSTD, hdr.Compression)
	require.Len(t, got, 4)
	for i, f := range got {
		assert.Equal(t, i, f.Time)
	}
}

func TestRun_FrameFileWriteFails(t *testing.T) {
	path := writeConfig(t, smallConfig+"output:\n  compression: none\n")
	frames := filepath.Join(t.TempDir(), "flags.flgc")

	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(".flgc", fs.Fault{FailAfterBytes: 64})

	var out, errOut bytes.Buffer
	c := NewWithOutput(&out, &errOut)
	c.SetFileSystem(ffs)
	c.SetArgs([]string{"run", "--config", path, "--out", frames})

	code := c.ExecuteContext(t.Context())
	assert.Equal(t, ExitInternal, code)
	assert.Contains(t, errOut.String(), fs.ErrInjected.Error())
	assert.Equal(t, []string{frames}, ffs.Created())

	_, err := os.Stat(frames)
	assert.True(t, os.IsNotExist(err), "partial file is removed")
}

func TestRun_WideMode(t *testing.T) {
	path := writeConfig(t, smallConfig+"storage:\n  wide: force\n")
	code, out, errOut := execute(t, "run", "--config", path, "--json")
	require.Equal(t, ExitSuccess, code, errOut)

	var r RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, flagcube.ModeWide.String(), r.Store.Mode)
}

func TestAgentMasks(t *testing.T) {
	assert.Equal(t, []flagcube.CorrMask{0b0101, 0b1010}, agentMasks(4, 2))
	assert.Equal(t, []flagcube.CorrMask{0b01, 0b10, 0b11}, agentMasks(2, 3))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitResource, exitCode(flagcube.ErrMemoryLimitExceeded))
	assert.Equal(t, ExitValidation, exitCode(flagcube.ErrInvalidShape))
	assert.Equal(t, ExitInternal, exitCode(assert.AnError))
}
