package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camruler/camruler/internal/buildinfo"
	"github.com/camruler/camruler/internal/conf"
)

// Commands share viper's global state, so these tests do not run in
// parallel.

func writeConfig(t *testing.T) (configPath, csvPath string) {
	t.Helper()
	dir := t.TempDir()
	csvPath = filepath.Join(dir, "measurements.csv")
	configPath = filepath.Join(dir, "config.yaml")
	yaml := "logging:\n  console:\n    enabled: false\noutput:\n  csv:\n    path: " + csvPath + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))
	return configPath, csvPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := RootCommand(&buildinfo.Context{Version: "1.2.3", BuildDate: "2026-10-01"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "camruler 1.2.3 (built 2026-10-01)\n", out)
}

func TestCalibrateCommand(t *testing.T) {
	configPath, _ := writeConfig(t)

	out, err := execute(t, "--config", configPath, "calibrate", "--p1", "0,0", "--p2", "100,0", "--known", "15")
	require.NoError(t, err)
	assert.Contains(t, out, "pixel distance: 100.00 px")
	assert.Contains(t, out, "ratio:          0.150000 cm/px")

	_, err = execute(t, "--config", configPath, "calibrate", "--p1", "5,5", "--p2", "5,5")
	require.Error(t, err)

	_, err = execute(t, "--config", configPath, "calibrate", "--p1", "0,0", "--p2", "100,0", "--known", "0.01")
	require.Error(t, err)
}

func TestCalibrateSavePersistsRatio(t *testing.T) {
	configPath, _ := writeConfig(t)

	_, err := execute(t, "--config", configPath, "calibrate", "--p1", "0,0", "--p2", "100,0", "--known", "10", "--save")
	require.NoError(t, err)

	settings, err := conf.Load(configPath)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, settings.Calibration.Ratio, 1e-12)
}

func TestMeasureSaveAndRecords(t *testing.T) {
	configPath, csvPath := writeConfig(t)

	out, err := execute(t, "--config", configPath, "measure", "--points", "0,0;100,0;100,50", "--ratio", "0.15", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Point 1 & 2: 15.00 cm")
	assert.Contains(t, out, "Point 2 & 3: 7.50 cm")
	assert.Contains(t, out, "width: 15.00 cm, height: 7.50 cm")
	assert.Contains(t, out, "saved product 1")

	out, err = execute(t, "--config", configPath, "measure", "--points", "0,0;10,0", "--ratio", "1", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "saved product 2")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "15.00, 7.50")

	out, err = execute(t, "--config", configPath, "records", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Product Number")
	assert.Contains(t, out, "10.00")
	assert.NotContains(t, out, "7.50")
}

func TestMeasureFlagOverridesConfig(t *testing.T) {
	configPath, _ := writeConfig(t)
	other := filepath.Join(t.TempDir(), "other.csv")

	_, err := execute(t, "--config", configPath, "--csv", other, "--unit", "mm",
		"measure", "--points", "0,0;10,0", "--ratio", "1", "--save")
	require.NoError(t, err)
	assert.FileExists(t, other)
}

func TestMeasureRejectsBadInput(t *testing.T) {
	configPath, _ := writeConfig(t)

	_, err := execute(t, "--config", configPath, "measure", "--points", "0,0")
	require.Error(t, err)

	_, err = execute(t, "--config", configPath, "measure", "--points", "0,0;1,1", "--ratio", "-2")
	require.Error(t, err)

	_, err = execute(t, "--config", configPath, "measure", "--points", "0,0;1,1", "--out", "x.jpg")
	require.Error(t, err)
}
