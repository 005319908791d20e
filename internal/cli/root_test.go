package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"ecompipe/pkg/config"
)

func TestBuildLoggerAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := buildLogger(level, "console")

		require.NoError(t, err, "level %s", level)
		require.NotNil(t, logger)
	}
}

func TestBuildLoggerJSONFormat(t *testing.T) {
	logger, err := buildLogger("info", "json")

	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestBuildLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := buildLogger("loud", "console")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"generate", "load", "aggregate", "quality", "run", "version"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}

func TestQualitySubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range qualityCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"checks", "anomalies", "profile"} {
		assert.True(t, names[want], "subcommand %s not registered", want)
	}
}

func TestResolveDatasetsDefaultsInDependencyOrder(t *testing.T) {
	datasets, err := resolveDatasets("")

	require.NoError(t, err)
	require.Len(t, datasets, 3)
	assert.Equal(t, "orders", datasets[2].Name)
}

func TestResolveDatasetsFromManifest(t *testing.T) {
	data, err := yaml.Marshal(config.DefaultManifest())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "datasets.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	datasets, err := resolveDatasets(path)

	require.NoError(t, err)
	require.Len(t, datasets, 3)
	assert.Equal(t, "orders", datasets[2].Name)
}

func TestResolveDatasetsMissingManifest(t *testing.T) {
	_, err := resolveDatasets(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()

	path, err := writeJSONReport(dir, "quality_report", map[string]int{"passed": 3})

	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "quality_report_")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"passed": 3}`, string(data))
}

func TestWriteJSONReportCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")

	path, err := writeJSONReport(dir, "data_profile", []string{"customers"})

	require.NoError(t, err)
	assert.FileExists(t, path)
}
