package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeNoOpWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir))
	defer CloseAll()

	assert.False(t, IsDebugMode(), "expected debug mode disabled without a config file")

	_, err := os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err), "expected no logs directory to be created")
}

func TestInitializeWritesCategoryFile(t *testing.T) {
	dir := t.TempDir()
	config := `{"debug_mode": true, "level": "debug"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logging.json"), []byte(config), 0o644))

	require.NoError(t, Initialize(dir))
	defer CloseAll()

	assert.True(t, IsDebugMode(), "expected debug mode enabled")

	Get(CategoryCatalog).Info("hello %s", "world")

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "expected at least one log file")
}
