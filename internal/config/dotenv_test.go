package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORTAL_DOTENV_NEW=from-file\nPORTAL_DOTENV_SET=from-file\n"), 0o600))

	t.Setenv("PORTAL_DOTENV_SET", "from-env")
	t.Setenv("PORTAL_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("PORTAL_DOTENV_NEW"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("PORTAL_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("PORTAL_DOTENV_SET"), "existing variables win")
}

func TestLoadDotEnv_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BAD-KEY=1\n"), 0o600))

	require.Error(t, LoadDotEnv(path))
}
