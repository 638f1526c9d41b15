package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedHelpers(t *testing.T) {
	t.Setenv("CB_INT", "45")
	t.Setenv("CB_BAD_INT", "500")
	t.Setenv("CB_BOOL", "yes")
	t.Setenv("CB_DUR", "90s")
	t.Setenv("CB_CSV", " a, ,b,c ")
	t.Setenv("CB_PORT", "70000")

	n, err := Int("CB_INT", 30, 1, 480)
	require.NoError(t, err)
	assert.Equal(t, 45, n)

	_, err = Int("CB_BAD_INT", 30, 1, 480)
	assert.Error(t, err)

	n, err = Int("CB_MISSING", 30, 1, 480)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	assert.True(t, Bool("CB_BOOL", false))
	assert.True(t, Bool("CB_MISSING", true))

	d, err := Duration("CB_DUR", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	assert.Equal(t, []string{"a", "b", "c"}, CSV("CB_CSV", ""))

	_, err = Port("CB_PORT", "8080")
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	loc, err := Location("CB_TZ_UNSET", "UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	t.Setenv("CB_TZ", "Mars/Olympus")
	_, err = Location("CB_TZ", "UTC")
	assert.Error(t, err)
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CB_FROM_FILE=file\nCB_PRESET=file\n"), 0o600))

	t.Setenv("CB_PRESET", "env")
	t.Setenv("CB_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("CB_FROM_FILE"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "file", os.Getenv("CB_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("CB_PRESET"))
	_ = os.Unsetenv("CB_FROM_FILE")
}
