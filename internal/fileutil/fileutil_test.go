package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIfChangedTracked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "orders.yml")

	changed, err := WriteIfChangedTracked(path, []byte("version: 2\n"))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = WriteIfChangedTracked(path, []byte("version: 2\n"))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = WriteIfChangedTracked(path, []byte("version: 2\nmodels: []\n"))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestAppendBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: 2"), 0644))

	require.NoError(t, AppendBlock(path, []byte("unit_tests: []\n")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 2\nunit_tests: []\n", string(data))

	fresh := filepath.Join(t.TempDir(), "new.yml")
	require.NoError(t, AppendBlock(fresh, []byte("a: 1\n")))
	data, err = os.ReadFile(fresh)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(data))
}

func TestEnsureTrailingNewline(t *testing.T) {
	assert.Equal(t, "x\n", EnsureTrailingNewline("x"))
	assert.Equal(t, "x\n", EnsureTrailingNewline("x\n"))
}

func TestDedupeStrings(t *testing.T) {
	assert.Equal(t, []string{"orders", "customers"}, DedupeStrings([]string{"orders", " ", "customers", "orders"}))
}
