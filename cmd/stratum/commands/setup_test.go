package commands

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteConfigCreatesFileOnce(t *testing.T) {
	t.Chdir(t.TempDir())

	wrote, err := writeConfig("/usr/local/bin/stratum")
	require.NoError(t, err)
	assert.True(t, wrote)

	data, err := os.ReadFile(".stratum/config.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "/usr/local/bin/stratum")

	wrote, err = writeConfig("/usr/local/bin/stratum")
	require.NoError(t, err)
	assert.False(t, wrote, "second call with the same binary path should be a no-op")
}

func TestWriteConfigRewritesOnChangedBinary(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := writeConfig("/old/path")
	require.NoError(t, err)

	wrote, err := writeConfig("/new/path")
	require.NoError(t, err)
	assert.True(t, wrote)

	data, err := os.ReadFile(".stratum/config.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "/new/path")
}

func TestWriteAgentBlockAppendsToExistingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("AGENTS.md", []byte("# Project notes\n"), 0o644))

	target, wrote, err := writeAgentBlock(true)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, "AGENTS.md", target)

	data, err := os.ReadFile("AGENTS.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), beginMarker)
	assert.Contains(t, string(data), "Project notes")
}

func TestWriteAgentBlockIsIdempotent(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("AGENTS.md", []byte("notes\n"), 0o644))

	_, wrote, err := writeAgentBlock(true)
	require.NoError(t, err)
	require.True(t, wrote)

	_, wrote, err = writeAgentBlock(true)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestWriteAgentBlockPrefersCLAUDEWhenAGENTSMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("CLAUDE.md", []byte("notes\n"), 0o644))

	target, wrote, err := writeAgentBlock(true)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, "CLAUDE.md", target)
}

func TestWriteAgentBlockCreatesDefaultWhenNeitherExists(t *testing.T) {
	t.Chdir(t.TempDir())

	target, wrote, err := writeAgentBlock(true)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, "AGENTS.md", target)
}
