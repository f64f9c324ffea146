package commands

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := New()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestCommandsRegistered(t *testing.T) {
	cmd := New()
	for _, name := range []string{"add", "get", "complete", "move", "remove", "generate", "migrate", "window", "watch", "info", "key", "version", "completion"} {
		found, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, found.Name())
	}
}

func TestVerbsAgainstMemoryStores(t *testing.T) {
	color.NoColor = true
	t.Setenv("DAYLOG_CONFIG_PATH", t.TempDir())
	t.Setenv("DAYLOG_USER", "tester")

	global := []string{"--cache-mode", "memory", "--remote", "memory"}
	require.NoError(t, run(t, append([]string{"add", "stretch", "--at", "7:30"}, global...)...))
	require.NoError(t, run(t, append([]string{"get", "--all"}, global...)...))
	require.NoError(t, run(t, append([]string{"generate", "--on", "tomorrow"}, global...)...))
	require.NoError(t, run(t, append([]string{"window", "--cached"}, global...)...))
	require.NoError(t, run(t, append([]string{"key"}, global...)...))

	// Each run starts from empty memory stores.
	assert.Error(t, run(t, append([]string{"complete", "1"}, global...)...))
	assert.Error(t, run(t, append([]string{"add"}, global...)...))
	assert.Error(t, run(t, append([]string{"add", "x", "--at", "noon"}, global...)...))
	assert.Error(t, run(t, "get", "--remote", "carrier-pigeon"))
}
