package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "reservoir", cmd.Use)
	assert.Equal(t, "Reserve, image and synchronize testbed resources", cmd.Short)
	assert.True(t, cmd.SilenceUsage)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range []string{"up", "slot", "destroy", "simulate", "version"} {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
	assert.Len(t, cmd.Commands(), 5)
}

func TestRoot_VerboseFlag(t *testing.T) {
	cmd := Root()

	flag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestParseStart(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got, err := parseStart("")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("rfc3339", func(t *testing.T) {
		got, err := parseStart("2026-03-02T10:00:00Z")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := parseStart("tomorrow")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid --start")
	})
}

func TestUp_InvalidStartFailsBeforeLoading(t *testing.T) {
	cmd := Root()
	cmd.SetArgs([]string{"up", "--start", "noon"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --start")
}
