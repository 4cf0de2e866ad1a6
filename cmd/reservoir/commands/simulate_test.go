package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate(t *testing.T) {
	cmd := Simulate()

	require.NotNil(t, cmd)
	assert.Equal(t, "simulate", cmd.Use)
	assert.Equal(t, "Serve a local testbed for trying experiments", cmd.Short)
	assert.Contains(t, cmd.Long, "fail_deploy")
}

func TestSimulate_Flags(t *testing.T) {
	cmd := Simulate()

	flag := cmd.Flags().Lookup("listen")
	require.NotNil(t, flag)
	assert.Equal(t, ":8080", flag.DefValue)

	flag = cmd.Flags().Lookup("inventory")
	require.NotNil(t, flag)
	_, required := flag.Annotations[cobra.BashCompOneRequiredFlag]
	assert.True(t, required, "inventory flag should be required")

	assert.NotNil(t, cmd.Flags().Lookup("db"))
	assert.NotNil(t, cmd.Flags().Lookup("token"))
}

func TestSimulate_RequiresInventory(t *testing.T) {
	cmd := Root()
	cmd.SetArgs([]string{"simulate"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory")
}
