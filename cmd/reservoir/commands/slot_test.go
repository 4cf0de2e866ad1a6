package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotCommand(t *testing.T) {
	cmd := Slot()

	require.NotNil(t, cmd)
	assert.Equal(t, "slot", cmd.Use)
	assert.Equal(t, "Print the first start date every provider accepts", cmd.Short)
	assert.Contains(t, cmd.Long, "Nothing is reserved")
	assert.NotNil(t, cmd.RunE)

	for _, name := range []string{"config", "start", "window"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "%s flag should exist", name)
	}
}
