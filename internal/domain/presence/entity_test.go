package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateUninitialized.CanTransition(StateBootstrapping))
	assert.True(t, StateBootstrapping.CanTransition(StateActive))
	assert.True(t, StateActive.CanTransition(StateAway))
	assert.True(t, StateAway.CanTransition(StateActive))
	assert.True(t, StateActive.CanTransition(StateTerminated))
	assert.True(t, StateAway.CanTransition(StateTerminated))

	// No shortcuts and no resurrection
	assert.False(t, StateUninitialized.CanTransition(StateActive))
	assert.False(t, StateTerminated.CanTransition(StateActive))
	assert.False(t, StateAway.CanTransition(StateBootstrapping))
}

func TestParseTool(t *testing.T) {
	tool, err := ParseTool("docease")
	require.NoError(t, err)
	assert.Equal(t, ToolDocease, tool)

	tool, err = ParseTool("")
	require.NoError(t, err)
	assert.Equal(t, ToolNone, tool)

	_, err = ParseTool("spreadsheets")
	assert.Error(t, err)
}
