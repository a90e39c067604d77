package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     State
		to       State
		expected bool
	}{
		{StateIdle, StateRouting, true},
		{StateIdle, StateSimulating, true},
		{StateIdle, StatePaused, false},
		{StateRouting, StateIdle, true},
		{StateRouting, StateNavigating, true},
		{StateNavigating, StatePaused, true},
		{StateNavigating, StateIdle, true},
		{StateNavigating, StateSimulating, false},
		{StateSimulating, StatePaused, true},
		{StateSimulating, StateIdle, false},
		{StatePaused, StateNavigating, true},
		{StatePaused, StateSimulating, true},
		{StatePaused, StateRouting, false},
		{StateCompleted, StateIdle, false},
		{StateCompleted, StateCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestState_EveryNonTerminalStateCanComplete(t *testing.T) {
	for _, s := range []State{StateIdle, StateRouting, StateNavigating, StateSimulating, StatePaused} {
		assert.True(t, s.CanTransitionTo(StateCompleted), s.String())
		assert.False(t, s.IsTerminal(), s.String())
	}
	assert.True(t, StateCompleted.IsTerminal())
}

func TestState_IsActive(t *testing.T) {
	assert.True(t, StateNavigating.IsActive())
	assert.True(t, StateSimulating.IsActive())
	assert.False(t, StatePaused.IsActive())
	assert.False(t, StateIdle.IsActive())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("live")
	require.NoError(t, err)
	assert.Equal(t, ModeLive, mode)

	mode, err = ParseMode("simulated")
	require.NoError(t, err)
	assert.Equal(t, ModeSimulated, mode)

	_, err = ParseMode("teleport")
	assert.Error(t, err)

	assert.Equal(t, "simulated", ModeSimulated.String())
	assert.Equal(t, "state(42)", State(42).String())
}
