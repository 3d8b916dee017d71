package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutation_Lifecycle(t *testing.T) {
	m := newMutation("test-op")
	assert.False(t, m.Settled())

	require.NoError(t, m.fire(PhaseApplied))
	assert.False(t, m.Settled())

	require.NoError(t, m.fire(PhaseSettledSuccess))
	assert.True(t, m.Settled())
}

func TestMutation_PreflightFailureSkipsApplied(t *testing.T) {
	m := newMutation("test-op")
	require.NoError(t, m.fire(PhaseSettledFailure))
	assert.True(t, m.Settled())
}

func TestMutation_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []Phase
		bad  Phase
	}{
		{"settle before apply", nil, PhaseSettledSuccess},
		{"apply twice", []Phase{PhaseApplied}, PhaseApplied},
		{"settle twice", []Phase{PhaseApplied, PhaseSettledSuccess}, PhaseSettledFailure},
		{"reopen after failure", []Phase{PhaseSettledFailure}, PhaseApplied},
		{"back to idle", []Phase{PhaseApplied}, PhaseIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMutation("test-op")
			for _, p := range tt.path {
				require.NoError(t, m.fire(p))
			}
			assert.Error(t, m.fire(tt.bad))
		})
	}
}
