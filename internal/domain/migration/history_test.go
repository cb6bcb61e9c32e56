package migration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatus(t *testing.T) {
	tests := []struct {
		status   RunStatus
		valid    bool
		terminal bool
	}{
		{RunStatusPending, true, false},
		{RunStatusProcessing, true, false},
		{RunStatusCompleted, true, true},
		{RunStatusFailed, true, true},
		{RunStatus("cancelled"), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestNewRunHistory(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		h, err := NewRunHistory("run-1", EntityLabels)
		require.NoError(t, err)
		assert.Equal(t, RunStatusPending, h.Status)
		assert.Equal(t, 1, h.Version)
	})

	t.Run("empty run id", func(t *testing.T) {
		_, err := NewRunHistory("", EntityLabels)
		assert.Error(t, err)
	})

	t.Run("invalid module", func(t *testing.T) {
		_, err := NewRunHistory("run-1", EntityCustomRoles)
		assert.True(t, errors.Is(err, ErrInvalidEntityKind))
	})
}

func TestRunHistory_StateMachine(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		h, err := NewRunHistory("run-1", EntityWorkflows)
		require.NoError(t, err)

		assert.ErrorIs(t, h.Complete(RunCounts{Success: 1}), ErrInvalidRunState)
		require.NoError(t, h.StartProcessing(4))
		assert.ErrorIs(t, h.StartProcessing(4), ErrInvalidRunState)
		require.NoError(t, h.Complete(RunCounts{Success: 2, Skipped: 1, Failed: 1}))

		assert.Equal(t, RunStatusCompleted, h.Status)
		assert.InDelta(t, 75.0, h.SuccessRate(), 0.001)
		assert.GreaterOrEqual(t, h.Duration().Nanoseconds(), int64(0))
		assert.ErrorIs(t, h.Fail(RunCounts{}, "late"), ErrInvalidRunState)
	})

	t.Run("fail before start", func(t *testing.T) {
		h, err := NewRunHistory("run-1", EntityTaxonomies)
		require.NoError(t, err)

		require.NoError(t, h.Fail(RunCounts{}, "export unreadable"))
		assert.Equal(t, RunStatusFailed, h.Status)
		assert.Equal(t, "export unreadable", h.ErrorMessage)
		assert.NotNil(t, h.StartedAt)
	})

	t.Run("negative total", func(t *testing.T) {
		h, err := NewRunHistory("run-1", EntityTaxonomies)
		require.NoError(t, err)
		assert.ErrorIs(t, h.StartProcessing(-1), ErrInvalidTotal)
	})

	t.Run("zero total rate", func(t *testing.T) {
		h := &RunHistory{}
		assert.Zero(t, h.SuccessRate())
		assert.Zero(t, h.Duration())
	})
}
