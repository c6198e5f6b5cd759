package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to RequestStatus
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusInProgress, false},
		{StatusCancelled, StatusCompleted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestFinalStatusesAreTerminal(t *testing.T) {
	all := []RequestStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}
	for _, final := range FinalStatuses {
		assert.True(t, IsFinalStatus(final))
		for _, to := range all {
			assert.False(t, CanTransition(final, to), "%s -> %s must be blocked", final, to)
		}
	}
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidRole("chemist"))
	assert.True(t, IsValidRole("analyst"))
	assert.True(t, IsValidRole("admin"))
	assert.False(t, IsValidRole("manager"))

	assert.True(t, IsValidStatus("pending"))
	assert.False(t, IsValidStatus("archived"))

	assert.True(t, IsValidPriority("urgent"))
	assert.False(t, IsValidPriority("critical"))
}
