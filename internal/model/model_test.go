package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	testCases := []struct {
		input     string
		expected  time.Duration
		expectErr bool
	}{
		{input: "00:00", expected: 0},
		{input: "07:30", expected: 7*time.Hour + 30*time.Minute},
		{input: "24:00", expected: 24 * time.Hour},
		{input: "9:05", expected: 9*time.Hour + 5*time.Minute},
		{input: "25:00", expectErr: true},
		{input: "12:60", expectErr: true},
		{input: "noon", expectErr: true},
		{input: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseClock(tc.input)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestScheduledEvent_Overlaps(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	event := &ScheduledEvent{StartAt: base, EndAt: base.Add(3 * time.Hour)} // [09:00, 12:00)

	assert.True(t, event.Overlaps(base.Add(2*time.Hour), base.Add(4*time.Hour)))
	assert.True(t, event.Overlaps(base.Add(-time.Hour), base.Add(time.Hour)))
	assert.False(t, event.Overlaps(base.Add(3*time.Hour), base.Add(5*time.Hour)), "half-open: a shared boundary instant is not an overlap")
	assert.False(t, event.Overlaps(base.Add(-2*time.Hour), base), "ending at the event's start is not an overlap")
}

func TestEventStatus(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusInProgress.Terminal())

	assert.True(t, StatusConfirmed.RequiresAssignment())
	assert.False(t, StatusPlanned.RequiresAssignment())

	assert.True(t, StatusPlanned.Valid())
	assert.False(t, EventStatus("paused").Valid())
}

func TestEventPriority_Rank(t *testing.T) {
	ordered := []EventPriority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent, PriorityEmergency}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank())
	}
	assert.Equal(t, 0, EventPriority("whenever").Rank())
}
