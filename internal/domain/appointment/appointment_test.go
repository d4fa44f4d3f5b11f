package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppointmentEndsAt(t *testing.T) {
	a := &Appointment{StartAt: at(14, 0), DurationMins: 45}
	assert.Equal(t, at(14, 45), a.EndsAt())

	iv := a.Interval()
	assert.Equal(t, at(14, 0), iv.Start)
	assert.Equal(t, at(14, 45), iv.End)
}

func TestDerivedFlagsUpcoming(t *testing.T) {
	future := &Appointment{
		StartAt:      time.Now().Add(48 * time.Hour),
		DurationMins: 30,
		Status:       StatusConfirmed,
	}
	assert.True(t, future.IsUpcoming())
	assert.True(t, future.IsModifiable())
	assert.True(t, future.IsCancellable())
	assert.False(t, future.IsOverdue())
	assert.False(t, future.IsToday())
}

func TestDerivedFlagsPast(t *testing.T) {
	past := &Appointment{
		StartAt:      time.Now().Add(-2 * time.Hour),
		DurationMins: 30,
		Status:       StatusConfirmed,
	}
	assert.False(t, past.IsUpcoming())
	assert.False(t, past.IsModifiable(), "a confirmed appointment in the past cannot be moved")
	assert.False(t, past.IsCancellable())
	assert.True(t, past.IsOverdue())
}

func TestIsOverdueIgnoresStartedAndFinal(t *testing.T) {
	start := time.Now().Add(-1 * time.Hour)

	inProgress := &Appointment{StartAt: start, DurationMins: 30, Status: StatusInProgress}
	assert.False(t, inProgress.IsOverdue())

	completed := &Appointment{StartAt: start, DurationMins: 30, Status: StatusCompleted}
	assert.False(t, completed.IsOverdue())

	cancelled := &Appointment{StartAt: start, DurationMins: 30, Status: StatusCancelled}
	assert.False(t, cancelled.IsOverdue())
}

func TestIsToday(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)
	if later.Day() != now.Day() {
		t.Skip("too close to midnight for a stable same-day assertion")
	}

	today := &Appointment{StartAt: later, DurationMins: 30, Status: StatusConfirmed}
	assert.True(t, today.IsToday())

	tomorrow := &Appointment{StartAt: now.Add(24 * time.Hour), DurationMins: 30, Status: StatusConfirmed}
	assert.False(t, tomorrow.IsToday())
}
