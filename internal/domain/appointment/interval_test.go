package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 12, 25, hour, min, 0, 0, time.UTC)
}

func TestIntervalOverlaps(t *testing.T) {
	base := Interval{Start: at(10, 0), End: at(10, 30)}

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", Interval{at(10, 0), at(10, 30)}, true},
		{"partial overlap at tail", Interval{at(10, 15), at(10, 45)}, true},
		{"partial overlap at head", Interval{at(9, 45), at(10, 15)}, true},
		{"fully contained", Interval{at(10, 10), at(10, 20)}, true},
		{"fully containing", Interval{at(9, 0), at(11, 0)}, true},
		{"touching at end", Interval{at(10, 30), at(11, 0)}, false},
		{"touching at start", Interval{at(9, 30), at(10, 0)}, false},
		{"disjoint before", Interval{at(8, 0), at(9, 0)}, false},
		{"disjoint after", Interval{at(11, 0), at(12, 0)}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.other))
			assert.Equal(t, tc.want, tc.other.Overlaps(base), "overlap must be symmetric")
		})
	}
}

func TestIntervalContains(t *testing.T) {
	day := Interval{Start: at(8, 0), End: at(18, 0)}

	assert.True(t, day.Contains(Interval{at(8, 0), at(8, 30)}))
	assert.True(t, day.Contains(Interval{at(17, 30), at(18, 0)}))
	assert.True(t, day.Contains(day))
	assert.False(t, day.Contains(Interval{at(7, 45), at(8, 15)}))
	assert.False(t, day.Contains(Interval{at(17, 45), at(18, 15)}))
}

func TestNewInterval(t *testing.T) {
	iv := NewInterval(at(9, 0), 45*time.Minute)
	assert.Equal(t, at(9, 0), iv.Start)
	assert.Equal(t, at(9, 45), iv.End)
	assert.Equal(t, 45*time.Minute, iv.Duration())
}
