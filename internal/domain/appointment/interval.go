package appointment

import "time"

// Interval is a half-open time range [Start, End). Because the end instant
// is excluded, an appointment ending at 10:00 does not collide with one
// starting at 10:00.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds the occupied range of an appointment starting at the
// given instant and lasting the given duration.
func NewInterval(start time.Time, duration time.Duration) Interval {
	return Interval{Start: start, End: start.Add(duration)}
}

// Overlaps is the single source of truth for all overlap logic: conflict
// detection and slot availability both reduce to this predicate.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}
