package schedule

import (
	"time"

	"github.com/medicab/scheduler/internal/domain/appointment"
)

// Slot is a fixed-duration sub-interval of a doctor's working hours.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

func (s Slot) Interval() appointment.Interval {
	return appointment.Interval{Start: s.Start, End: s.End}
}

// Slots partitions the opening window of the given date into contiguous
// slots of slotDuration and marks each against the busy intervals. Slots
// are produced in chronological order and never reach the closing instant:
// the last slot of a 08:00-18:00 day with 30-minute slots starts at 17:00.
// A closed day yields an empty sequence.
func Slots(date time.Time, wh WeeklyHours, slotDuration time.Duration, busy []appointment.Interval, loc *time.Location) ([]Slot, error) {
	if slotDuration <= 0 {
		return nil, nil
	}
	window, open := wh.WindowFor(date, loc)
	if !open {
		return []Slot{}, nil
	}
	dayStart, dayEnd, err := window.Bounds(date, loc)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	for cur := dayStart; cur.Add(slotDuration).Before(dayEnd); cur = cur.Add(slotDuration) {
		slot := Slot{Start: cur, End: cur.Add(slotDuration), Available: true}
		for _, iv := range busy {
			if slot.Interval().Overlaps(iv) {
				slot.Available = false
				break
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// FreeSlots filters a slot sequence down to the available ones starting at
// or after the given instant.
func FreeSlots(slots []Slot, notBefore time.Time) []Slot {
	var free []Slot
	for _, s := range slots {
		if s.Available && !s.Start.Before(notBefore) {
			free = append(free, s)
		}
	}
	return free
}
