package schedule

import (
	"fmt"
	"time"

	"github.com/medicab/scheduler/internal/domain/appointment"
)

// DayWindow is one weekday's opening window as wall-clock "15:04" strings.
// A zero window means the practice is closed that day.
type DayWindow struct {
	Open  string
	Close string
}

func (w DayWindow) IsZero() bool {
	return w.Open == "" || w.Close == ""
}

// Bounds resolves the window against a concrete date in the given location.
func (w DayWindow) Bounds(date time.Time, loc *time.Location) (time.Time, time.Time, error) {
	open, err := time.Parse("15:04", w.Open)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing opening time %q: %w", w.Open, err)
	}
	closing, err := time.Parse("15:04", w.Close)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing closing time %q: %w", w.Close, err)
	}

	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), open.Hour(), open.Minute(), 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day(), closing.Hour(), closing.Minute(), 0, 0, loc)
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("closing time %s is not after opening time %s", w.Close, w.Open)
	}
	return start, end, nil
}

// WeeklyHours maps each weekday to its opening window.
type WeeklyHours map[time.Weekday]DayWindow

// DefaultWeeklyHours is Monday through Saturday, 08:00 to 18:00.
func DefaultWeeklyHours(open, close string) WeeklyHours {
	wh := make(WeeklyHours, 6)
	for day := time.Monday; day <= time.Saturday; day++ {
		wh[day] = DayWindow{Open: open, Close: close}
	}
	return wh
}

// WindowFor returns the window for the date's weekday in loc, and whether
// the practice is open at all that day.
func (wh WeeklyHours) WindowFor(date time.Time, loc *time.Location) (DayWindow, bool) {
	w, ok := wh[date.In(loc).Weekday()]
	if !ok || w.IsZero() {
		return DayWindow{}, false
	}
	return w, true
}

// Contains reports whether the candidate interval fits entirely inside the
// opening window of its own day.
func (wh WeeklyHours) Contains(iv appointment.Interval, loc *time.Location) bool {
	w, open := wh.WindowFor(iv.Start, loc)
	if !open {
		return false
	}
	start, end, err := w.Bounds(iv.Start, loc)
	if err != nil {
		return false
	}
	return appointment.Interval{Start: start, End: end}.Contains(iv)
}
