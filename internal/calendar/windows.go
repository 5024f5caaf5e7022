package calendar

import (
	"time"

	"github.com/rotisserie/eris"
)

// Window is an inclusive preseason date range within one season.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows maps seasons to their preseason window. Seasons without an entry
// use the whole of May.
type Windows map[int]Window

// DefaultWindows returns the known league preseason windows.
func DefaultWindows() Windows {
	return Windows{
		2024: {Start: day(2024, time.May, 9), End: day(2024, time.May, 19)},
		2025: {Start: day(2025, time.May, 6), End: day(2025, time.May, 16)},
	}
}

// ParseWindow builds a window from "MM-DD" bounds.
func ParseWindow(season int, start, end string) (Window, error) {
	s, err := time.Parse("01-02", start)
	if err != nil {
		return Window{}, eris.Wrapf(err, "calendar: preseason start %q", start)
	}
	e, err := time.Parse("01-02", end)
	if err != nil {
		return Window{}, eris.Wrapf(err, "calendar: preseason end %q", end)
	}
	w := Window{
		Start: day(season, s.Month(), s.Day()),
		End:   day(season, e.Month(), e.Day()),
	}
	if w.End.Before(w.Start) {
		return Window{}, eris.Errorf("calendar: preseason window %d ends before it starts", season)
	}
	return w, nil
}

// Contains reports whether d falls in the preseason window of its year.
func (ws Windows) Contains(d time.Time) bool {
	w, ok := ws[d.Year()]
	if !ok {
		w = Window{Start: day(d.Year(), time.May, 1), End: day(d.Year(), time.May, 31)}
	}
	return !d.Before(w.Start) && !d.After(w.End)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
