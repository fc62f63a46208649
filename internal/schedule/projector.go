package schedule

import (
	"time"

	"fieldops-scheduler-backend/internal/model"
)

// Window is a half-open time span [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the window's length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Projection places an event on a day's operating window as fractions of
// the window's length, for spatial layout by any presentation layer.
type Projection struct {
	OffsetFraction float64 `json:"offsetFraction"`
	LengthFraction float64 `json:"lengthFraction"`
}

// Project maps the event's interval onto the day's operating window.
// Returns nil when the event does not intersect the day. Events reaching
// outside the operating window are clipped, not rejected; clipping is a
// presentation concern only. Pure function: identical inputs always yield
// identical output.
func Project(event *model.ScheduledEvent, day Window, operating Window) *Projection {
	if !event.Overlaps(day.Start, day.End) {
		return nil
	}
	total := operating.Duration().Seconds()
	if total <= 0 {
		return nil
	}

	visStart := event.StartAt
	if day.Start.After(visStart) {
		visStart = day.Start
	}
	visEnd := event.EndAt
	if day.End.Before(visEnd) {
		visEnd = day.End
	}

	offset := clamp(visStart.Sub(operating.Start).Seconds()/total, 0, 1)
	length := clamp(visEnd.Sub(visStart).Seconds()/total, 0, 1-offset)
	return &Projection{OffsetFraction: offset, LengthFraction: length}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
