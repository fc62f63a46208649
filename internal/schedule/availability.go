package schedule

import (
	"context"
	"time"

	"fieldops-scheduler-backend/internal/model"
	"fieldops-scheduler-backend/internal/registry"
	"fieldops-scheduler-backend/internal/store"
)

// capSlack absorbs float rounding so a booking that lands exactly on a cap
// is not rejected.
const capSlack = 1e-9

// Evaluator decides whether a resource can take a candidate interval:
// within declared working hours, under its daily and weekly hour caps, and
// active.
type Evaluator struct {
	registry *registry.Registry
	store    store.Store
	loc      *time.Location
}

// NewEvaluator creates an availability evaluator. Day and week boundaries
// are computed in the registry's time zone.
func NewEvaluator(reg *registry.Registry, st store.Store) *Evaluator {
	return &Evaluator{registry: reg, store: st, loc: reg.Location()}
}

// Evaluate checks one resource against a candidate [start, end). Every
// applicable reason is collected; nothing short-circuits. excludeEventID
// removes the candidate's own prior booking from capacity sums on a move.
// A missing resource is reported via registry.ErrNotFound.
func (e *Evaluator) Evaluate(ctx context.Context, resourceID string, start, end time.Time, excludeEventID string) (AvailabilityResult, error) {
	result := AvailabilityResult{ResourceID: resourceID}

	res, err := e.registry.Get(ctx, resourceID)
	if err != nil {
		return result, err
	}

	if !res.Active {
		result.Reasons = append(result.Reasons, ReasonResourceInactive)
	}

	within, err := registry.WithinWorkingHours(res, start, end, e.loc)
	if err != nil {
		return result, err
	}
	if !within {
		result.Reasons = append(result.Reasons, ReasonOutsideWorkingHours)
	}

	if res.MaxHoursPerDay > 0 {
		exceeded, err := e.dailyCapExceeded(ctx, res, start, end, excludeEventID)
		if err != nil {
			return result, err
		}
		if exceeded {
			result.Reasons = append(result.Reasons, ReasonDailyCapExceeded)
		}
	}

	if res.MaxHoursPerWeek > 0 {
		exceeded, err := e.weeklyCapExceeded(ctx, res, start, end, excludeEventID)
		if err != nil {
			return result, err
		}
		if exceeded {
			result.Reasons = append(result.Reasons, ReasonWeeklyCapExceeded)
		}
	}

	result.OK = len(result.Reasons) == 0
	return result, nil
}

// dailyCapExceeded checks every calendar day the candidate touches.
func (e *Evaluator) dailyCapExceeded(ctx context.Context, res *model.Resource, start, end time.Time, excludeEventID string) (bool, error) {
	cur := start.In(e.loc)
	stop := end.In(e.loc)
	for cur.Before(stop) {
		dayStart := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, e.loc)
		nextDay := time.Date(cur.Year(), cur.Month(), cur.Day()+1, 0, 0, 0, 0, e.loc)

		exceeded, err := e.capExceededIn(ctx, res, dayStart, nextDay, start, end, excludeEventID, res.MaxHoursPerDay)
		if err != nil {
			return false, err
		}
		if exceeded {
			return true, nil
		}
		cur = nextDay
	}
	return false, nil
}

// weeklyCapExceeded checks every Monday-start week the candidate touches.
func (e *Evaluator) weeklyCapExceeded(ctx context.Context, res *model.Resource, start, end time.Time, excludeEventID string) (bool, error) {
	cur := WeekStart(start, e.loc)
	stop := end.In(e.loc)
	for cur.Before(stop) {
		weekEnd := cur.AddDate(0, 0, 7)

		exceeded, err := e.capExceededIn(ctx, res, cur, weekEnd, start, end, excludeEventID, res.MaxHoursPerWeek)
		if err != nil {
			return false, err
		}
		if exceeded {
			return true, nil
		}
		cur = weekEnd
	}
	return false, nil
}

// capExceededIn sums the resource's booked hours inside [lo, hi) plus the
// candidate's share of that span and compares against capHours.
func (e *Evaluator) capExceededIn(ctx context.Context, res *model.Resource, lo, hi, candStart, candEnd time.Time, excludeEventID string, capHours float64) (bool, error) {
	events, err := e.store.ListByResource(ctx, res.ID, lo, hi)
	if err != nil {
		return false, err
	}

	booked := 0.0
	for _, ev := range events {
		if ev.ID == excludeEventID || ev.Status.Terminal() {
			continue
		}
		booked += clippedHours(ev.StartAt, ev.EndAt, lo, hi)
	}
	booked += clippedHours(candStart, candEnd, lo, hi)

	return booked > capHours+capSlack, nil
}

// WeekStart returns Monday 00:00 of the week containing t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	d := t.In(loc)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

func clippedHours(start, end, lo, hi time.Time) float64 {
	if start.Before(lo) {
		start = lo
	}
	if end.After(hi) {
		end = hi
	}
	if !start.Before(end) {
		return 0
	}
	return end.Sub(start).Hours()
}
