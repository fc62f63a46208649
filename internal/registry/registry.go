package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"fieldops-scheduler-backend/internal/model"
)

// ErrNotFound is returned when no resource exists for the given id.
var ErrNotFound = errors.New("resource not found")

// Registry provides read access to the set of assignable resources.
// Resource records are created and edited by an external management
// workflow; the engine only reads them.
type Registry struct {
	db  *gorm.DB
	loc *time.Location
}

// New creates a registry. Working-hour windows are interpreted in loc.
func New(db *gorm.DB, loc *time.Location) *Registry {
	if loc == nil {
		loc = time.UTC
	}
	return &Registry{db: db, loc: loc}
}

// Location returns the registry's calendar time zone.
func (r *Registry) Location() *time.Location {
	return r.loc
}

// Get fetches a single resource by id.
func (r *Registry) Get(ctx context.Context, id string) (*model.Resource, error) {
	var res model.Resource
	err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resource %s: %w", id, err)
	}
	return &res, nil
}

// ListActive returns active resources, optionally restricted to one kind.
func (r *Registry) ListActive(ctx context.Context, kind model.ResourceKind) ([]model.Resource, error) {
	q := r.db.WithContext(ctx).Where("active = ?", true)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var resources []model.Resource
	if err := q.Order("id ASC").Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("failed to list active resources: %w", err)
	}
	return resources, nil
}

// IsWithinWorkingHours reports whether [start, end) falls entirely inside
// the resource's declared windows, evaluated per day segment.
func (r *Registry) IsWithinWorkingHours(ctx context.Context, resourceID string, start, end time.Time) (bool, error) {
	res, err := r.Get(ctx, resourceID)
	if err != nil {
		return false, err
	}
	return WithinWorkingHours(res, start, end, r.loc)
}

// WithinWorkingHours evaluates the working-hours rule against an already
// fetched resource. An interval crossing midnight is split at each local
// midnight and every segment must fit its own day's window.
func WithinWorkingHours(res *model.Resource, start, end time.Time, loc *time.Location) (bool, error) {
	if !start.Before(end) {
		return false, fmt.Errorf("invalid interval: start %v is not before end %v", start, end)
	}

	cur := start.In(loc)
	stop := end.In(loc)
	for cur.Before(stop) {
		dayStart := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, loc)
		nextDay := time.Date(cur.Year(), cur.Month(), cur.Day()+1, 0, 0, 0, 0, loc)

		segEnd := stop
		if nextDay.Before(stop) {
			segEnd = nextDay
		}

		window, ok := res.WeeklyAvailability[dayStart.Weekday()]
		if !ok {
			return false, nil
		}
		winStartOff, err := model.ParseClock(window.Start)
		if err != nil {
			return false, fmt.Errorf("resource %s %s window: %w", res.ID, dayStart.Weekday(), err)
		}
		winEndOff, err := model.ParseClock(window.End)
		if err != nil {
			return false, fmt.Errorf("resource %s %s window: %w", res.ID, dayStart.Weekday(), err)
		}

		winStart := dayStart.Add(winStartOff)
		winEnd := dayStart.Add(winEndOff)
		if cur.Before(winStart) || segEnd.After(winEnd) {
			return false, nil
		}

		cur = nextDay
	}
	return true, nil
}
