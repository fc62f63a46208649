package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"fieldops-scheduler-backend/internal/model"
)

var (
	// ErrNotFound is returned when no event exists for the given id.
	ErrNotFound = errors.New("event not found")
	// ErrInvalidInterval is returned when an event's start is not
	// strictly before its end.
	ErrInvalidInterval = errors.New("event start must be before end")
)

// EventMutation is a partial change applied to a stored event. Nil fields
// are left untouched.
type EventMutation struct {
	StartAt             *time.Time
	EndAt               *time.Time
	AssignedResourceIDs *model.StringList
	Status              *model.EventStatus
	HasConflict         *bool
}

// Store defines the interface for all event persistence operations. Each
// operation is transactionally atomic; multi-event changes are composed by
// the scheduling engine through CommitChange.
type Store interface {
	DB() *gorm.DB

	CreateEvent(ctx context.Context, event *model.ScheduledEvent) (string, error)
	GetEvent(ctx context.Context, id string) (*model.ScheduledEvent, error)
	UpdateEvent(ctx context.Context, id string, mut EventMutation) (*model.ScheduledEvent, error)

	// ListByResource returns the resource's events intersecting
	// [from, to), ordered by start ascending with id as tie-break.
	ListByResource(ctx context.Context, resourceID string, from, to time.Time) ([]model.ScheduledEvent, error)

	// ListByDate returns every event intersecting the given calendar day
	// in the store's configured time zone.
	ListByDate(ctx context.Context, date time.Time) ([]model.ScheduledEvent, error)

	// ListOverlapping returns the resource's non-terminal events whose
	// intervals intersect [start, end), excluding excludeID when set.
	ListOverlapping(ctx context.Context, resourceID string, start, end time.Time, excludeID string) ([]model.ScheduledEvent, error)

	// CommitChange persists the event together with conflict-flag updates
	// on sibling events in a single transaction.
	CommitChange(ctx context.Context, event *model.ScheduledEvent, flagIDs, clearIDs []string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	loc *time.Location
}

// NewGormStore creates a new GORM-backed store. Day boundaries for
// ListByDate are computed in loc.
func NewGormStore(db *gorm.DB, loc *time.Location) Store {
	if loc == nil {
		loc = time.UTC
	}
	return &gormStore{db: db, loc: loc}
}

// DB exposes the underlying connection for read-side consumers.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateEvent inserts a new event after validating its interval.
func (s *gormStore) CreateEvent(ctx context.Context, event *model.ScheduledEvent) (string, error) {
	if !event.StartAt.Before(event.EndAt) {
		return "", ErrInvalidInterval
	}
	if event.AssignedResourceIDs == nil {
		event.AssignedResourceIDs = model.StringList{}
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return event.ID, nil
}

// GetEvent fetches a single event by id.
func (s *gormStore) GetEvent(ctx context.Context, id string) (*model.ScheduledEvent, error) {
	var event model.ScheduledEvent
	err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event %s: %w", id, err)
	}
	return &event, nil
}

// UpdateEvent applies a partial mutation atomically and returns the updated
// event.
func (s *gormStore) UpdateEvent(ctx context.Context, id string, mut EventMutation) (*model.ScheduledEvent, error) {
	var updated model.ScheduledEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		applyMutation(&updated, mut)
		if !updated.StartAt.Before(updated.EndAt) {
			return ErrInvalidInterval
		}
		return tx.Save(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func applyMutation(event *model.ScheduledEvent, mut EventMutation) {
	if mut.StartAt != nil {
		event.StartAt = *mut.StartAt
	}
	if mut.EndAt != nil {
		event.EndAt = *mut.EndAt
	}
	if mut.AssignedResourceIDs != nil {
		event.AssignedResourceIDs = *mut.AssignedResourceIDs
	}
	if mut.Status != nil {
		event.Status = *mut.Status
	}
	if mut.HasConflict != nil {
		event.HasConflict = *mut.HasConflict
	}
}

// ListByResource returns the resource's events intersecting [from, to).
func (s *gormStore) ListByResource(ctx context.Context, resourceID string, from, to time.Time) ([]model.ScheduledEvent, error) {
	var events []model.ScheduledEvent
	err := s.db.WithContext(ctx).
		Where("start_at < ? AND end_at > ?", to.UTC(), from.UTC()).
		Where(`assigned_resource_ids LIKE ? ESCAPE '\'`, resourceLikePattern(resourceID)).
		Order("start_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events for resource %s: %w", resourceID, err)
	}
	return filterByResource(events, resourceID), nil
}

// ListByDate returns every event intersecting the given calendar day.
func (s *gormStore) ListByDate(ctx context.Context, date time.Time) ([]model.ScheduledEvent, error) {
	d := date.In(s.loc)
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	// Query bounds are normalized to UTC to match stored timestamps.
	var events []model.ScheduledEvent
	err := s.db.WithContext(ctx).
		Where("start_at < ? AND end_at > ?", dayEnd.UTC(), dayStart.UTC()).
		Order("start_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events for %s: %w", dayStart.Format("2006-01-02"), err)
	}
	return events, nil
}

// ListOverlapping returns the resource's non-terminal events intersecting
// [start, end). The query is bounded by the interval and the resource, never
// a whole-table scan.
func (s *gormStore) ListOverlapping(ctx context.Context, resourceID string, start, end time.Time, excludeID string) ([]model.ScheduledEvent, error) {
	q := s.db.WithContext(ctx).
		Where("start_at < ? AND end_at > ?", end.UTC(), start.UTC()).
		Where("status NOT IN ?", []model.EventStatus{model.StatusCompleted, model.StatusCancelled}).
		Where(`assigned_resource_ids LIKE ? ESCAPE '\'`, resourceLikePattern(resourceID))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var events []model.ScheduledEvent
	if err := q.Order("start_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list overlapping events for resource %s: %w", resourceID, err)
	}
	return filterByResource(events, resourceID), nil
}

// CommitChange persists the event and flips conflict flags on siblings in
// one transaction. A failed commit leaves the store unchanged.
func (s *gormStore) CommitChange(ctx context.Context, event *model.ScheduledEvent, flagIDs, clearIDs []string) error {
	if !event.StartAt.Before(event.EndAt) {
		return ErrInvalidInterval
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(event).Error; err != nil {
			return fmt.Errorf("failed to save event %s: %w", event.ID, err)
		}
		if len(flagIDs) > 0 {
			if err := tx.Model(&model.ScheduledEvent{}).
				Where("id IN ?", flagIDs).
				Update("has_conflict", true).Error; err != nil {
				return fmt.Errorf("failed to flag conflicting events: %w", err)
			}
		}
		if len(clearIDs) > 0 {
			if err := tx.Model(&model.ScheduledEvent{}).
				Where("id IN ?", clearIDs).
				Update("has_conflict", false).Error; err != nil {
				return fmt.Errorf("failed to clear conflict flags: %w", err)
			}
		}
		return nil
	})
}

// resourceLikePattern matches the JSON-encoded id inside the serialized
// resource list. Ids are opaque, so the pattern uses the same JSON encoding
// the column stores and escapes LIKE wildcards; the prefilter may over-match
// but never drops a real assignment. Results are still re-checked against
// the decoded list.
func resourceLikePattern(resourceID string) string {
	encoded, _ := json.Marshal(resourceID)
	quoted := strings.ReplaceAll(string(encoded), `\`, `\\`)
	quoted = strings.ReplaceAll(quoted, `%`, `\%`)
	quoted = strings.ReplaceAll(quoted, `_`, `\_`)
	return "%" + quoted + "%"
}

func filterByResource(events []model.ScheduledEvent, resourceID string) []model.ScheduledEvent {
	out := events[:0]
	for _, e := range events {
		if e.AssignedResourceIDs.Contains(resourceID) {
			out = append(out, e)
		}
	}
	return out
}
