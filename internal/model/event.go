package model

import "time"

// EventStatus is the lifecycle state of a scheduled event.
type EventStatus string

const (
	StatusPlanned    EventStatus = "planned"
	StatusConfirmed  EventStatus = "confirmed"
	StatusInProgress EventStatus = "in_progress"
	StatusCompleted  EventStatus = "completed"
	StatusCancelled  EventStatus = "cancelled"
)

// Terminal reports whether the status is historical. Terminal events are
// excluded from conflict and capacity checks.
func (s EventStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// RequiresAssignment reports whether the status demands at least one
// assigned resource. Planned events may sit unassigned.
func (s EventStatus) RequiresAssignment() bool {
	return s == StatusConfirmed || s == StatusInProgress
}

// Valid reports whether s is a recognized status value.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// EventPriority is advisory only: it orders display, never conflict logic.
type EventPriority string

const (
	PriorityLow       EventPriority = "low"
	PriorityNormal    EventPriority = "normal"
	PriorityHigh      EventPriority = "high"
	PriorityUrgent    EventPriority = "urgent"
	PriorityEmergency EventPriority = "emergency"
)

// Rank returns the ordinal position of the priority for tie-break ordering.
// Unknown values rank below low.
func (p EventPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	case PriorityEmergency:
		return 5
	}
	return 0
}

// ScheduledEvent is one unit of schedulable work bound to zero or more
// resources over a half-open interval [StartAt, EndAt).
type ScheduledEvent struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	SubjectID string `gorm:"size:128;not null;index" json:"subjectId"`

	StartAt time.Time `gorm:"not null;index" json:"start"`
	EndAt   time.Time `gorm:"not null;index" json:"end"`

	AssignedResourceIDs StringList `gorm:"type:text;not null" json:"assignedResourceIds"`

	Status   EventStatus   `gorm:"size:16;not null;index" json:"status"`
	Priority EventPriority `gorm:"size:16;not null" json:"priority"`

	// Derived: true while this event overlaps a sibling on a shared
	// resource. Recomputed on every commit touching either side.
	HasConflict bool `gorm:"not null" json:"hasConflict"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Overlaps tests half-open interval intersection against [start, end).
func (e *ScheduledEvent) Overlaps(start, end time.Time) bool {
	return e.StartAt.Before(end) && start.Before(e.EndAt)
}

// Duration returns the event's scheduled length.
func (e *ScheduledEvent) Duration() time.Duration {
	return e.EndAt.Sub(e.StartAt)
}
