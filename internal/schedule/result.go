package schedule

import (
	"time"

	"fieldops-scheduler-backend/internal/model"
)

// TransactionStatus is the terminal state of a proposal. There are no
// automatic retries; a caller resubmits a corrected proposal.
type TransactionStatus string

const (
	TransactionCommitted TransactionStatus = "committed"
	TransactionRejected  TransactionStatus = "rejected"
)

// InvalidityCode classifies structural rejections caught before any
// availability or conflict work.
type InvalidityCode string

const (
	InvalidInterval    InvalidityCode = "invalid_interval"
	MissingAssignment  InvalidityCode = "missing_assignment"
	UnknownStatus      InvalidityCode = "unknown_status"
	UnknownResource    InvalidityCode = "unknown_resource"
	UnknownEvent       InvalidityCode = "unknown_event"
)

// Invalidity is one structural problem with a proposal.
type Invalidity struct {
	Code       InvalidityCode `json:"code"`
	ResourceID string         `json:"resourceId,omitempty"`
	EventID    string         `json:"eventId,omitempty"`
}

// ConflictRef identifies one existing event that overlaps the candidate,
// tagged with the resource both sides share.
type ConflictRef struct {
	EventID    string    `json:"eventId"`
	ResourceID string    `json:"resourceId"`
	SubjectID  string    `json:"subjectId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// AvailabilityReason is one way a resource can be unavailable for a
// candidate interval.
type AvailabilityReason string

const (
	ReasonResourceInactive    AvailabilityReason = "RESOURCE_INACTIVE"
	ReasonOutsideWorkingHours AvailabilityReason = "OUTSIDE_WORKING_HOURS"
	ReasonDailyCapExceeded    AvailabilityReason = "DAILY_CAP_EXCEEDED"
	ReasonWeeklyCapExceeded   AvailabilityReason = "WEEKLY_CAP_EXCEEDED"
)

// AvailabilityResult carries every applicable reason for one resource so a
// caller can render a complete explanation; reasons are never
// short-circuited.
type AvailabilityResult struct {
	ResourceID string               `json:"resourceId"`
	OK         bool                 `json:"ok"`
	Reasons    []AvailabilityReason `json:"reasons,omitempty"`
}

// TransactionResult is the structured outcome of a proposal. A rejection is
// a normal outcome, not a fault: the store is left untouched and the result
// explains the cause in full.
type TransactionResult struct {
	Status       TransactionStatus     `json:"status"`
	Event        *model.ScheduledEvent `json:"event,omitempty"`
	Invalid      []Invalidity          `json:"invalid,omitempty"`
	Conflicts    []ConflictRef         `json:"conflicts,omitempty"`
	Availability []AvailabilityResult  `json:"availabilityReasons,omitempty"`
}

func rejected(result TransactionResult) *TransactionResult {
	result.Status = TransactionRejected
	return &result
}
