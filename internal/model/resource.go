package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResourceKind distinguishes assignable resource types.
type ResourceKind string

const (
	KindCrew    ResourceKind = "crew"
	KindVehicle ResourceKind = "vehicle"
)

// DayWindow is one weekday's bookable range, half-open [Start, End).
// Times are "HH:MM" wall clock in the scheduler's time zone.
type DayWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyAvailability maps a weekday to its optional window. A missing
// weekday means the resource cannot be booked that day.
type WeeklyAvailability map[time.Weekday]DayWindow

// Value serializes the availability map as JSON for storage.
func (w WeeklyAvailability) Value() (driver.Value, error) {
	if w == nil {
		return "{}", nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes the availability map from its stored JSON form.
func (w *WeeklyAvailability) Scan(src any) error {
	return scanJSON(src, w, "WeeklyAvailability")
}

// StringList is a JSON-serialized list of opaque ids. Events carry their
// resource ids by value in a single column so single-event updates stay
// atomic without a join table.
type StringList []string

// Value serializes the list as JSON for storage.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes the list from its stored JSON form.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, l, "StringList")
}

// Contains reports whether id is present in the list.
func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

func scanJSON(src, dst any, what string) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into %s", src, what)
	}
}

// Resource is an assignable crew member or vehicle.
type Resource struct {
	ID     string       `gorm:"primaryKey;size:64" json:"id"`
	Kind   ResourceKind `gorm:"size:16;not null;index" json:"kind"`
	Name   string       `gorm:"size:128;not null" json:"name"`
	Skills StringList   `gorm:"type:text" json:"skills"`

	WeeklyAvailability WeeklyAvailability `gorm:"type:text" json:"weeklyAvailability"`

	// Hour caps apply to crew; zero means uncapped (vehicles).
	MaxHoursPerDay  float64 `json:"maxHoursPerDay"`
	MaxHoursPerWeek float64 `json:"maxHoursPerWeek"`

	// Inactive resources keep their historical events but reject new
	// assignments. Rows are never deleted while events reference them.
	Active bool `gorm:"not null;index" json:"active"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// ParseClock parses an "HH:MM" wall-clock string into an offset from
// midnight.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in clock time %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
