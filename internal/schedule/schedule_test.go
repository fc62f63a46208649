package schedule

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fieldops-scheduler-backend/internal/model"
	"fieldops-scheduler-backend/internal/registry"
	"fieldops-scheduler-backend/internal/store"
)

var testDBSeq int64

// newTestDB opens a fresh in-memory SQLite database for one test. The name
// is unique per call so parallel tests never share state.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:schedule_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Resource{}, &model.ScheduledEvent{}))
	return db
}

func newTestEngine(t *testing.T) (*Engine, store.Store, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	st := store.NewGormStore(db, time.UTC)
	reg := registry.New(db, time.UTC)
	return NewEngine(st, reg, nil, time.Second), st, db
}

// ts parses "2006-01-02 15:04" as UTC. 2025-03-10 is a Monday; most tests
// schedule within that week.
func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err, "bad test timestamp %q", value)
	return parsed
}

func windows(start, end string, days ...time.Weekday) model.WeeklyAvailability {
	w := model.WeeklyAvailability{}
	for _, d := range days {
		w[d] = model.DayWindow{Start: start, End: end}
	}
	return w
}

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}

func crewResource(id string, maxDay, maxWeek float64) *model.Resource {
	return &model.Resource{
		ID:                 id,
		Kind:               model.KindCrew,
		Name:               "Crew " + id,
		WeeklyAvailability: windows("07:00", "17:00", weekdays...),
		MaxHoursPerDay:     maxDay,
		MaxHoursPerWeek:    maxWeek,
		Active:             true,
	}
}

func seedResource(t *testing.T, db *gorm.DB, res *model.Resource) {
	t.Helper()
	require.NoError(t, db.Create(res).Error)
}

func seedEvent(t *testing.T, db *gorm.DB, ev *model.ScheduledEvent) {
	t.Helper()
	if ev.Status == "" {
		ev.Status = model.StatusPlanned
	}
	if ev.Priority == "" {
		ev.Priority = model.PriorityNormal
	}
	if ev.AssignedResourceIDs == nil {
		ev.AssignedResourceIDs = model.StringList{}
	}
	require.NoError(t, db.Create(ev).Error)
}

func fetchEvent(t *testing.T, db *gorm.DB, id string) *model.ScheduledEvent {
	t.Helper()
	var ev model.ScheduledEvent
	require.NoError(t, db.First(&ev, "id = ?", id).Error)
	return &ev
}
