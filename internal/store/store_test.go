package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fieldops-scheduler-backend/internal/model"
)

var testDBSeq int64

// newTestStore opens a fresh in-memory SQLite database for one test.
func newTestStore(t *testing.T, loc *time.Location) (Store, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:store_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.ScheduledEvent{}))
	return NewGormStore(db, loc), db
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err, "bad test timestamp %q", value)
	return parsed
}

func event(id, resourceID string, start, end time.Time) *model.ScheduledEvent {
	return &model.ScheduledEvent{
		ID:                  id,
		SubjectID:           "job-" + id,
		StartAt:             start,
		EndAt:               end,
		AssignedResourceIDs: model.StringList{resourceID},
		Status:              model.StatusPlanned,
		Priority:            model.PriorityNormal,
	}
}

func TestGormStore_CreateAndGet(t *testing.T) {
	st, _ := newTestStore(t, time.UTC)
	ctx := context.Background()

	id, err := st.CreateEvent(ctx, event("ev-1", "crew-1", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 12:00")))
	require.NoError(t, err)
	assert.Equal(t, "ev-1", id)

	got, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "job-ev-1", got.SubjectID)
	assert.Equal(t, model.StringList{"crew-1"}, got.AssignedResourceIDs)

	_, err = st.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_CreateRejectsInvalidInterval(t *testing.T) {
	st, db := newTestStore(t, time.UTC)

	at := ts(t, "2025-03-10 09:00")
	_, err := st.CreateEvent(context.Background(), event("ev-1", "crew-1", at, at))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	var n int64
	require.NoError(t, db.Model(&model.ScheduledEvent{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestGormStore_UpdateEvent(t *testing.T) {
	st, _ := newTestStore(t, time.UTC)
	ctx := context.Background()

	_, err := st.CreateEvent(ctx, event("ev-1", "crew-1", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 12:00")))
	require.NoError(t, err)

	t.Run("nil fields are untouched", func(t *testing.T) {
		status := model.StatusConfirmed
		updated, err := st.UpdateEvent(ctx, "ev-1", EventMutation{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, updated.Status)
		assert.Equal(t, ts(t, "2025-03-10 09:00"), updated.StartAt.UTC(), "interval must survive a status-only mutation")
		assert.Equal(t, model.StringList{"crew-1"}, updated.AssignedResourceIDs)
	})

	t.Run("an interval-breaking mutation is rejected whole", func(t *testing.T) {
		badStart := ts(t, "2025-03-10 13:00")
		flag := true
		_, err := st.UpdateEvent(ctx, "ev-1", EventMutation{StartAt: &badStart, HasConflict: &flag})
		assert.ErrorIs(t, err, ErrInvalidInterval)

		got, err := st.GetEvent(ctx, "ev-1")
		require.NoError(t, err)
		assert.False(t, got.HasConflict, "no part of a failed mutation may stick")
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := st.UpdateEvent(ctx, "missing", EventMutation{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGormStore_ListByResource(t *testing.T) {
	st, _ := newTestStore(t, time.UTC)
	ctx := context.Background()

	// Same start to exercise the id tie-break, plus one event for a
	// resource whose id shares a prefix.
	for _, ev := range []*model.ScheduledEvent{
		event("ev-b", "crew-1", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 10:00")),
		event("ev-a", "crew-1", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 11:00")),
		event("ev-c", "crew-1", ts(t, "2025-03-10 08:00"), ts(t, "2025-03-10 09:00")),
		event("ev-other", "crew-10", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 10:00")),
		event("ev-outside", "crew-1", ts(t, "2025-03-11 09:00"), ts(t, "2025-03-11 10:00")),
	} {
		_, err := st.CreateEvent(ctx, ev)
		require.NoError(t, err)
	}

	events, err := st.ListByResource(ctx, "crew-1", ts(t, "2025-03-10 00:00"), ts(t, "2025-03-11 00:00"))
	require.NoError(t, err)

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	assert.Equal(t, []string{"ev-c", "ev-a", "ev-b"}, ids,
		"ordered by start ascending, id breaking the tie; crew-10 must not leak into crew-1")
}

func TestGormStore_ResourceIDsWithSpecialCharacters(t *testing.T) {
	st, _ := newTestStore(t, time.UTC)
	ctx := context.Background()

	quoted := `crew-"alpha"`
	from, to := ts(t, "2025-03-10 00:00"), ts(t, "2025-03-11 00:00")

	for _, ev := range []*model.ScheduledEvent{
		event("ev-quoted", quoted, ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 10:00")),
		event("ev-underscore", "crew_1", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 10:00")),
		event("ev-lookalike", "crewX1", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 10:00")),
		event("ev-percent", "crew%", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 10:00")),
	} {
		_, err := st.CreateEvent(ctx, ev)
		require.NoError(t, err)
	}

	t.Run("a quote in the id survives the JSON round trip", func(t *testing.T) {
		// The column stores the quote escaped, so a naive pattern built
		// from the raw id would never match the row.
		events, err := st.ListByResource(ctx, quoted, from, to)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "ev-quoted", events[0].ID)

		overlapping, err := st.ListOverlapping(ctx, quoted, from, to, "")
		require.NoError(t, err)
		require.Len(t, overlapping, 1)
		assert.Equal(t, "ev-quoted", overlapping[0].ID)
	})

	t.Run("underscore is a literal, not a wildcard", func(t *testing.T) {
		events, err := st.ListByResource(ctx, "crew_1", from, to)
		require.NoError(t, err)
		require.Len(t, events, 1, "crewX1 must not match crew_1")
		assert.Equal(t, "ev-underscore", events[0].ID)
	})

	t.Run("percent is a literal, not a wildcard", func(t *testing.T) {
		events, err := st.ListByResource(ctx, "crew%", from, to)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "ev-percent", events[0].ID)
	})
}

func TestGormStore_ListByDate(t *testing.T) {
	east := time.FixedZone("UTC+8", 8*3600)
	st, _ := newTestStore(t, east)
	ctx := context.Background()

	// 20:00 UTC on March 10 is 04:00 on March 11 in UTC+8.
	_, err := st.CreateEvent(ctx, event("ev-late", "crew-1", ts(t, "2025-03-10 20:00"), ts(t, "2025-03-10 21:00")))
	require.NoError(t, err)
	// Spans local midnight; it belongs to both local days.
	_, err = st.CreateEvent(ctx, event("ev-span", "crew-1", ts(t, "2025-03-10 14:00"), ts(t, "2025-03-10 17:00")))
	require.NoError(t, err)

	march11 := time.Date(2025, 3, 11, 0, 0, 0, 0, east)
	events, err := st.ListByDate(ctx, march11)
	require.NoError(t, err)
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	assert.Equal(t, []string{"ev-span", "ev-late"}, ids)

	march10 := time.Date(2025, 3, 10, 0, 0, 0, 0, east)
	events, err = st.ListByDate(ctx, march10)
	require.NoError(t, err)
	require.Len(t, events, 1, "the late event falls on the 11th in local time")
	assert.Equal(t, "ev-span", events[0].ID)
}

func TestGormStore_ListOverlapping(t *testing.T) {
	st, _ := newTestStore(t, time.UTC)
	ctx := context.Background()

	cancelled := event("ev-cancelled", "crew-1", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 12:00"))
	cancelled.Status = model.StatusCancelled
	for _, ev := range []*model.ScheduledEvent{
		event("ev-hit", "crew-1", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 12:00")),
		event("ev-adjacent", "crew-1", ts(t, "2025-03-10 12:00"), ts(t, "2025-03-10 14:00")),
		cancelled,
	} {
		_, err := st.CreateEvent(ctx, ev)
		require.NoError(t, err)
	}

	events, err := st.ListOverlapping(ctx, "crew-1", ts(t, "2025-03-10 10:00"), ts(t, "2025-03-10 12:00"), "")
	require.NoError(t, err)
	require.Len(t, events, 1, "adjacent and cancelled events must not surface")
	assert.Equal(t, "ev-hit", events[0].ID)

	events, err = st.ListOverlapping(ctx, "crew-1", ts(t, "2025-03-10 10:00"), ts(t, "2025-03-10 12:00"), "ev-hit")
	require.NoError(t, err)
	assert.Empty(t, events, "the excluded id is filtered out")
}

func TestGormStore_CommitChange(t *testing.T) {
	st, db := newTestStore(t, time.UTC)
	ctx := context.Background()

	for _, ev := range []*model.ScheduledEvent{
		event("ev-a", "crew-1", ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 12:00")),
		event("ev-b", "crew-1", ts(t, "2025-03-10 13:00"), ts(t, "2025-03-10 15:00")),
	} {
		_, err := st.CreateEvent(ctx, ev)
		require.NoError(t, err)
	}
	require.NoError(t, db.Model(&model.ScheduledEvent{}).Where("id = ?", "ev-b").Update("has_conflict", true).Error)

	moved := event("ev-new", "crew-1", ts(t, "2025-03-10 10:00"), ts(t, "2025-03-10 11:00"))
	moved.HasConflict = true
	err := st.CommitChange(ctx, moved, []string{"ev-a"}, []string{"ev-b"})
	require.NoError(t, err)

	var got model.ScheduledEvent
	require.NoError(t, db.First(&got, "id = ?", "ev-new").Error)
	assert.True(t, got.HasConflict)
	got = model.ScheduledEvent{}
	require.NoError(t, db.First(&got, "id = ?", "ev-a").Error)
	assert.True(t, got.HasConflict, "flag ids are set in the same transaction")
	got = model.ScheduledEvent{}
	require.NoError(t, db.First(&got, "id = ?", "ev-b").Error)
	assert.False(t, got.HasConflict, "clear ids are reset in the same transaction")

	t.Run("invalid interval never reaches the database", func(t *testing.T) {
		bad := event("ev-bad", "crew-1", ts(t, "2025-03-10 12:00"), ts(t, "2025-03-10 12:00"))
		assert.ErrorIs(t, st.CommitChange(ctx, bad, nil, nil), ErrInvalidInterval)
		err := db.First(&model.ScheduledEvent{}, "id = ?", "ev-bad").Error
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}
