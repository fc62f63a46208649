package schedule

import (
	"context"
	"time"

	"fieldops-scheduler-backend/internal/store"
)

// Candidate is a proposed placement to test for double-bookings: an
// interval plus the resources it would occupy. ExcludeEventID is set when
// the candidate is a move of an existing event, so the event is not
// reported as conflicting with itself.
type Candidate struct {
	Start          time.Time
	End            time.Time
	ResourceIDs    []string
	ExcludeEventID string
}

// Detector finds existing non-terminal events that would share a resource
// and overlap in time with a candidate placement.
type Detector struct {
	store store.Store
}

// NewDetector creates a conflict detector over the given event store.
func NewDetector(st store.Store) *Detector {
	return &Detector{store: st}
}

// Find returns every conflicting event across the candidate's resources,
// one reference per (event, resource) pair, in deterministic order. An
// empty result means the placement is conflict-free. Each lookup is bounded
// to one resource's events over the candidate interval.
func (d *Detector) Find(ctx context.Context, cand Candidate) ([]ConflictRef, error) {
	var refs []ConflictRef
	seen := make(map[string]bool)
	for _, rid := range cand.ResourceIDs {
		events, err := d.store.ListOverlapping(ctx, rid, cand.Start, cand.End, cand.ExcludeEventID)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			key := e.ID + "/" + rid
			if seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, ConflictRef{
				EventID:    e.ID,
				ResourceID: rid,
				SubjectID:  e.SubjectID,
				Start:      e.StartAt,
				End:        e.EndAt,
			})
		}
	}
	return refs, nil
}
