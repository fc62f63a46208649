package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"fieldops-scheduler-backend/internal/model"
	"fieldops-scheduler-backend/internal/registry"
	"fieldops-scheduler-backend/internal/store"
)

// Change is a proposed schedule mutation. Exactly one of the concrete
// change types is submitted per proposal.
type Change interface {
	isChange()
}

// Create places a new event on the timeline.
type Create struct {
	SubjectID   string
	Start       time.Time
	End         time.Time
	ResourceIDs []string
	Status      model.EventStatus   // defaults to planned
	Priority    model.EventPriority // defaults to normal
}

// Move changes an existing event's interval.
type Move struct {
	EventID string
	Start   time.Time
	End     time.Time
}

// Reassign changes an existing event's resource set.
type Reassign struct {
	EventID     string
	ResourceIDs []string
}

// StatusChange changes only an existing event's status. Placement is not
// re-checked, unless the change reactivates a terminal event.
type StatusChange struct {
	EventID string
	Status  model.EventStatus
}

func (Create) isChange()       {}
func (Move) isChange()         {}
func (Reassign) isChange()     {}
func (StatusChange) isChange() {}

// Options tune how a proposal is validated.
type Options struct {
	// AllowConflict commits a double-booking anyway, tagging both sides
	// with hasConflict instead of rejecting.
	AllowConflict bool
}

// Notifier is invoked after a successful commit with the committed event
// and every affected resource id. Fire-and-forget: its failures never roll
// back the transaction.
type Notifier interface {
	EventCommitted(event *model.ScheduledEvent, resourceIDs []string)
}

// Engine is the reschedule transaction: it validates a proposed change
// against availability and conflicts under per-resource locks, and only
// then commits it to the event store. Steps before the commit are read-only,
// so a rejected proposal leaves the store untouched.
type Engine struct {
	store     store.Store
	registry  *registry.Registry
	detector  *Detector
	evaluator *Evaluator
	locks     *ResourceLocks
	lockWait  time.Duration
	notifier  Notifier
}

// NewEngine wires the engine over its collaborators. notifier may be nil.
func NewEngine(st store.Store, reg *registry.Registry, notifier Notifier, lockWait time.Duration) *Engine {
	if lockWait <= 0 {
		lockWait = 2 * time.Second
	}
	return &Engine{
		store:     st,
		registry:  reg,
		detector:  NewDetector(st),
		evaluator: NewEvaluator(reg, st),
		locks:     NewResourceLocks(),
		lockWait:  lockWait,
		notifier:  notifier,
	}
}

// Propose runs a change through the validate-then-commit pipeline and
// returns its structured outcome. Domain rejections are normal results;
// only lock timeouts and storage failures surface as errors.
func (e *Engine) Propose(ctx context.Context, change Change, opts Options) (*TransactionResult, error) {
	prior, reject, err := e.loadPrior(ctx, change)
	if err != nil || reject != nil {
		return reject, err
	}
	next, statusOnly := applyChange(change, prior)

	if invalid := structuralProblems(&next); len(invalid) > 0 {
		return rejected(TransactionResult{Invalid: invalid}), nil
	}

	release, prior, next, err := e.lockAffected(ctx, change, prior, next)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-validate against the fresh copy picked up under the locks.
	if invalid := structuralProblems(&next); len(invalid) > 0 {
		return rejected(TransactionResult{Invalid: invalid}), nil
	}

	// A status-only change keeps its already validated placement, except
	// when it reactivates a terminal event: that re-enters the event into
	// the schedule, so the full placement checks apply again.
	reactivating := statusOnly && prior != nil && prior.Status.Terminal() && !next.Status.Terminal()
	checkPlacement := (!statusOnly || reactivating) && !next.Status.Terminal()

	var availability []AvailabilityResult
	if !statusOnly || reactivating {
		var unknown []Invalidity
		for _, rid := range next.AssignedResourceIDs {
			if !checkPlacement {
				if _, err := e.registry.Get(ctx, rid); err != nil {
					if errors.Is(err, registry.ErrNotFound) {
						unknown = append(unknown, Invalidity{Code: UnknownResource, ResourceID: rid})
						continue
					}
					return nil, err
				}
				continue
			}
			result, err := e.evaluator.Evaluate(ctx, rid, next.StartAt, next.EndAt, next.ID)
			if err != nil {
				if errors.Is(err, registry.ErrNotFound) {
					unknown = append(unknown, Invalidity{Code: UnknownResource, ResourceID: rid})
					continue
				}
				return nil, err
			}
			availability = append(availability, result)
		}
		if len(unknown) > 0 {
			return rejected(TransactionResult{Invalid: unknown}), nil
		}
	}

	var conflicts []ConflictRef
	if checkPlacement {
		conflicts, err = e.detector.Find(ctx, Candidate{
			Start:          next.StartAt,
			End:            next.EndAt,
			ResourceIDs:    next.AssignedResourceIDs,
			ExcludeEventID: next.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	// Availability and conflict findings are reported together so the
	// caller sees the complete picture in one rejection.
	unavailable := false
	for _, a := range availability {
		if !a.OK {
			unavailable = true
		}
	}
	if unavailable {
		return rejected(TransactionResult{Availability: availability, Conflicts: conflicts}), nil
	}
	if len(conflicts) > 0 && !opts.AllowConflict {
		return rejected(TransactionResult{Conflicts: conflicts}), nil
	}

	if checkPlacement {
		next.HasConflict = len(conflicts) > 0
	} else if next.Status.Terminal() {
		// Historical events are never conflicts; a status-only change to
		// a non-terminal status keeps the existing flag.
		next.HasConflict = false
	}

	clearIDs, err := e.clearableSiblings(ctx, prior, &next)
	if err != nil {
		return nil, err
	}

	if err := e.store.CommitChange(ctx, &next, uniqueEventIDs(conflicts), clearIDs); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	if e.notifier != nil {
		affected := next.AssignedResourceIDs
		if prior != nil {
			affected = append(append(model.StringList{}, affected...), prior.AssignedResourceIDs...)
		}
		e.notifier.EventCommitted(&next, dedupeSorted(affected))
	}

	return &TransactionResult{
		Status:       TransactionCommitted,
		Event:        &next,
		Conflicts:    conflicts,
		Availability: availability,
	}, nil
}

// loadPrior fetches the targeted event for non-create changes. An unknown
// event id is a structured rejection, not an error.
func (e *Engine) loadPrior(ctx context.Context, change Change) (*model.ScheduledEvent, *TransactionResult, error) {
	var id string
	switch c := change.(type) {
	case Create:
		return nil, nil, nil
	case Move:
		id = c.EventID
	case Reassign:
		id = c.EventID
	case StatusChange:
		id = c.EventID
	default:
		return nil, nil, fmt.Errorf("unsupported change type %T", change)
	}

	event, err := e.store.GetEvent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rejected(TransactionResult{Invalid: []Invalidity{{Code: UnknownEvent, EventID: id}}}), nil
	}
	if err != nil {
		return nil, nil, err
	}
	return event, nil, nil
}

// applyChange derives the post-change event. For creates it mints the id.
func applyChange(change Change, prior *model.ScheduledEvent) (model.ScheduledEvent, bool) {
	switch c := change.(type) {
	case Create:
		status := c.Status
		if status == "" {
			status = model.StatusPlanned
		}
		priority := c.Priority
		if priority == "" {
			priority = model.PriorityNormal
		}
		return model.ScheduledEvent{
			ID:                  uuid.NewString(),
			SubjectID:           c.SubjectID,
			StartAt:             c.Start,
			EndAt:               c.End,
			AssignedResourceIDs: append(model.StringList{}, c.ResourceIDs...),
			Status:              status,
			Priority:            priority,
		}, false
	case Move:
		next := *prior
		next.StartAt = c.Start
		next.EndAt = c.End
		return next, false
	case Reassign:
		next := *prior
		next.AssignedResourceIDs = append(model.StringList{}, c.ResourceIDs...)
		return next, false
	case StatusChange:
		next := *prior
		next.Status = c.Status
		return next, true
	}
	return model.ScheduledEvent{}, false
}

func structuralProblems(next *model.ScheduledEvent) []Invalidity {
	var invalid []Invalidity
	if !next.StartAt.Before(next.EndAt) {
		invalid = append(invalid, Invalidity{Code: InvalidInterval})
	}
	if !next.Status.Valid() {
		invalid = append(invalid, Invalidity{Code: UnknownStatus})
	}
	if next.Status.RequiresAssignment() && len(next.AssignedResourceIDs) == 0 {
		invalid = append(invalid, Invalidity{Code: MissingAssignment})
	}
	return invalid
}

// lockAffected acquires the locks covering every resource the change
// touches, then refreshes the target event so validation never runs on a
// stale view. If the refresh reveals resources outside the held lock set
// (the event was reassigned concurrently), it retries with the wider set.
func (e *Engine) lockAffected(ctx context.Context, change Change, prior *model.ScheduledEvent, next model.ScheduledEvent) (func(), *model.ScheduledEvent, model.ScheduledEvent, error) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		keys := lockKeys(prior, &next)
		release, err := e.locks.Acquire(keys, e.lockWait)
		if err != nil {
			return nil, nil, next, err
		}
		if prior == nil {
			return release, nil, next, nil
		}

		fresh, err := e.store.GetEvent(ctx, prior.ID)
		if err != nil {
			release()
			return nil, nil, next, err
		}
		next, _ = applyChange(change, fresh)
		if covered(keys, lockKeys(fresh, &next)) {
			return release, fresh, next, nil
		}
		release()
		prior = fresh
	}
	return nil, nil, next, ErrLockTimeout
}

func lockKeys(prior *model.ScheduledEvent, next *model.ScheduledEvent) []string {
	keys := append([]string{}, next.AssignedResourceIDs...)
	if prior != nil {
		keys = append(keys, prior.AssignedResourceIDs...)
	}
	return dedupeSorted(keys)
}

func covered(held, needed []string) bool {
	have := make(map[string]bool, len(held))
	for _, k := range held {
		have[k] = true
	}
	for _, k := range needed {
		if !have[k] {
			return false
		}
	}
	return true
}

// clearableSiblings finds flagged events that no longer overlap anything
// once the change commits, so their hasConflict can be cleared in the same
// transaction. Conflict is a property of the pair: moving or cancelling one
// side must unflag the other when it was the only partner.
func (e *Engine) clearableSiblings(ctx context.Context, prior *model.ScheduledEvent, next *model.ScheduledEvent) ([]string, error) {
	candidates := make(map[string]model.ScheduledEvent)
	collect := func(ev *model.ScheduledEvent) error {
		if ev == nil {
			return nil
		}
		for _, rid := range ev.AssignedResourceIDs {
			siblings, err := e.store.ListOverlapping(ctx, rid, ev.StartAt, ev.EndAt, next.ID)
			if err != nil {
				return err
			}
			for _, s := range siblings {
				if s.HasConflict {
					candidates[s.ID] = s
				}
			}
		}
		return nil
	}
	if err := collect(prior); err != nil {
		return nil, err
	}
	if err := collect(next); err != nil {
		return nil, err
	}

	var clear []string
	for _, sib := range candidates {
		still, err := e.stillConflicted(ctx, sib, next)
		if err != nil {
			return nil, err
		}
		if !still {
			clear = append(clear, sib.ID)
		}
	}
	sort.Strings(clear)
	return clear, nil
}

// stillConflicted rechecks one sibling against the store plus the not yet
// committed placement of next.
func (e *Engine) stillConflicted(ctx context.Context, sib model.ScheduledEvent, next *model.ScheduledEvent) (bool, error) {
	nextActive := !next.Status.Terminal()
	for _, rid := range sib.AssignedResourceIDs {
		others, err := e.store.ListOverlapping(ctx, rid, sib.StartAt, sib.EndAt, sib.ID)
		if err != nil {
			return true, err
		}
		for _, o := range others {
			if o.ID == next.ID {
				continue // pre-commit copy; the post-commit placement is checked below
			}
			return true, nil
		}
		if nextActive && next.AssignedResourceIDs.Contains(rid) && next.Overlaps(sib.StartAt, sib.EndAt) {
			return true, nil
		}
	}
	return false, nil
}

func uniqueEventIDs(refs []ConflictRef) []string {
	seen := make(map[string]bool, len(refs))
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		if seen[r.EventID] {
			continue
		}
		seen[r.EventID] = true
		ids = append(ids, r.EventID)
	}
	return ids
}
