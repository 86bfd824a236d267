// Package ledger owns the authoritative capacity, registration and waitlist
// state of events.
//
// Every mutation runs inside Store.LockEvent, so the read-decide-write
// sequence on an event's counter is serialised per event. Notices are handed
// to the Emitter only after the transaction commits; a rolled back operation
// emits nothing.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/google/uuid"
)

// Ledger implements register, cancel and waitlist promotion on top of a Store.
type Ledger struct {
	store   Store
	emitter Emitter
	logger  logger.Logger
	newID   IDGenerator
	now     func() time.Time
}

type Option func(*Ledger)

// WithIDGenerator overrides how registration ids are minted.
func WithIDGenerator(g IDGenerator) Option {
	return func(l *Ledger) { l.newID = g }
}

// WithClock overrides the clock used by operations that take no explicit time.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New constructs a Ledger. A nil emitter discards notices.
func New(store Store, emitter Emitter, l logger.Logger, opts ...Option) *Ledger {
	if emitter == nil {
		emitter = EmitterFunc(func(context.Context, ...model.Notice) {})
	}
	ld := &Ledger{
		store:   store,
		emitter: emitter,
		logger:  l,
		newID:   newRegistrationID,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// UUIDv7 keeps the id tie-break aligned with creation order.
func newRegistrationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Register creates a confirmed registration when a seat is free, a waitlisted
// one when the event is full and allows a waitlist, and fails otherwise.
func (l *Ledger) Register(ctx context.Context, userID, eventID string, now time.Time) (*model.Registration, error) {
	var (
		result *model.Registration
		notice model.Notice
	)

	err := l.store.LockEvent(ctx, eventID, func(ctx context.Context, tx Tx) error {
		ev := tx.Event()
		if !ev.IsActive {
			return ErrEventInactive
		}

		existing, err := tx.Registration(ctx, userID)
		if err != nil {
			return fmt.Errorf("find registration: %w", err)
		}
		if existing != nil && existing.Status.Active() {
			return ErrAlreadyRegistered
		}
		if now.After(ev.RegistrationDeadline) {
			return ErrRegistrationClosed
		}

		// A cancelled record is revived so (user, event) stays unique.
		reg := existing
		if reg == nil {
			reg = &model.Registration{ID: l.newID(), EventID: eventID, UserID: userID}
		}
		reg.RegisteredAt = now
		reg.UpdatedAt = now
		reg.CancelledAt = nil

		kind := model.NoticeRegistrationConfirmed
		switch {
		case !ev.IsFull():
			reg.Status = model.StatusRegistered
			ev.CurrentRegistrations++
			mustHoldCapacity(ev)
			if err := tx.SaveEvent(ctx, ev); err != nil {
				return fmt.Errorf("save event counter: %w", err)
			}
		case ev.AllowWaitlist:
			reg.Status = model.StatusWaitlisted
			kind = model.NoticeWaitlistAdded
		default:
			return ErrEventFull
		}

		if err := tx.SaveRegistration(ctx, reg); err != nil {
			return fmt.Errorf("save registration: %w", err)
		}

		result = reg
		notice = newNotice(kind, ev, reg, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Registration created",
		"event_id", eventID,
		"user_id", userID,
		"status", result.Status,
	)
	l.emit(ctx, notice)
	return result, nil
}

// Cancel cancels the user's active registration. Freeing a confirmed seat
// promotes waitlisted users in the same transaction.
func (l *Ledger) Cancel(ctx context.Context, userID, eventID string, now time.Time) (*model.Registration, error) {
	var (
		result   *model.Registration
		promoted []model.Registration
		ev       *model.Event
	)

	err := l.store.LockEvent(ctx, eventID, func(ctx context.Context, tx Tx) error {
		ev = tx.Event()

		reg, err := tx.Registration(ctx, userID)
		if err != nil {
			return fmt.Errorf("find registration: %w", err)
		}
		if reg == nil || !reg.Status.Active() {
			return ErrNotRegistered
		}

		prior := reg.Status
		reg.Status = model.StatusCancelled
		reg.UpdatedAt = now
		reg.CancelledAt = &now
		if err := tx.SaveRegistration(ctx, reg); err != nil {
			return fmt.Errorf("save registration: %w", err)
		}
		result = reg

		if prior != model.StatusRegistered {
			return nil
		}

		ev.CurrentRegistrations--
		mustHoldCapacity(ev)

		promoted, err = l.promoteLocked(ctx, tx, ev, now)
		if err != nil {
			return err
		}
		if err := tx.SaveEvent(ctx, ev); err != nil {
			return fmt.Errorf("save event counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Registration cancelled",
		"event_id", eventID,
		"user_id", userID,
		"promoted", len(promoted),
	)
	l.emit(ctx, promotionNotices(ev, promoted, now)...)
	return result, nil
}

// Promote moves waitlisted users into free seats. It is a no-op when there
// is no free seat, nobody is waiting, or the event is inactive.
func (l *Ledger) Promote(ctx context.Context, eventID string) ([]model.Registration, error) {
	now := l.now()

	var (
		promoted []model.Registration
		ev       *model.Event
	)

	err := l.store.LockEvent(ctx, eventID, func(ctx context.Context, tx Tx) error {
		ev = tx.Event()

		var err error
		promoted, err = l.promoteLocked(ctx, tx, ev, now)
		if err != nil {
			return err
		}
		if len(promoted) == 0 {
			return nil
		}
		if err := tx.SaveEvent(ctx, ev); err != nil {
			return fmt.Errorf("save event counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(promoted) > 0 {
		l.logger.Info("Waitlist promoted", "event_id", eventID, "promoted", len(promoted))
	}
	l.emit(ctx, promotionNotices(ev, promoted, now)...)
	return promoted, nil
}

// ResizeCapacity changes an event's capacity. Shrinking below the confirmed
// count is rejected; growing promotes waitlisted users into the new seats.
func (l *Ledger) ResizeCapacity(ctx context.Context, eventID string, capacity int) ([]model.Registration, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	now := l.now()

	var (
		promoted []model.Registration
		ev       *model.Event
	)

	err := l.store.LockEvent(ctx, eventID, func(ctx context.Context, tx Tx) error {
		ev = tx.Event()
		if capacity < ev.CurrentRegistrations {
			return ErrCapacityBelowRegistrations
		}
		if capacity == ev.Capacity {
			return nil
		}

		ev.Capacity = capacity
		var err error
		promoted, err = l.promoteLocked(ctx, tx, ev, now)
		if err != nil {
			return err
		}
		if err := tx.SaveEvent(ctx, ev); err != nil {
			return fmt.Errorf("save event capacity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Capacity resized",
		"event_id", eventID,
		"capacity", capacity,
		"promoted", len(promoted),
	)
	l.emit(ctx, promotionNotices(ev, promoted, now)...)
	return promoted, nil
}

// UpdateEvent applies an organizer's edit. The descriptive fields, the new
// capacity and any promotion it allows commit in one transaction, so a
// failed write leaves the event, its waitlist and the notices untouched.
// Attendees are told when the schedule or location changed.
func (l *Ledger) UpdateEvent(ctx context.Context, eventID string, req model.UpdateEventRequest) (*model.Event, error) {
	if req.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	now := l.now()

	var (
		ev       *model.Event
		change   model.ChangeKind
		promoted []model.Registration
		updated  []model.Notice
	)

	err := l.store.LockEvent(ctx, eventID, func(ctx context.Context, tx Tx) error {
		ev = tx.Event()
		if req.Capacity < ev.CurrentRegistrations {
			return ErrCapacityBelowRegistrations
		}

		change = classifyChange(ev, req)
		applyDetails(ev, req)
		ev.UpdatedAt = now
		if err := tx.SaveDetails(ctx, ev); err != nil {
			return fmt.Errorf("save event details: %w", err)
		}

		if req.Capacity != ev.Capacity {
			ev.Capacity = req.Capacity
			var err error
			promoted, err = l.promoteLocked(ctx, tx, ev, now)
			if err != nil {
				return err
			}
			if err := tx.SaveEvent(ctx, ev); err != nil {
				return fmt.Errorf("save event capacity: %w", err)
			}
		}

		if !change.Significant() {
			return nil
		}
		regs, err := activeRegistrations(ctx, tx)
		if err != nil {
			return err
		}
		for i := range regs {
			n := newNotice(model.NoticeEventUpdated, ev, &regs[i], now)
			n.Change = change
			updated = append(updated, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Event updated",
		"event_id", eventID,
		"change", change,
		"capacity", ev.Capacity,
		"promoted", len(promoted),
		"notified", len(updated),
	)
	l.emit(ctx, append(promotionNotices(ev, promoted, now), updated...)...)

	out := *ev
	return &out, nil
}

// classifyChange reports what an edit changes for attendees. A schedule
// change wins over a location change so each attendee gets one notice.
func classifyChange(ev *model.Event, req model.UpdateEventRequest) model.ChangeKind {
	switch {
	case !ev.StartsAt.Equal(req.StartsAt) || !ev.EndsAt.Equal(req.EndsAt):
		return model.ChangeSchedule
	case ev.Location != req.Location:
		return model.ChangeLocation
	default:
		return model.ChangeDetails
	}
}

func applyDetails(ev *model.Event, req model.UpdateEventRequest) {
	ev.Title = req.Title
	ev.Description = req.Description
	ev.Category = req.Category
	ev.Location = req.Location
	ev.StartsAt = req.StartsAt
	ev.EndsAt = req.EndsAt
	ev.RegistrationDeadline = req.RegistrationDeadline
	ev.AllowWaitlist = req.AllowWaitlist
}

// EventUpdated tells every registered or waitlisted user about a significant
// change. It returns the number of users notified.
func (l *Ledger) EventUpdated(ctx context.Context, eventID string, change model.ChangeKind) (int, error) {
	now := l.now()
	var notices []model.Notice

	err := l.store.LockEvent(ctx, eventID, func(ctx context.Context, tx Tx) error {
		if !change.Significant() {
			return nil
		}
		ev := tx.Event()
		regs, err := activeRegistrations(ctx, tx)
		if err != nil {
			return err
		}
		for i := range regs {
			n := newNotice(model.NoticeEventUpdated, ev, &regs[i], now)
			n.Change = change
			notices = append(notices, n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.emit(ctx, notices...)
	return len(notices), nil
}

// EventCancelled deactivates the event and notifies every affected user.
// Registration records are left as they are. Cancelling an inactive event
// does nothing.
func (l *Ledger) EventCancelled(ctx context.Context, eventID string) (int, error) {
	now := l.now()
	var notices []model.Notice

	err := l.store.LockEvent(ctx, eventID, func(ctx context.Context, tx Tx) error {
		ev := tx.Event()
		if !ev.IsActive {
			return nil
		}

		ev.IsActive = false
		if err := tx.SaveEvent(ctx, ev); err != nil {
			return fmt.Errorf("deactivate event: %w", err)
		}

		regs, err := activeRegistrations(ctx, tx)
		if err != nil {
			return err
		}
		for i := range regs {
			notices = append(notices, newNotice(model.NoticeEventCancelled, ev, &regs[i], now))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.logger.Info("Event cancelled", "event_id", eventID, "affected_users", len(notices))
	l.emit(ctx, notices...)
	return len(notices), nil
}

// promoteLocked runs inside LockEvent. It updates ev's counter in place but
// leaves persisting ev to the caller.
func (l *Ledger) promoteLocked(ctx context.Context, tx Tx, ev *model.Event, now time.Time) ([]model.Registration, error) {
	mustHoldCapacity(ev)
	if !ev.IsActive {
		return nil, nil
	}
	spots := ev.Capacity - ev.CurrentRegistrations
	if spots == 0 {
		return nil, nil
	}

	waitlist, err := tx.Registrations(ctx, model.StatusWaitlisted)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}

	selected := selectForPromotion(waitlist, spots)
	for i := range selected {
		selected[i].Status = model.StatusRegistered
		selected[i].UpdatedAt = now
		if err := tx.SaveRegistration(ctx, &selected[i]); err != nil {
			return nil, fmt.Errorf("promote registration %s: %w", selected[i].ID, err)
		}
		ev.CurrentRegistrations++
	}
	mustHoldCapacity(ev)

	return selected, nil
}

func activeRegistrations(ctx context.Context, tx Tx) ([]model.Registration, error) {
	registered, err := tx.Registrations(ctx, model.StatusRegistered)
	if err != nil {
		return nil, fmt.Errorf("list registered: %w", err)
	}
	waitlisted, err := tx.Registrations(ctx, model.StatusWaitlisted)
	if err != nil {
		return nil, fmt.Errorf("list waitlisted: %w", err)
	}
	return append(registered, waitlisted...), nil
}

func newNotice(kind model.NoticeKind, ev *model.Event, reg *model.Registration, now time.Time) model.Notice {
	return model.Notice{
		Kind:           kind,
		EventID:        ev.ID,
		EventTitle:     ev.Title,
		UserID:         reg.UserID,
		RegistrationID: reg.ID,
		Status:         reg.Status,
		OccurredAt:     now,
	}
}

func promotionNotices(ev *model.Event, promoted []model.Registration, now time.Time) []model.Notice {
	notices := make([]model.Notice, 0, len(promoted))
	for i := range promoted {
		notices = append(notices, newNotice(model.NoticeWaitlistPromoted, ev, &promoted[i], now))
	}
	return notices
}

// emit hands notices to the emitter without letting a misbehaving notifier
// fail the committed operation.
func (l *Ledger) emit(ctx context.Context, notices ...model.Notice) {
	if len(notices) == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Notice emitter panicked", "panic", r, "notices", len(notices))
		}
	}()
	l.emitter.Emit(context.WithoutCancel(ctx), notices...)
}
