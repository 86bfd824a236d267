package ledger

import (
	"context"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// Store grants exclusive, transactional access to one event at a time.
//
// LockEvent returns ErrEventNotFound when the event does not exist. Any
// error returned by fn discards every write made through tx; a nil return
// commits them together.
type Store interface {
	LockEvent(ctx context.Context, eventID string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of a single locked event.
type Tx interface {
	// Event returns the event snapshot taken when the lock was acquired,
	// including writes made through SaveEvent since.
	Event() *model.Event

	// Registration returns the user's record for the locked event in any
	// status, or nil when the user never registered.
	Registration(ctx context.Context, userID string) (*model.Registration, error)

	// Registrations lists records with the given status ordered by
	// RegisteredAt then ID.
	Registrations(ctx context.Context, status model.RegistrationStatus) ([]model.Registration, error)

	// SaveRegistration inserts or updates the record keyed by (user, event).
	SaveRegistration(ctx context.Context, reg *model.Registration) error

	// SaveEvent persists the ledger-owned columns: capacity, current
	// registrations and the active flag.
	SaveEvent(ctx context.Context, ev *model.Event) error

	// SaveDetails persists the descriptive columns an organizer edits:
	// title, description, category, location, schedule, deadline and the
	// waitlist flag.
	SaveDetails(ctx context.Context, ev *model.Event) error
}

// Emitter receives notices after a ledger operation commits. Emit must not
// block on delivery.
type Emitter interface {
	Emit(ctx context.Context, notices ...model.Notice)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, notices ...model.Notice)

func (f EmitterFunc) Emit(ctx context.Context, notices ...model.Notice) {
	f(ctx, notices...)
}

// IDGenerator returns new registration ids.
type IDGenerator func() string
