package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/campus-events/internal/ledger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerStore implements ledger.Store on PostgreSQL.
//
// Each LockEvent call opens a transaction and takes SELECT … FOR UPDATE on
// the event row first. Every other ledger transaction on the same event
// blocks on that row lock until COMMIT or ROLLBACK, so the read of
// current_registrations, the Registered-vs-Waitlisted decision and the
// writes that follow cannot interleave:
//
//	tx A: SELECT … FOR UPDATE  → 9/10, lock held
//	tx B: SELECT … FOR UPDATE  → blocks
//	tx A: INSERT registration, UPDATE counter = 10, COMMIT
//	tx B: → 10/10, decides Waitlisted
type LedgerStore struct {
	db *pgxpool.Pool
}

// NewLedgerStore constructs a LedgerStore.
func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

// LockEvent implements ledger.Store.
func (s *LedgerStore) LockEvent(ctx context.Context, eventID string, fn func(ctx context.Context, tx ledger.Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is always resolved, including when fn panics
	// on a broken invariant.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	ev, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`,
		eventID,
	))
	if err != nil {
		if errors.Is(err, ledger.ErrEventNotFound) {
			return err
		}
		return fmt.Errorf("lock event row: %w", err)
	}

	if err = fn(ctx, &pgTx{tx: tx, event: ev}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx    pgx.Tx
	event *model.Event
}

func (t *pgTx) Event() *model.Event {
	return t.event
}

func (t *pgTx) Registration(ctx context.Context, userID string) (*model.Registration, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND user_id = $2`,
		t.event.ID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query registration: %w", err)
	}
	regs, err := scanRegistrations(rows)
	if err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return nil, nil
	}
	return &regs[0], nil
}

func (t *pgTx) Registrations(ctx context.Context, status model.RegistrationStatus) ([]model.Registration, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND status = $2
		 ORDER BY registered_at ASC, id ASC`,
		t.event.ID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	return scanRegistrations(rows)
}

func (t *pgTx) SaveRegistration(ctx context.Context, reg *model.Registration) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (event_id, user_id) DO UPDATE
		 SET status = EXCLUDED.status,
		     registered_at = EXCLUDED.registered_at,
		     updated_at = EXCLUDED.updated_at,
		     cancelled_at = EXCLUDED.cancelled_at`,
		reg.ID, reg.EventID, reg.UserID, reg.Status, reg.RegisteredAt, reg.UpdatedAt, reg.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("upsert registration: %w", err)
	}
	return nil
}

func (t *pgTx) SaveEvent(ctx context.Context, ev *model.Event) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE events
		 SET capacity = $2, current_registrations = $3, is_active = $4, updated_at = NOW()
		 WHERE id = $1`,
		ev.ID, ev.Capacity, ev.CurrentRegistrations, ev.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update event ledger columns: %w", err)
	}
	return nil
}

func (t *pgTx) SaveDetails(ctx context.Context, ev *model.Event) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, category = $4, location = $5,
		     starts_at = $6, ends_at = $7, registration_deadline = $8,
		     allow_waitlist = $9, updated_at = NOW()
		 WHERE id = $1`,
		ev.ID, ev.Title, ev.Description, ev.Category, ev.Location,
		ev.StartsAt, ev.EndsAt, ev.RegistrationDeadline, ev.AllowWaitlist,
	)
	if err != nil {
		return fmt.Errorf("update event details: %w", err)
	}
	return nil
}
