// Package repository implements all database queries for the campus event
// portal. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/ledger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, title, description, category, location, starts_at, ends_at,
	capacity, current_registrations, registration_deadline, allow_waitlist,
	is_active, created_by, created_at, updated_at`

const registrationColumns = `id, event_id, user_id, status, registered_at, updated_at, cancelled_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Category, &e.Location, &e.StartsAt, &e.EndsAt,
		&e.Capacity, &e.CurrentRegistrations, &e.RegistrationDeadline, &e.AllowWaitlist,
		&e.IsActive, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

func scanRegistrations(rows pgx.Rows) ([]model.Registration, error) {
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var r model.Registration
		if err := rows.Scan(&r.ID, &r.EventID, &r.UserID, &r.Status, &r.RegisteredAt, &r.UpdatedAt, &r.CancelledAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

// EventRepository is the event catalog. It inserts and reads events; every
// later write goes through LedgerStore under the event's row lock.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event and returns it with a generated UUID.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	now := time.Now().UTC()
	event := &model.Event{
		ID:                   uuid.New().String(),
		Title:                req.Title,
		Description:          req.Description,
		Category:             req.Category,
		Location:             req.Location,
		StartsAt:             req.StartsAt,
		EndsAt:               req.EndsAt,
		Capacity:             req.Capacity,
		RegistrationDeadline: req.RegistrationDeadline,
		AllowWaitlist:        req.AllowWaitlist,
		IsActive:             true,
		CreatedBy:            req.CreatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		event.ID, event.Title, event.Description, event.Category, event.Location,
		event.StartsAt, event.EndsAt, event.Capacity, event.CurrentRegistrations,
		event.RegistrationDeadline, event.AllowWaitlist, event.IsActive,
		event.CreatedBy, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// List returns events matching filter ordered by start time.
func (r *EventRepository) List(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY starts_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or ledger.ErrEventNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, ledger.ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// RegistrationRepository reads registrations outside ledger transactions.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// ListByEvent returns the registered and waitlisted records of an event in
// registration order.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check event: %w", err)
	}
	if !exists {
		return nil, ledger.ErrEventNotFound
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND status IN ('registered', 'waitlisted')
		 ORDER BY registered_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return scanRegistrations(rows)
}

// ListByUser returns the user's registered and waitlisted records with their
// events, soonest event first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]model.Enrollment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.event_id, r.user_id, r.status, r.registered_at, r.updated_at, r.cancelled_at,
		        e.id, e.title, e.description, e.category, e.location, e.starts_at, e.ends_at,
		        e.capacity, e.current_registrations, e.registration_deadline, e.allow_waitlist,
		        e.is_active, e.created_by, e.created_at, e.updated_at
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE r.user_id = $1 AND r.status IN ('registered', 'waitlisted')
		 ORDER BY e.starts_at ASC, e.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user registrations: %w", err)
	}
	defer rows.Close()

	var out []model.Enrollment
	for rows.Next() {
		var (
			reg model.Registration
			e   model.Event
		)
		if err := rows.Scan(
			&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.RegisteredAt, &reg.UpdatedAt, &reg.CancelledAt,
			&e.ID, &e.Title, &e.Description, &e.Category, &e.Location, &e.StartsAt, &e.EndsAt,
			&e.Capacity, &e.CurrentRegistrations, &e.RegistrationDeadline, &e.AllowWaitlist,
			&e.IsActive, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user registration: %w", err)
		}
		out = append(out, model.Enrollment{Registration: reg, Event: &e})
	}
	return out, rows.Err()
}
