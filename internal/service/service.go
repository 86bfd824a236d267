// Package service implements business logic, validation, and orchestration
// between HTTP handlers, the event catalog and the registration ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/ledger"
	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// ErrInvalidInput marks request validation failures.
var ErrInvalidInput = errors.New("invalid input")

const (
	maxTitleLength = 200
	maxCapacity    = 10_000
	maxUserIDLen   = 64
)

// Catalog creates and reads events. Edits go through the Ledger.
type Catalog interface {
	Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	List(ctx context.Context, filter model.EventFilter) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// Registrations reads active registrations outside ledger transactions.
type Registrations interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]model.Enrollment, error)
}

// Ledger is the subset of *ledger.Ledger the service drives.
type Ledger interface {
	Register(ctx context.Context, userID, eventID string, now time.Time) (*model.Registration, error)
	Cancel(ctx context.Context, userID, eventID string, now time.Time) (*model.Registration, error)
	Promote(ctx context.Context, eventID string) ([]model.Registration, error)
	UpdateEvent(ctx context.Context, eventID string, req model.UpdateEventRequest) (*model.Event, error)
	EventCancelled(ctx context.Context, eventID string) (int, error)
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events        Catalog
	registrations Registrations
	ledger        Ledger
	logger        logger.Logger
	now           func() time.Time
}

type Option func(*EventService)

// WithClock overrides the clock used for deadlines and registration times.
func WithClock(now func() time.Time) Option {
	return func(s *EventService) { s.now = now }
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(
	events Catalog,
	registrations Registrations,
	ldg Ledger,
	l logger.Logger,
	opts ...Option,
) *EventService {
	s := &EventService{
		events:        events,
		registrations: registrations,
		ledger:        ldg,
		logger:        l,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent validates the request and delegates to the catalog.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req = normalizeEvent(req)
	if err := s.validateEvent(req, true); err != nil {
		return nil, err
	}

	event, err := s.events.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("Event created", "event_id", event.ID, "title", event.Title, "capacity", event.Capacity)
	return event, nil
}

// ListEvents returns events matching filter, soonest first.
func (s *EventService) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	if filter.Category != "" && !model.IsCategory(filter.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, filter.Category)
	}
	return s.events.List(ctx, filter)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// UpdateEvent replaces the event's editable fields. Details, capacity and
// any waitlist promotion commit together in the ledger. The deadline must be
// in the future only when the edit moves it.
func (s *EventService) UpdateEvent(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	req = normalizeEvent(req)
	movesDeadline := !req.RegistrationDeadline.Equal(current.RegistrationDeadline)
	if err := s.validateEvent(req, movesDeadline); err != nil {
		return nil, err
	}

	updated, err := s.ledger.UpdateEvent(ctx, id, req)
	if err != nil {
		if ledger.IsRejection(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

// CancelEvent deactivates the event and notifies its attendees.
func (s *EventService) CancelEvent(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}
	return s.ledger.EventCancelled(ctx, id)
}

// Register places the user on the event, confirmed or waitlisted.
func (s *EventService) Register(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Registration, error) {
	userID, err := NormalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}

	reg, err := s.ledger.Register(ctx, userID, eventID, s.now())
	if err != nil {
		// Surface ledger rejections directly so handlers can set the status.
		if ledger.IsRejection(err) {
			return nil, err
		}
		return nil, fmt.Errorf("register for event: %w", err)
	}
	return reg, nil
}

// CancelRegistration withdraws the user and refills any freed seat.
func (s *EventService) CancelRegistration(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Registration, error) {
	userID, err := NormalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}

	reg, err := s.ledger.Cancel(ctx, userID, eventID, s.now())
	if err != nil {
		if ledger.IsRejection(err) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel registration: %w", err)
	}
	return reg, nil
}

// PromoteWaitlist fills free seats from the waitlist.
func (s *EventService) PromoteWaitlist(ctx context.Context, eventID string) ([]model.Registration, error) {
	return s.ledger.Promote(ctx, eventID)
}

// UserRegistrations returns the events the user is registered or waitlisted
// for, soonest first.
func (s *EventService) UserRegistrations(ctx context.Context, userID string) (*model.UserRegistrations, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}

	enrollments, err := s.registrations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user registrations: %w", err)
	}

	out := &model.UserRegistrations{
		UserID:     userID,
		Registered: []model.Enrollment{},
		Waitlisted: []model.Enrollment{},
	}
	for _, e := range enrollments {
		switch e.Status {
		case model.StatusRegistered:
			out.Registered = append(out.Registered, e)
		case model.StatusWaitlisted:
			out.Waitlisted = append(out.Waitlisted, e)
		}
	}
	return out, nil
}

// Roster returns the event with its confirmed and waitlisted users.
func (s *EventService) Roster(ctx context.Context, eventID string) (*model.Roster, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	roster := &model.Roster{
		Event:      event,
		Registered: []model.Registration{},
		Waitlisted: []model.Registration{},
	}
	for _, r := range regs {
		switch r.Status {
		case model.StatusRegistered:
			roster.Registered = append(roster.Registered, r)
		case model.StatusWaitlisted:
			roster.Waitlisted = append(roster.Waitlisted, r)
		}
	}
	return roster, nil
}

func normalizeEvent(req model.CreateEventRequest) model.CreateEventRequest {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	req.CreatedBy = strings.TrimSpace(req.CreatedBy)
	return req
}

func (s *EventService) validateEvent(req model.CreateEventRequest, requireFutureDeadline bool) error {
	switch {
	case req.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case len(req.Title) > maxTitleLength:
		return fmt.Errorf("%w: title cannot exceed %d characters", ErrInvalidInput, maxTitleLength)
	case req.Location == "":
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	case !model.IsCategory(req.Category):
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, req.Category)
	case req.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be a positive integer", ErrInvalidInput)
	case req.Capacity > maxCapacity:
		return fmt.Errorf("%w: capacity cannot exceed %d", ErrInvalidInput, maxCapacity)
	case !req.EndsAt.After(req.StartsAt):
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	case !req.RegistrationDeadline.Before(req.StartsAt):
		return fmt.Errorf("%w: registration deadline must be before event start time", ErrInvalidInput)
	case requireFutureDeadline && !req.RegistrationDeadline.After(s.now()):
		return fmt.Errorf("%w: registration deadline must be in the future", ErrInvalidInput)
	}
	return nil
}

// NormalizeUserID trims id and checks it is present and short enough.
func NormalizeUserID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if len(id) > maxUserIDLen {
		return "", fmt.Errorf("%w: user_id cannot exceed %d characters", ErrInvalidInput, maxUserIDLen)
	}
	return id, nil
}
