// Package model defines the core domain types for the campus event portal.
package model

import "time"

// Categories lists the event categories organizers may choose from.
var Categories = []string{
	"academic", "cultural", "sports", "technical", "social",
	"workshop", "seminar", "competition", "other",
}

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Event represents a campus event created by an organizer.
//
// Capacity, CurrentRegistrations and IsActive are owned by the ledger; the
// catalog only writes the descriptive fields.
type Event struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Category             string    `json:"category"`
	Location             string    `json:"location"`
	StartsAt             time.Time `json:"starts_at"`
	EndsAt               time.Time `json:"ends_at"`
	Capacity             int       `json:"capacity"`
	CurrentRegistrations int       `json:"current_registrations"`
	RegistrationDeadline time.Time `json:"registration_deadline"`
	AllowWaitlist        bool      `json:"allow_waitlist"`
	IsActive             bool      `json:"is_active"`
	CreatedBy            string    `json:"created_by"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// AvailableSpots returns the number of free confirmed seats, never negative.
func (e *Event) AvailableSpots() int {
	return max(0, e.Capacity-e.CurrentRegistrations)
}

// IsFull returns true when no confirmed seats remain.
func (e *Event) IsFull() bool {
	return e.CurrentRegistrations >= e.Capacity
}

// CanRegister reports whether the event accepts registrations at now.
func (e *Event) CanRegister(now time.Time) bool {
	return e.IsActive && !now.After(e.RegistrationDeadline)
}

// RegistrationStatus is the state of a user's registration.
type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "registered"
	StatusWaitlisted RegistrationStatus = "waitlisted"
	StatusCancelled  RegistrationStatus = "cancelled"
)

// Active reports whether the status occupies a seat or a waitlist position.
func (s RegistrationStatus) Active() bool {
	return s == StatusRegistered || s == StatusWaitlisted
}

// Registration links one user to one event.
type Registration struct {
	ID           string             `json:"id"`
	EventID      string             `json:"event_id"`
	UserID       string             `json:"user_id"`
	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	CancelledAt  *time.Time         `json:"cancelled_at,omitempty"`
}

// Roster groups an event's active registrations by status.
type Roster struct {
	Event      *Event         `json:"event"`
	Registered []Registration `json:"registered"`
	Waitlisted []Registration `json:"waitlisted"`
}

// Enrollment is one of a user's registrations together with its event.
type Enrollment struct {
	Registration
	Event *Event `json:"event"`
}

// UserRegistrations groups a user's active registrations by status.
type UserRegistrations struct {
	UserID     string       `json:"user_id"`
	Registered []Enrollment `json:"registered"`
	Waitlisted []Enrollment `json:"waitlisted"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title                string    `json:"title" validate:"required,max=200"`
	Description          string    `json:"description" validate:"required"`
	Category             string    `json:"category" validate:"required"`
	Location             string    `json:"location" validate:"required,max=200"`
	StartsAt             time.Time `json:"starts_at" validate:"required"`
	EndsAt               time.Time `json:"ends_at" validate:"required"`
	Capacity             int       `json:"capacity" validate:"required,min=1,max=10000"`
	RegistrationDeadline time.Time `json:"registration_deadline" validate:"required"`
	AllowWaitlist        bool      `json:"allow_waitlist"`
	CreatedBy            string    `json:"created_by"`
}

// UpdateEventRequest replaces an event's editable fields.
type UpdateEventRequest = CreateEventRequest

// RegisterRequest is the payload for registering for, or cancelling, an event.
type RegisterRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

// EventFilter narrows an event listing.
type EventFilter struct {
	Search     string
	Category   string
	ActiveOnly bool
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
