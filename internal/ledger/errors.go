package ledger

import "errors"

// Rejections returned to callers. None of them are retried by the ledger and
// none leave partial state behind.
var (
	ErrEventNotFound              = errors.New("event not found")
	ErrEventInactive              = errors.New("event is not active")
	ErrAlreadyRegistered          = errors.New("user already registered for this event")
	ErrRegistrationClosed         = errors.New("registration for this event is closed")
	ErrEventFull                  = errors.New("event is full and has no waitlist")
	ErrNotRegistered              = errors.New("user is not registered for this event")
	ErrCapacityBelowRegistrations = errors.New("capacity cannot be lower than current registrations")
	ErrInvalidCapacity            = errors.New("capacity must be a positive integer")
)

// IsRejection reports whether err is one of the caller-facing ledger errors.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrEventNotFound, ErrEventInactive, ErrAlreadyRegistered,
		ErrRegistrationClosed, ErrEventFull, ErrNotRegistered,
		ErrCapacityBelowRegistrations, ErrInvalidCapacity,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
