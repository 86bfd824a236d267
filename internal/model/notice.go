package model

import "time"

// NoticeKind names a domain event emitted by the ledger.
type NoticeKind string

const (
	NoticeRegistrationConfirmed NoticeKind = "registration_confirmed"
	NoticeWaitlistAdded         NoticeKind = "waitlist_added"
	NoticeWaitlistPromoted      NoticeKind = "waitlist_promoted"
	NoticeEventUpdated          NoticeKind = "event_updated"
	NoticeEventCancelled        NoticeKind = "event_cancelled"
)

// ChangeKind describes what changed on an event.
type ChangeKind string

const (
	ChangeSchedule ChangeKind = "schedule"
	ChangeLocation ChangeKind = "location"
	ChangeDetails  ChangeKind = "details"
)

// Significant reports whether attendees must be told about the change.
func (c ChangeKind) Significant() bool {
	return c == ChangeSchedule || c == ChangeLocation
}

// Notice is a domain event addressed to one user about one event.
type Notice struct {
	Kind           NoticeKind         `json:"kind"`
	EventID        string             `json:"event_id"`
	EventTitle     string             `json:"event_title"`
	UserID         string             `json:"user_id"`
	RegistrationID string             `json:"registration_id,omitempty"`
	Status         RegistrationStatus `json:"status,omitempty"`
	Change         ChangeKind         `json:"change,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}
