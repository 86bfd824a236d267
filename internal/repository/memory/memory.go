// Package memory is an in-process implementation of the event catalog and
// the ledger store, used for local runs and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/ledger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/google/uuid"
)

// Store keeps events and registrations in maps. Ledger transactions take a
// per-event mutex and stage their writes until fn returns nil.
type Store struct {
	mu     sync.RWMutex
	events map[string]*model.Event
	regs   map[string]map[string]*model.Registration // event id -> user id

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		events: make(map[string]*model.Event),
		regs:   make(map[string]map[string]*model.Registration),
		locks:  make(map[string]*sync.Mutex),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new active event with an empty ledger.
func (s *Store) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	now := s.now()
	ev := &model.Event{
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

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
	s.regs[ev.ID] = make(map[string]*model.Registration)

	out := *ev
	return &out, nil
}

// List returns events matching filter ordered by start time.
func (s *Store) List(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var events []model.Event
	for _, ev := range s.events {
		if filter.ActiveOnly && !ev.IsActive {
			continue
		}
		if filter.Category != "" && ev.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(ev.Title), search) &&
			!strings.Contains(strings.ToLower(ev.Description), search) &&
			!strings.Contains(strings.ToLower(ev.Location), search) {
			continue
		}
		events = append(events, *ev)
	}

	slices.SortFunc(events, func(a, b model.Event) int {
		if c := a.StartsAt.Compare(b.StartsAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return events, nil
}

// GetByID returns a single event or ledger.ErrEventNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, ledger.ErrEventNotFound
	}
	out := *ev
	return &out, nil
}

// ListByEvent returns the event's registered and waitlisted records in
// registration order.
func (s *Store) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.events[eventID]; !ok {
		return nil, ledger.ErrEventNotFound
	}
	var regs []model.Registration
	for _, r := range s.regs[eventID] {
		if r.Status.Active() {
			regs = append(regs, *r)
		}
	}
	sortRegistrations(regs)
	return regs, nil
}

// ListByUser returns the user's registered and waitlisted records with their
// events, soonest event first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]model.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Enrollment
	for eventID, regs := range s.regs {
		r, ok := regs[userID]
		if !ok || !r.Status.Active() {
			continue
		}
		ev := *s.events[eventID]
		out = append(out, model.Enrollment{Registration: *r, Event: &ev})
	}

	slices.SortFunc(out, func(a, b model.Enrollment) int {
		if c := a.Event.StartsAt.Compare(b.Event.StartsAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Event.ID, b.Event.ID)
	})
	return out, nil
}

// LockEvent implements ledger.Store.
func (s *Store) LockEvent(ctx context.Context, eventID string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	stored, ok := s.events[eventID]
	var snapshot model.Event
	if ok {
		snapshot = *stored
	}
	s.mu.RUnlock()
	if !ok {
		return ledger.ErrEventNotFound
	}

	tx := &memTx{store: s, event: &snapshot, staged: make(map[string]*model.Registration)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) eventLock(eventID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[eventID] = l
	}
	return l
}

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := tx.event.ID
	if tx.detailsDirty {
		ev := s.events[id]
		ev.Title = tx.event.Title
		ev.Description = tx.event.Description
		ev.Category = tx.event.Category
		ev.Location = tx.event.Location
		ev.StartsAt = tx.event.StartsAt
		ev.EndsAt = tx.event.EndsAt
		ev.RegistrationDeadline = tx.event.RegistrationDeadline
		ev.AllowWaitlist = tx.event.AllowWaitlist
		ev.UpdatedAt = s.now()
	}
	if tx.eventDirty {
		ev := s.events[id]
		ev.Capacity = tx.event.Capacity
		ev.CurrentRegistrations = tx.event.CurrentRegistrations
		ev.IsActive = tx.event.IsActive
		ev.UpdatedAt = s.now()
	}
	for userID, r := range tx.staged {
		s.regs[id][userID] = r
	}
}

type memTx struct {
	store        *Store
	event        *model.Event
	eventDirty   bool
	detailsDirty bool
	staged       map[string]*model.Registration
}

func (t *memTx) Event() *model.Event {
	return t.event
}

func (t *memTx) Registration(ctx context.Context, userID string) (*model.Registration, error) {
	if r, ok := t.staged[userID]; ok {
		out := *r
		return &out, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	r, ok := t.store.regs[t.event.ID][userID]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

func (t *memTx) Registrations(ctx context.Context, status model.RegistrationStatus) ([]model.Registration, error) {
	merged := make(map[string]model.Registration)

	t.store.mu.RLock()
	for userID, r := range t.store.regs[t.event.ID] {
		merged[userID] = *r
	}
	t.store.mu.RUnlock()

	for userID, r := range t.staged {
		merged[userID] = *r
	}

	var regs []model.Registration
	for _, r := range merged {
		if r.Status == status {
			regs = append(regs, r)
		}
	}
	sortRegistrations(regs)
	return regs, nil
}

func (t *memTx) SaveRegistration(ctx context.Context, reg *model.Registration) error {
	r := *reg
	t.staged[reg.UserID] = &r
	return nil
}

func (t *memTx) SaveEvent(ctx context.Context, ev *model.Event) error {
	if ev != t.event {
		*t.event = *ev
	}
	t.eventDirty = true
	return nil
}

func (t *memTx) SaveDetails(ctx context.Context, ev *model.Event) error {
	if ev != t.event {
		*t.event = *ev
	}
	t.detailsDirty = true
	return nil
}

func sortRegistrations(regs []model.Registration) {
	slices.SortFunc(regs, func(a, b model.Registration) int {
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
