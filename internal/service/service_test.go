package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/ledger"
	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository/memory"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	notices []model.Notice
}

func (r *recorder) Emit(_ context.Context, notices ...model.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notices...)
}

func (r *recorder) byKind(kind model.NoticeKind) []model.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notice
	for _, n := range r.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*service.EventService, *recorder) {
	t.Helper()
	store := memory.New()
	rec := &recorder{}
	clock := func() time.Time { return now }
	ldg := ledger.New(store, rec, logger.NewNop(), ledger.WithClock(clock))
	return service.NewEventService(store, store, ldg, logger.NewNop(), service.WithClock(clock)), rec
}

func validRequest() model.CreateEventRequest {
	return model.CreateEventRequest{
		Title:                "  Intro to Go  ",
		Description:          "Hands-on session",
		Category:             "Workshop",
		Location:             "Hall B",
		StartsAt:             now.Add(7 * 24 * time.Hour),
		EndsAt:               now.Add(7*24*time.Hour + 2*time.Hour),
		Capacity:             2,
		RegistrationDeadline: now.Add(6 * 24 * time.Hour),
		AllowWaitlist:        true,
		CreatedBy:            "organizer-1",
	}
}

func TestCreateEventValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.CreateEventRequest)
	}{
		{"missing title", func(r *model.CreateEventRequest) { r.Title = "   " }},
		{"long title", func(r *model.CreateEventRequest) { r.Title = string(make([]byte, 201)) }},
		{"missing location", func(r *model.CreateEventRequest) { r.Location = "" }},
		{"unknown category", func(r *model.CreateEventRequest) { r.Category = "party" }},
		{"zero capacity", func(r *model.CreateEventRequest) { r.Capacity = 0 }},
		{"huge capacity", func(r *model.CreateEventRequest) { r.Capacity = 10_001 }},
		{"ends before start", func(r *model.CreateEventRequest) { r.EndsAt = r.StartsAt.Add(-time.Minute) }},
		{"deadline after start", func(r *model.CreateEventRequest) { r.RegistrationDeadline = r.StartsAt.Add(time.Hour) }},
		{"deadline in the past", func(r *model.CreateEventRequest) { r.RegistrationDeadline = now.Add(-time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.CreateEvent(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, service.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestCreateEventNormalizes(t *testing.T) {
	svc, _ := newService(t)

	ev, err := svc.CreateEvent(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "Intro to Go", ev.Title)
	assert.Equal(t, "workshop", ev.Category)
	assert.True(t, ev.IsActive)
	assert.Zero(t, ev.CurrentRegistrations)
}

func TestListEventsRejectsUnknownCategory(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.ListEvents(context.Background(), model.EventFilter{Category: "nope"})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestRegisterAndRoster(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	ev, err := svc.CreateEvent(ctx, validRequest())
	require.NoError(t, err)

	for _, u := range []string{"ana", "ben", "cai"} {
		_, err := svc.Register(ctx, ev.ID, model.RegisterRequest{UserID: u})
		require.NoError(t, err)
	}

	roster, err := svc.Roster(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, roster.Event.CurrentRegistrations)
	require.Len(t, roster.Registered, 2)
	require.Len(t, roster.Waitlisted, 1)
	assert.Equal(t, "cai", roster.Waitlisted[0].UserID)

	_, err = svc.Register(ctx, ev.ID, model.RegisterRequest{UserID: " "})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.Register(ctx, ev.ID, model.RegisterRequest{UserID: "ana"})
	assert.ErrorIs(t, err, ledger.ErrAlreadyRegistered)
}

func TestCancelRegistrationPromotes(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	ev, err := svc.CreateEvent(ctx, validRequest())
	require.NoError(t, err)

	for _, u := range []string{"ana", "ben", "cai"} {
		_, err := svc.Register(ctx, ev.ID, model.RegisterRequest{UserID: u})
		require.NoError(t, err)
	}

	reg, err := svc.CancelRegistration(ctx, ev.ID, model.RegisterRequest{UserID: "ana"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, reg.Status)

	promoted := rec.byKind(model.NoticeWaitlistPromoted)
	require.Len(t, promoted, 1)
	assert.Equal(t, "cai", promoted[0].UserID)

	_, err = svc.CancelRegistration(ctx, ev.ID, model.RegisterRequest{UserID: "zed"})
	assert.ErrorIs(t, err, ledger.ErrNotRegistered)
}

func TestUpdateEventNotifiesOnScheduleChange(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	ev, err := svc.CreateEvent(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.Register(ctx, ev.ID, model.RegisterRequest{UserID: "ana"})
	require.NoError(t, err)

	req := validRequest()
	req.Description = "Bring a laptop"
	_, err = svc.UpdateEvent(ctx, ev.ID, req)
	require.NoError(t, err)
	assert.Empty(t, rec.byKind(model.NoticeEventUpdated))

	req.StartsAt = req.StartsAt.Add(time.Hour)
	req.EndsAt = req.EndsAt.Add(time.Hour)
	updated, err := svc.UpdateEvent(ctx, ev.ID, req)
	require.NoError(t, err)
	assert.True(t, updated.StartsAt.Equal(req.StartsAt))

	notices := rec.byKind(model.NoticeEventUpdated)
	require.Len(t, notices, 1)
	assert.Equal(t, model.ChangeSchedule, notices[0].Change)
}

func TestUpdateEventResizesThroughLedger(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	ev, err := svc.CreateEvent(ctx, validRequest())
	require.NoError(t, err)
	for _, u := range []string{"ana", "ben", "cai"} {
		_, err := svc.Register(ctx, ev.ID, model.RegisterRequest{UserID: u})
		require.NoError(t, err)
	}

	req := validRequest()
	req.Capacity = 1
	_, err = svc.UpdateEvent(ctx, ev.ID, req)
	assert.ErrorIs(t, err, ledger.ErrCapacityBelowRegistrations)

	req.Capacity = 3
	req.Location = "Main Auditorium"
	updated, err := svc.UpdateEvent(ctx, ev.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Capacity)
	assert.Equal(t, 3, updated.CurrentRegistrations)
	assert.Equal(t, "Main Auditorium", updated.Location)

	require.Len(t, rec.byKind(model.NoticeWaitlistPromoted), 1)
	location := rec.byKind(model.NoticeEventUpdated)
	require.Len(t, location, 3)
	assert.Equal(t, model.ChangeLocation, location[0].Change)
}

func TestCancelEvent(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	ev, err := svc.CreateEvent(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.Register(ctx, ev.ID, model.RegisterRequest{UserID: "ana"})
	require.NoError(t, err)

	affected, err := svc.CancelEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, affected)
	assert.Len(t, rec.byKind(model.NoticeEventCancelled), 1)

	got, err := svc.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = svc.Register(ctx, ev.ID, model.RegisterRequest{UserID: "ben"})
	assert.ErrorIs(t, err, ledger.ErrEventInactive)

	_, err = svc.CancelEvent(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrEventNotFound)
}

type failingDetailsStore struct {
	*memory.Store
	err error
}

func (f *failingDetailsStore) LockEvent(ctx context.Context, eventID string, fn func(context.Context, ledger.Tx) error) error {
	return f.Store.LockEvent(ctx, eventID, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, failingDetailsTx{Tx: tx, err: f.err})
	})
}

type failingDetailsTx struct {
	ledger.Tx
	err error
}

func (t failingDetailsTx) SaveDetails(context.Context, *model.Event) error {
	return t.err
}

func TestUpdateEventFailedDetailsWriteLeavesWaitlist(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := &recorder{}
	clock := func() time.Time { return now }
	healthy := service.NewEventService(store, store,
		ledger.New(store, rec, logger.NewNop(), ledger.WithClock(clock)),
		logger.NewNop(), service.WithClock(clock))

	ev, err := healthy.CreateEvent(ctx, validRequest())
	require.NoError(t, err)
	for _, u := range []string{"a", "b", "c"} {
		_, err := healthy.Register(ctx, ev.ID, model.RegisterRequest{UserID: u})
		require.NoError(t, err)
	}

	dbDown := errors.New("db down")
	broken := service.NewEventService(store, store,
		ledger.New(&failingDetailsStore{Store: store, err: dbDown}, rec, logger.NewNop(), ledger.WithClock(clock)),
		logger.NewNop(), service.WithClock(clock))

	req := validRequest()
	req.Capacity = 5
	_, err = broken.UpdateEvent(ctx, ev.ID, req)
	require.ErrorIs(t, err, dbDown)

	got, err := healthy.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Capacity)
	assert.Equal(t, 2, got.CurrentRegistrations)

	roster, err := healthy.Roster(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, roster.Waitlisted, 1)
	assert.Equal(t, "c", roster.Waitlisted[0].UserID)
	assert.Empty(t, rec.byKind(model.NoticeWaitlistPromoted))
}

func TestUpdateEventAfterDeadlineKeepsDeadline(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := now
	tick := func() time.Time { return clock }
	svc := service.NewEventService(store, store,
		ledger.New(store, nil, logger.NewNop(), ledger.WithClock(tick)),
		logger.NewNop(), service.WithClock(tick))

	ev, err := svc.CreateEvent(ctx, validRequest())
	require.NoError(t, err)

	// Registration has closed but the event has not started yet.
	clock = ev.RegistrationDeadline.Add(12 * time.Hour)

	req := validRequest()
	req.Location = "Main Auditorium"
	updated, err := svc.UpdateEvent(ctx, ev.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Main Auditorium", updated.Location)

	req.RegistrationDeadline = ev.RegistrationDeadline.Add(time.Hour)
	_, err = svc.UpdateEvent(ctx, ev.ID, req)
	assert.ErrorIs(t, err, service.ErrInvalidInput, "a moved deadline must still be in the future")

	req.RegistrationDeadline = clock.Add(time.Hour)
	updated, err = svc.UpdateEvent(ctx, ev.ID, req)
	require.NoError(t, err)
	assert.True(t, updated.RegistrationDeadline.Equal(req.RegistrationDeadline))
}

func TestUserRegistrations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	later := validRequest()
	later.StartsAt = later.StartsAt.Add(48 * time.Hour)
	later.EndsAt = later.EndsAt.Add(48 * time.Hour)
	late, err := svc.CreateEvent(ctx, later)
	require.NoError(t, err)
	soon, err := svc.CreateEvent(ctx, validRequest())
	require.NoError(t, err)

	for _, u := range []string{"ben", "cai"} {
		_, err := svc.Register(ctx, late.ID, model.RegisterRequest{UserID: u})
		require.NoError(t, err)
	}
	_, err = svc.Register(ctx, late.ID, model.RegisterRequest{UserID: "ana"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, soon.ID, model.RegisterRequest{UserID: "ana"})
	require.NoError(t, err)

	got, err := svc.UserRegistrations(ctx, "  ana ")
	require.NoError(t, err)
	assert.Equal(t, "ana", got.UserID)
	require.Len(t, got.Registered, 1)
	assert.Equal(t, soon.ID, got.Registered[0].EventID)
	assert.Equal(t, "Intro to Go", got.Registered[0].Event.Title)
	require.Len(t, got.Waitlisted, 1)
	assert.Equal(t, late.ID, got.Waitlisted[0].EventID)

	_, err = svc.CancelRegistration(ctx, soon.ID, model.RegisterRequest{UserID: "ana"})
	require.NoError(t, err)
	got, err = svc.UserRegistrations(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, got.Registered)
	assert.Len(t, got.Waitlisted, 1)

	_, err = svc.UserRegistrations(ctx, "   ")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}
