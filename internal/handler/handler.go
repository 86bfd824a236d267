// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/campus-events/internal/ledger"
	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/notify"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const defaultNotificationLimit = 20

// Inbox reads a user's in-app notifications and tracks what they have seen.
type Inbox interface {
	List(ctx context.Context, userID string, limit int) ([]notify.InboxItem, error)
	MarkRead(ctx context.Context, userID string, seq int64) error
	Unread(ctx context.Context, userID string) (int64, error)
}

// EventHandler holds all HTTP handlers for the event registration API.
type EventHandler struct {
	svc       *service.EventService
	inbox     Inbox
	logger    logger.Logger
	validator *validator.Validate
}

// NewEventHandler constructs an EventHandler. inbox may be nil, in which case
// the notification routes are not mounted.
func NewEventHandler(svc *service.EventService, inbox Inbox, l logger.Logger) *EventHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &EventHandler{svc: svc, inbox: inbox, logger: l, validator: v}
}

// Routes mounts the API on r.
func (h *EventHandler) Routes(r chi.Router) {
	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Put("/{id}", h.UpdateEvent)
		r.Delete("/{id}", h.CancelEvent)
		r.Post("/{id}/register", h.Register)
		r.Post("/{id}/cancel", h.CancelRegistration)
		r.Post("/{id}/promote", h.Promote)
		r.Get("/{id}/registrations", h.ListRegistrations)
	})

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/registrations", h.ListUserRegistrations)
		if h.inbox != nil {
			r.Get("/notifications", h.ListNotifications)
			r.Get("/notifications/unread", h.UnreadNotifications)
		}
	})
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeAndValidate reads the body into dst and runs its struct tags. It
// writes the 400 response itself and reports whether the caller may go on.
func (h *EventHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			Error:  "validation failed",
			Fields: fieldErrors(verrs),
		})
		return false
	}
	return true
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}

// writeServiceError maps service and ledger errors onto HTTP statuses.
func (h *EventHandler) writeServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInvalidCapacity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, ledger.ErrNotRegistered):
		writeError(w, http.StatusNotFound, "you are not registered for this event")
	case errors.Is(err, ledger.ErrEventInactive):
		writeError(w, http.StatusConflict, "event is no longer active")
	case errors.Is(err, ledger.ErrRegistrationClosed):
		writeError(w, http.StatusConflict, "registration for this event is closed")
	case errors.Is(err, ledger.ErrEventFull):
		writeError(w, http.StatusConflict, "event is fully booked")
	case errors.Is(err, ledger.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "you are already registered for this event")
	case errors.Is(err, ledger.ErrCapacityBelowRegistrations):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Request failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "create event")
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events?search=&category=&active=
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		filter.ActiveOnly = active
	}

	events, err := h.svc.ListEvents(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err, "list events")
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "get event")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PUT /events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	event, err := h.svc.UpdateEvent(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, err, "update event")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// CancelEvent handles DELETE /events/{id}
// The event is deactivated, not removed; attendees are notified.
func (h *EventHandler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	affected, err := h.svc.CancelEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "cancel event")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"affected_users": affected})
}

// Register handles POST /events/{id}/register
// Performs a concurrency-safe registration for the specified event.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	reg, err := h.svc.Register(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, err, "register for event")
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// CancelRegistration handles POST /events/{id}/cancel
func (h *EventHandler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	reg, err := h.svc.CancelRegistration(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, err, "cancel registration")
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// Promote handles POST /events/{id}/promote
func (h *EventHandler) Promote(w http.ResponseWriter, r *http.Request) {
	promoted, err := h.svc.PromoteWaitlist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "promote waitlist")
		return
	}

	if promoted == nil {
		promoted = []model.Registration{}
	}

	writeJSON(w, http.StatusOK, promoted)
}

// ListRegistrations handles GET /events/{id}/registrations
// Returns the event with its confirmed and waitlisted users.
func (h *EventHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	roster, err := h.svc.Roster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "list registrations")
		return
	}

	writeJSON(w, http.StatusOK, roster)
}

// ListUserRegistrations handles GET /users/{userID}/registrations
// Returns the events the user is registered or waitlisted for.
func (h *EventHandler) ListUserRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.UserRegistrations(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, err, "list user registrations")
		return
	}

	writeJSON(w, http.StatusOK, regs)
}

// ListNotifications handles GET /users/{userID}/notifications?limit=
// Viewing the list marks everything in it as read.
func (h *EventHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := service.NormalizeUserID(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, err, "list notifications")
		return
	}

	limit := defaultNotificationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := h.inbox.List(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to read notifications", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	if len(items) > 0 {
		if err := h.inbox.MarkRead(r.Context(), userID, items[0].Seq); err != nil {
			h.logger.Warn("Failed to mark notifications read", "user_id", userID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, items)
}

// UnreadNotifications handles GET /users/{userID}/notifications/unread
func (h *EventHandler) UnreadNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := service.NormalizeUserID(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, err, "count notifications")
		return
	}

	n, err := h.inbox.Unread(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count notifications", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"unread": n})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
