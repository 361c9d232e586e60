package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"clinicq/queue-engine/internal/models"
	"clinicq/queue-engine/internal/queue"
	"clinicq/queue-engine/internal/store"
)

type Handler struct {
	engine *queue.Engine
}

type checkInRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type fastTrackRequest struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(engine *queue.Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets/checkin", h.handleCheckIn)
	mux.HandleFunc("/api/tickets/", h.handleTicketRoutes)
	mux.HandleFunc("/api/queues/", h.handleQueueRoutes)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req checkInRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "appointment_id is required")
		return
	}

	ticket, err := h.engine.CheckIn(r.Context(), req.AppointmentID, time.Now().UTC())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

// handleQueueRoutes serves /api/queues/{doctor_id} and
// /api/queues/{doctor_id}/actions/call-next.
func (h *Handler) handleQueueRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/queues/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.handleQueueSnapshot(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "call-next":
		h.handleCallNext(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleQueueSnapshot(w http.ResponseWriter, r *http.Request, doctorID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tickets, err := h.engine.ListQueue(r.Context(), doctorID, time.Now().UTC())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if tickets == nil {
		tickets = []models.QueueTicket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request, doctorID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ticket, found, err := h.engine.CallNext(r.Context(), doctorID, time.Now().UTC())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// handleTicketRoutes serves /api/tickets/{ticket_id}/status and
// /api/tickets/{ticket_id}/actions/{action}.
func (h *Handler) handleTicketRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 2 && parts[1] == "status":
		h.handleTicketStatus(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions":
		h.handleTicketAction(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleTicketStatus(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status, err := h.engine.QueueStatus(r.Context(), ticketID)
	if err != nil {
		httpStatus, code, msg := mapError(err)
		writeError(w, httpStatus, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, ticketID, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	var (
		ticket models.QueueTicket
		err    error
	)
	switch action {
	case "fast-track":
		var req fastTrackRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.Reason = strings.TrimSpace(req.Reason)
		if req.Reason == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "reason is required")
			return
		}
		ticket, err = h.engine.FastTrack(r.Context(), ticketID, req.Reason, now)
	case "call":
		ticket, err = h.engine.UpdateStatus(r.Context(), ticketID, models.StatusCalled, now)
	case "complete":
		ticket, err = h.engine.UpdateStatus(r.Context(), ticketID, models.StatusCompleted, now)
	case "no-show", "cancel":
		ticket, err = h.engine.UpdateStatus(r.Context(), ticketID, models.StatusNoShow, now)
	case "return":
		ticket, err = h.engine.UpdateStatus(r.Context(), ticketID, models.StatusCheckedIn, now)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found", "appointment not found"
	case errors.Is(err, store.ErrDuplicateCheckIn):
		return http.StatusConflict, "duplicate_checkin", "appointment already checked in"
	case errors.Is(err, store.ErrEmptyQueue):
		return http.StatusConflict, "queue_empty", "no active tickets in the queue"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", err.Error()
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable", "storage unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
