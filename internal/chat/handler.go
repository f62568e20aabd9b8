package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type StartSessionRequest struct {
	UserID     string `json:"user_id"`
	PatientAge *int   `json:"patient_age,omitempty"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if r.Body != nil {
		// An empty body starts an anonymous session.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := h.svc.CreateSession(r.Context(), req.UserID, req.PatientAge)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": session.ID,
		"messages":   session.Messages,
	})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	reply, err := h.svc.ProcessMessage(r.Context(), chi.URLParam(r, "sessionID"), req.Message)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"messages":     reply.Messages,
		"is_emergency": reply.IsEmergency,
	})
}

func (h *Handler) SessionHistory(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.History(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"messages":      session.Messages,
		"triage_result": session.LastResult,
	})
}

func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	reply, err := h.svc.Reset(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"messages": reply.Messages,
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success":           false,
			"error":             "Session not found",
			"needs_new_session": true,
		})
	case errors.Is(err, ErrSessionBusy):
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   "Another message is being processed for this session",
		})
	case errors.Is(err, ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Empty message",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Processing failed",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/sessions", h.StartSession)
	r.Post("/sessions/{sessionID}/messages", h.SendMessage)
	r.Get("/sessions/{sessionID}/history", h.SessionHistory)
	r.Post("/sessions/{sessionID}/reset", h.ResetSession)
}
