package clinician

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vyshu-2006/Hack4Health/internal/chat"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.ListSessions(r.Context())
	if err != nil {
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"success":  true,
		"sessions": summaries,
	})
}

func (h *Handler) SessionDetail(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.SessionDetail(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeRepoError(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"success": true,
		"session": session,
	})
}

func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request) {
	export, err := h.svc.ExportSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeRepoError(w, err)
		return
	}

	writeJSON(w, export)
}

func (h *Handler) SessionReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	data, err := h.svc.SessionReportPDF(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			writeRepoError(w, err)
			return
		}
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=triage_%s.pdf", sessionID))
	w.Write(data)
}

// SendSessionReport delivers the session PDF to the clinician Telegram chat
// instead of downloading it.
func (h *Handler) SendSessionReport(w http.ResponseWriter, r *http.Request) {
	err := h.svc.SendSessionReport(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			writeRepoError(w, err)
			return
		}
		http.Error(w, "Failed to deliver report", http.StatusBadGateway)
		return
	}

	writeJSON(w, map[string]any{
		"success": true,
		"message": "Report sent to clinician chat",
	})
}

func writeRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrSessionNotFound) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Session not found",
		})
		return
	}
	http.Error(w, "Failed to load session", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(data)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/clinician/sessions", h.ListSessions)
	r.Get("/clinician/sessions/{sessionID}", h.SessionDetail)
	r.Get("/clinician/sessions/{sessionID}/export", h.ExportSession)
	r.Get("/clinician/sessions/{sessionID}/report", h.SessionReport)
	r.Post("/clinician/sessions/{sessionID}/report/send", h.SendSessionReport)
}
