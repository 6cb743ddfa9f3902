package service

import (
	"net/http"
	"strconv"

	"slot_watch/internal/infra/storage"
)

const defaultSessionLimit = 20

// History is the read side of the audit journal.
type History interface {
	Sessions(limit int) ([]storage.SessionRecord, error)
	Session(id string) (*storage.SessionRecord, error)
	Observations(sessionID string, slotIndex int) ([]storage.ObservationRecord, error)
	Transitions(sessionID string) ([]storage.TransitionRecord, error)
	Notifications(sessionID string) ([]storage.NotificationRecord, error)
}

// NewHistoryHandler serves past and current sessions from the journal:
//
//	GET /sessions?limit=N                               newest first
//	GET /sessions/{id}
//	GET /sessions/{id}/transitions
//	GET /sessions/{id}/notifications
//	GET /sessions/{id}/slots/{index}/observations
func NewHistoryHandler(h History) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		limit := defaultSessionLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		sessions, err := h.Sessions(limit)
		respond(w, sessions, err)
	})

	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.Session(r.PathValue("id"))
		if err == nil && rec == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such session"})
			return
		}
		respond(w, rec, err)
	})

	mux.HandleFunc("GET /sessions/{id}/transitions", func(w http.ResponseWriter, r *http.Request) {
		trs, err := h.Transitions(r.PathValue("id"))
		respond(w, trs, err)
	})

	mux.HandleFunc("GET /sessions/{id}/notifications", func(w http.ResponseWriter, r *http.Request) {
		notes, err := h.Notifications(r.PathValue("id"))
		respond(w, notes, err)
	})

	mux.HandleFunc("GET /sessions/{id}/slots/{index}/observations", func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be an integer"})
			return
		}
		obs, err := h.Observations(r.PathValue("id"), index)
		respond(w, obs, err)
	})

	return mux
}

func respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v)
}
