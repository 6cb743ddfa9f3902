package service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"slot_watch/internal/domain"
)

// Control is the part of the controller a supervisor may touch.
type Control interface {
	State() domain.RunState
	Stop()
	Force(s domain.RunState) bool
}

// NewHandler serves the supervisor API:
//
//	GET  /state         run state, session and probe count
//	POST /state         set the run state, body {"state": "SEARCHING"}
//	POST /stop          request a graceful stop
//	GET  /slots         every slot, sorted by index
//	GET  /slots/{index} one slot
func NewHandler(board *Board, control Control) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /state", func(w http.ResponseWriter, _ *http.Request) {
		view := board.State()
		view.State = control.State()
		writeJSON(w, http.StatusOK, view)
	})

	mux.HandleFunc("POST /state", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			State domain.RunState `json:"state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.State.IsValid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "state must be one of INITIALIZING, SEARCHING, TRADING, BACKTRACKING, STOPPED"})
			return
		}
		if !control.Force(req.State) {
			writeJSON(w, http.StatusConflict, map[string]domain.RunState{"state": control.State()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]domain.RunState{"state": control.State()})
	})

	mux.HandleFunc("POST /stop", func(w http.ResponseWriter, _ *http.Request) {
		control.Stop()
		slog.Info("Stop requested by supervisor")
		writeJSON(w, http.StatusAccepted, map[string]domain.RunState{"state": control.State()})
	})

	mux.HandleFunc("GET /slots", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, board.GetAllSlots())
	})

	mux.HandleFunc("GET /slots/{index}", func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be an integer"})
			return
		}
		view, ok := board.GetSlot(index)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such slot"})
			return
		}
		writeJSON(w, http.StatusOK, view)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("could not write response (ignored)", slog.Any("error", err))
	}
}
