package sandbox

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// Handler exposes an Executor as the dvl-executor HTTP service.
type Handler struct {
	exec Executor
}

func NewHandler(exec Executor) *Handler {
	return &Handler{exec: exec}
}

// Router builds a mux router with the executor routes mounted.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/execute", h.handleExecute).Methods("POST")
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Failure(KindServiceError, "invalid JSON: "+err.Error(), "", ""))
		return
	}
	if strings.TrimSpace(req.Code) == "" || req.OutputNamePrefix == "" {
		writeJSON(w, http.StatusBadRequest, Failure(KindServiceError, "code and outputNamePrefix are required", "", ""))
		return
	}

	out, err := h.exec.Execute(r.Context(), req)
	if err != nil {
		log.Printf("❌ [SANDBOX] Execute %s: %v", req.OutputNamePrefix, err)
		writeJSON(w, http.StatusInternalServerError, Failure(KindServiceError, err.Error(), "", ""))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ [SANDBOX] Failed to encode response: %v", err)
	}
}
