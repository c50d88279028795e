package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cns-iu/dvl-llm/orchestrator"
	"github.com/cns-iu/dvl-llm/sandbox"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	kindBadRequest      = "bad_request"
	kindSessionNotFound = "session_not_found"
	kindNotInitialized  = "not_initialized"
	kindNothingToUndo   = "nothing_to_undo"
	kindBusy            = "busy"
	kindInternal        = "internal"

	defaultLanguage   = "python"
	defaultNamePrefix = "chart"
)

func newSessionID() string { return uuid.New().String() }

var sessionTagPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,36}$`)

// outputPrefix namespaces namePrefix by session so that sessions sharing an
// output directory never write, clear or undo each other's artifacts.
// Session ids that are not filename-safe are replaced by a stable hash.
func outputPrefix(namePrefix, sessionID string) string {
	tag := sessionID
	if !sessionTagPattern.MatchString(tag) {
		tag = uuid.NewSHA1(uuid.NameSpaceURL, []byte(sessionID)).String()[:8]
	}
	return namePrefix + "_" + tag
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ [API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Kind: kind, Message: message}})
}

// writeEngineError maps orchestrator errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrNotInitialized):
		writeError(w, http.StatusConflict, kindNotInitialized, err.Error())
	case errors.Is(err, orchestrator.ErrNothingToUndo):
		writeError(w, http.StatusConflict, kindNothingToUndo, err.Error())
	case errors.Is(err, orchestrator.ErrEmptyPrefix):
		writeError(w, http.StatusBadRequest, kindBadRequest, err.Error())
	default:
		log.Printf("❌ [API] %v", err)
		writeError(w, http.StatusInternalServerError, kindInternal, err.Error())
	}
}

// outcomeStatus is 200 for a successful iteration and 422 for a failed one;
// the body carries the outcome either way.
func outcomeStatus(out sandbox.Outcome) (int, *ErrorDetail) {
	if out.IsSuccess() {
		return http.StatusOK, nil
	}
	return http.StatusUnprocessableEntity, &ErrorDetail{Kind: out.ErrorKind.String(), Message: out.ErrorMessage}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (s *Server) lookup(w http.ResponseWriter, id string) (*session, bool) {
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, kindBadRequest, "sessionId is required")
		return nil, false
	}
	sess, ok := s.sessions.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, kindSessionNotFound, ErrSessionNotFound.Error()+": "+id)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Sessions:  s.sessions.len(),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Library) == "" {
		writeError(w, http.StatusBadRequest, kindBadRequest, "library is required")
		return
	}
	if req.Language == "" {
		req.Language = defaultLanguage
	}
	if req.NamePrefix == "" {
		req.NamePrefix = defaultNamePrefix
	}
	if req.SessionID == "" {
		req.SessionID = s.newID()
	}

	release, ok := s.acquireSlot()
	if !ok {
		writeError(w, http.StatusTooManyRequests, kindBusy, "Server busy - too many concurrent iterations. Please try again later.")
		return
	}
	defer release()

	sess, err := s.newSession(r.Context(), req.SessionID, req)
	if err != nil {
		log.Printf("❌ [API] Could not create generator: %v", err)
		writeError(w, http.StatusInternalServerError, kindInternal, err.Error())
		return
	}
	// A new Run replaces whatever the id held before. Lock before publishing
	// so a refine for this id waits for the run to finish.
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.sessions.put(sess)

	log.Printf("📥 [API] generate session=%s language=%s library=%s", sess.id, req.Language, req.Library)
	out, err := sess.orch.Run(r.Context(), req.Language, req.Library, outputPrefix(req.NamePrefix, sess.id))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeIteration(w, r, sess, out)
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req RefineRequest
	if !decode(w, r, &req) {
		return
	}
	sess, ok := s.lookup(w, req.SessionID)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		writeError(w, http.StatusBadRequest, kindBadRequest, "instruction is required")
		return
	}

	release, ok := s.acquireSlot()
	if !ok {
		writeError(w, http.StatusTooManyRequests, kindBusy, "Server busy - too many concurrent iterations. Please try again later.")
		return
	}
	defer release()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	log.Printf("📥 [API] refine session=%s", sess.id)
	out, err := sess.orch.Refine(r.Context(), req.Instruction)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	status, detail := outcomeStatus(out)
	snap, _ := sess.orch.Current()
	writeJSON(w, status, RefineResponse{
		SessionID:   sess.id,
		UpdatedCode: snap.Code,
		OutputPath:  out.OutputArtifactPath,
		ArtifactURL: s.artifactURL(r.Context(), out),
		Iteration:   sess.orch.Iteration(),
		Outcome:     out,
		Error:       detail,
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req UndoRequest
	if !decode(w, r, &req) {
		return
	}
	sess, ok := s.lookup(w, req.SessionID)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	log.Printf("📥 [API] undo session=%s", sess.id)
	out, err := sess.orch.Undo(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeIteration(w, r, sess, out)
}

func (s *Server) writeIteration(w http.ResponseWriter, r *http.Request, sess *session, out sandbox.Outcome) {
	status, detail := outcomeStatus(out)
	snap, _ := sess.orch.Current()
	writeJSON(w, status, IterationResponse{
		SessionID:   sess.id,
		Code:        snap.Code,
		OutputPath:  out.OutputArtifactPath,
		ArtifactURL: s.artifactURL(r.Context(), out),
		Iteration:   sess.orch.Iteration(),
		Outcome:     out,
		Error:       detail,
	})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if s.deps.Versions != nil {
		versions, err := s.deps.Versions.Versions(r.Context(), id)
		if err != nil {
			log.Printf("❌ [API] Failed to list versions for %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, kindInternal, err.Error())
			return
		}
		if len(versions) == 0 {
			if _, ok := s.sessions.get(id); !ok {
				writeError(w, http.StatusNotFound, kindSessionNotFound, ErrSessionNotFound.Error()+": "+id)
				return
			}
		}
		writeJSON(w, http.StatusOK, VersionsResponse{SessionID: id, Versions: versions})
		return
	}

	sess, ok := s.lookup(w, id)
	if !ok {
		return
	}
	sess.mu.Lock()
	snaps := sess.orch.Versions()
	sess.mu.Unlock()

	resp := VersionsResponse{SessionID: id, Versions: snapshotsToVersions(id, snaps)}
	writeJSON(w, http.StatusOK, resp)
}
