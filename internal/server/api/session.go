package api

import (
	"encoding/json"
	"net/http"
)

// Session actions accepted by POST /api/session.
const (
	ActionStartTraining  = "start_training"
	ActionStopTraining   = "stop_training"
	ActionStartDetecting = "start_detecting"
	ActionStopDetecting  = "stop_detecting"
)

// SessionHandler handles /api/session.
type SessionHandler struct {
	session Session
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s Session) *SessionHandler {
	return &SessionHandler{session: s}
}

type sessionRequest struct {
	Action string `json:"action"`
}

type sessionResponse struct {
	State     string  `json:"state"`
	Session   string  `json:"session,omitempty"`
	LivePose  bool    `json:"live_pose"`
	Last      *string `json:"last,omitempty"`
	Matched   bool    `json:"matched"`
	Threshold float64 `json:"threshold"`
	Signs     int     `json:"signs"`
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.snapshot())
	case http.MethodPost:
		h.act(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) snapshot() sessionResponse {
	resp := sessionResponse{
		State:     string(h.session.State()),
		Session:   h.session.SessionID(),
		LivePose:  h.session.HasLivePose(),
		Threshold: h.session.Threshold(),
		Signs:     len(h.session.Vocabulary()),
	}
	if last, ok := h.session.LastClassification(); ok {
		name := last.Name
		resp.Last = &name
		resp.Matched = last.Matched
	}
	return resp
}

// act handles POST /api/session and applies a transition.
func (h *SessionHandler) act(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var transition func() error
	switch req.Action {
	case ActionStartTraining:
		transition = h.session.StartTraining
	case ActionStopTraining:
		transition = h.session.StopTraining
	case ActionStartDetecting:
		transition = h.session.StartDetecting
	case ActionStopDetecting:
		transition = h.session.StopDetecting
	default:
		writeError(w, http.StatusBadRequest, "Unknown action")
		return
	}

	if err := transition(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.snapshot())
}
