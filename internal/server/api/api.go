// Package api provides HTTP API handlers for the sign trainer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/signs"
)

// Session is the controller surface the handlers drive.
type Session interface {
	State() session.State
	SessionID() string
	LastClassification() (gesture.Classification, bool)
	HasLivePose() bool
	Threshold() float64
	Vocabulary() signs.Vocabulary

	StartTraining() error
	StopTraining() error
	StartDetecting() error
	StopDetecting() error

	SaveSign(ctx context.Context, name string) (bool, error)
	DeleteSign(ctx context.Context, index int) error
	ClearSigns(ctx context.Context) error
	Announce(index int) error
}

var _ Session = (*session.Controller)(nil)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, signs.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
