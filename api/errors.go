package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"vote-relay/ledger"
	"vote-relay/service"
)

// Error wraps a handler error with the HTTP status it should produce.
// Serialized as the {"success":false,"error":...} envelope the frontend
// expects.
type Error struct {
	Err        error
	HTTPstatus int
}

func (e Error) Error() string {
	return e.Err.Error()
}

// Withf returns a copy of the error with formatted detail appended.
func (e Error) Withf(format string, args ...any) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...)),
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of the error with err's message appended.
func (e Error) WithErr(err error) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, err.Error()),
		HTTPstatus: e.HTTPstatus,
	}
}

// Write sends the error envelope to the client.
func (e Error) Write(w http.ResponseWriter) {
	body, err := json.Marshal(map[string]any{
		"success": false,
		"error":   e.Err.Error(),
	})
	if err != nil {
		logrus.WithError(err).Warn("failed to marshal error response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(body); err != nil {
		logrus.WithError(err).Warn("failed to write error response")
	}
}

var (
	ErrMalformedBody     = Error{HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMissingCandidate  = Error{HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("missing candidate")}
	ErrInvalidContract   = Error{HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid contract address")}
	ErrTooFewCandidates  = Error{HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("at least 2 candidates are required")}
	ErrInternal          = Error{HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrLedgerUnreachable = Error{HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("ledger unreachable")}
)

// fromService maps pipeline errors onto HTTP statuses. Contract revert
// reasons keep their original text: they are the voter's diagnostic.
func fromService(err error) Error {
	var revert *ledger.RevertError
	switch {
	case errors.As(err, &revert):
		return Error{HTTPstatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, service.ErrUnknownCandidate):
		return Error{HTTPstatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, service.ErrNotAuthorized):
		return Error{HTTPstatus: http.StatusForbidden, Err: err}
	case errors.Is(err, service.ErrLedgerUnreachable):
		return Error{HTTPstatus: http.StatusServiceUnavailable, Err: err}
	case errors.Is(err, service.ErrRelayUnavailable),
		errors.Is(err, service.ErrEntropyUnavailable),
		errors.Is(err, service.ErrCredentialCollision):
		return Error{HTTPstatus: http.StatusInternalServerError, Err: err}
	default:
		return Error{HTTPstatus: http.StatusInternalServerError, Err: err}
	}
}
