package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/session"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

// Error codes for failures that are not session errors.
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeDuplicate         = "DUPLICATE"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNoFrame           = "NO_FRAME"
	CodeInternal          = "INTERNAL"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Component("http").WithError(err).Warn("Failed to encode response")
	}
}

func writeOK(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func writeFail(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Success: false, Message: message, Code: code})
}

var sessionStatus = map[session.ErrorCode]int{
	session.CodeAlreadyRunning:    http.StatusConflict,
	session.CodeNotRunning:        http.StatusConflict,
	session.CodeBusy:              http.StatusConflict,
	session.CodeCameraUnavailable: http.StatusServiceUnavailable,
	session.CodeCameraIO:          http.StatusServiceUnavailable,
	session.CodeImageLoad:         http.StatusBadRequest,
	session.CodeGalleryFailed:     http.StatusInternalServerError,
}

// writeError maps err to a status and a message fit for users. Internal
// details only go to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *session.Error
	switch {
	case errors.As(err, &se):
		status, ok := sessionStatus[se.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		if status >= 500 {
			logging.Component("http").WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		}
		writeFail(w, status, string(se.Code), se.Message)
	case errors.Is(err, storage.ErrIdentityNotFound):
		writeFail(w, http.StatusNotFound, CodeNotFound, "Citizen not found")
	case errors.Is(err, storage.ErrSightingNotFound):
		writeFail(w, http.StatusNotFound, CodeNotFound, "Sighting not found")
	case errors.Is(err, storage.ErrIdentityExists):
		writeFail(w, http.StatusConflict, CodeDuplicate, "Citizen with that Aadhar Number already exists")
	case errors.Is(err, storage.ErrInvalidTransition):
		writeFail(w, http.StatusConflict, CodeInvalidTransition, err.Error())
	case errors.Is(err, storage.ErrInvalidIdentity):
		writeFail(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
	default:
		logging.Component("http").WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		writeFail(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}
