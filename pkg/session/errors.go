package session

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a session failure.
type ErrorCode string

const (
	CodeAlreadyRunning    ErrorCode = "SESSION_ALREADY_RUNNING"
	CodeNotRunning        ErrorCode = "SESSION_NOT_RUNNING"
	CodeCameraUnavailable ErrorCode = "CAMERA_UNAVAILABLE"
	CodeCameraIO          ErrorCode = "CAMERA_IO"
	CodeImageLoad         ErrorCode = "IMAGE_LOAD"
	CodeGalleryFailed     ErrorCode = "GALLERY_FAILED"
	CodeBusy              ErrorCode = "SESSION_BUSY"
)

// User-facing messages
var errorMessages = map[ErrorCode]string{
	CodeAlreadyRunning:    "A capture session is already running",
	CodeNotRunning:        "No capture session is running",
	CodeCameraUnavailable: "Cannot access camera. Check that it is connected and not in use",
	CodeCameraIO:          "Camera stopped delivering frames",
	CodeImageLoad:         "Could not load uploaded image. Please upload a JPG or PNG",
	CodeGalleryFailed:     "Could not load the known faces",
	CodeBusy:              "Records are being updated. Try again shortly",
}

// GetErrorMessage returns the user-facing message for code.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Capture session failed"
}

// Error is a session failure with a code and a message safe to show users.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError creates an Error for code wrapping err.
func NewError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Message: GetErrorMessage(code), Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of a session error, or "" for any other error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// ErrAlreadyRan is returned by a OneShot that was already used.
var ErrAlreadyRan = errors.New("one-shot match already ran")
