package model

import (
	"github.com/pkg/errors"
)

// ErrorKind separates failures caused by the request from failures of the service.
type ErrorKind int

// Error kinds.
const (
	KindInternal ErrorKind = iota
	KindInvalidInput
	KindUnavailable
)

// Error is returned by Server.PredictImage. Message is safe to show to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err, treating anything that is not an *Error as internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Client-facing messages.
const (
	MsgNoImage          = "No image uploaded"
	MsgInvalidImage     = "Invalid image"
	MsgNotLoaded        = "Model not loaded"
	MsgPredictionFailed = "Prediction failed"
)
