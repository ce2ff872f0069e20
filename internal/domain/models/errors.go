package models

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTarget    = errors.New("target field not found in series")
	ErrEmptySeries      = errors.New("series is empty")
	ErrInsufficientRows = errors.New("not enough usable rows after lag windowing")
	ErrModelNotFound    = errors.New("model not found")
	ErrChecksumMismatch = errors.New("model checksum mismatch")
	ErrSchemaVersion    = errors.New("unsupported model schema version")
	ErrTruncatedModel   = errors.New("model blob truncated")
	ErrHorizon          = errors.New("forecast horizon out of range")
)

// DataError means the input series cannot produce a model. No model is
// persisted when training fails with it.
type DataError struct {
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error: %s: %v", e.Reason, e.Err)
	}
	return "data error: " + e.Reason
}

func (e *DataError) Unwrap() error { return e.Err }

// NewDataError wraps err with a reason.
func NewDataError(reason string, err error) *DataError {
	return &DataError{Reason: reason, Err: err}
}

// ModelLoadError means a persisted model is missing, truncated or incompatible.
type ModelLoadError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ModelLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load model %q: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("load model %q: %s", e.Name, e.Reason)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// NewModelLoadError wraps err with the model name and a reason.
func NewModelLoadError(name, reason string, err error) *ModelLoadError {
	return &ModelLoadError{Name: name, Reason: reason, Err: err}
}

// IsDataError reports whether err is or wraps a *DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// IsModelLoadError reports whether err is or wraps a *ModelLoadError.
func IsModelLoadError(err error) bool {
	var me *ModelLoadError
	return errors.As(err, &me)
}
