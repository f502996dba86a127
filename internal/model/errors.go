package model

import (
	"errors"
	"fmt"
)

// Pipeline errors. Callers match them with errors.Is; every error returned by
// the encoder, trainer, predictor, evaluator and artifact store wraps one of these.
var (
	// ErrValidation indicates a malformed record: a missing field, a value of
	// the wrong type, or a categorical value outside its domain.
	ErrValidation = errors.New("validation failed")

	// ErrNotTrained indicates no fitted model is available.
	ErrNotTrained = errors.New("model not trained")

	// ErrSchemaMismatch indicates the fitted model was built with a feature
	// order that differs from the current schema.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	// ErrTraining indicates an unusable training corpus.
	ErrTraining = errors.New("training failed")

	// ErrIO indicates the artifact could not be written or read.
	ErrIO = errors.New("artifact i/o failed")

	// ErrNotFound indicates the artifact path or a recorded run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCorruptArtifact indicates the artifact exists but does not decode
	// into a complete fitted model.
	ErrCorruptArtifact = errors.New("corrupt artifact")
)

// ValidationError describes why a single record was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalidf builds a ValidationError for field.
func Invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PipelineError attaches context to one of the sentinel errors above while
// keeping the underlying cause (for example an *os.PathError) reachable.
type PipelineError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds a PipelineError of the given kind without a cause.
func Errorf(kind error, format string, args ...any) error {
	return &PipelineError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a PipelineError of the given kind around cause.
func Wrap(kind error, cause error, format string, args ...any) error {
	return &PipelineError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}
