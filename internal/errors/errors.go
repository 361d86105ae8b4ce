// Package errors provides the structured error type (BridgeError) used to
// classify compilation outcomes across the dispatcher and both backends.
package errors

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a BridgeError for dispatch accounting.
type ErrorKind string

const (
	// KindAnalysisUnavailable marks the environment-level condition where the
	// graph-analysis subsystem is absent. Callers compare against the
	// ErrGraphAnalysisUnavailable sentinel, not this kind alone.
	KindAnalysisUnavailable ErrorKind = "analysis_unavailable"

	// KindUnsupportedConstruct marks a single graph construct a backend
	// cannot lower. Recoverable at the dispatcher level.
	KindUnsupportedConstruct ErrorKind = "unsupported_construct"

	// KindInternal marks a backend-internal fault. Always a failure at
	// whichever phase invoked the backend.
	KindInternal ErrorKind = "internal"
)

// CategoryUnknown is the error-category label used when a backend flags a
// construct without a more specific classification.
const CategoryUnknown = "Unknown"

// BridgeError is a structured error with kind, offending construct, and cause.
type BridgeError struct {
	Kind      ErrorKind `json:"kind"`
	Construct string    `json:"construct,omitempty"`
	Category  string    `json:"category,omitempty"`
	Message   string    `json:"message"`
	Cause     error     `json:"cause,omitempty"`
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	switch {
	case e.Construct != "" && e.Cause != nil:
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Construct, e.Message, e.Cause)
	case e.Construct != "":
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Construct, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap implements error unwrapping for Go 1.13+ error handling.
func (e *BridgeError) Unwrap() error {
	return e.Cause
}

// ErrGraphAnalysisUnavailable is the fixed sentinel returned when the
// graph-analysis subsystem is unavailable in the current build or runtime
// configuration. The dispatcher propagates it verbatim and performs no metric
// increments of any kind, so environments lacking the subsystem do not
// pollute rollout metrics. Identify it with errors.Is, never by payload.
var ErrGraphAnalysisUnavailable = &BridgeError{
	Kind:    KindAnalysisUnavailable,
	Message: "graph analysis is not available in this environment",
}

// Unsupported creates a BridgeError for a construct a backend cannot lower.
func Unsupported(construct, category, message string) *BridgeError {
	if category == "" {
		category = CategoryUnknown
	}
	return &BridgeError{
		Kind:      KindUnsupportedConstruct,
		Construct: construct,
		Category:  category,
		Message:   message,
	}
}

// Internal creates a BridgeError for a backend-internal fault.
func Internal(message string, cause error) *BridgeError {
	return &BridgeError{
		Kind:    KindInternal,
		Message: message,
		Cause:   cause,
	}
}

// IsUnsupported reports whether err is an unsupported-construct error.
func IsUnsupported(err error) bool {
	return KindOf(err) == KindUnsupportedConstruct
}

// IsAnalysisUnavailable reports whether err is the analysis-unavailable sentinel.
func IsAnalysisUnavailable(err error) bool {
	return errors.Is(err, ErrGraphAnalysisUnavailable)
}

// KindOf extracts the kind from an error, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

// ConstructOf extracts the offending construct identifier, if any.
func ConstructOf(err error) string {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Construct
	}
	return ""
}
