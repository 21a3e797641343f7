// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates caller-supplied input failed validation.
var ErrValidation = errors.New("validation failed")

// ErrInferenceUnavailable indicates the inference collaborator call failed
// or timed out. Recoverable: the turn continues with a generic reply.
var ErrInferenceUnavailable = errors.New("inference unavailable")

// ErrMalformedStructuredReply indicates a structured call whose arguments do
// not match the expected schema. Recovered by applying field fallbacks.
var ErrMalformedStructuredReply = errors.New("malformed structured reply")

// ErrUnknownAction indicates the collaborator selected an action name that
// is absent from the registry. Treated as "no action".
var ErrUnknownAction = errors.New("unknown action")
