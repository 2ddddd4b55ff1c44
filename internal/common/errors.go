// Package common defines sentinel errors and small helpers shared by the
// processing core, the worker transport and the lifecycle service. Callers
// should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors.
	ErrorInternal          = errors.New("internal error")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrPaymentRequired     = errors.New("payment required")
	ErrArtifactMissing     = errors.New("artifact missing")
	ErrUpstreamUnavailable = errors.New("processing worker unavailable")

	// Processing errors returned by the codec and the engines.
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrCapacityExceeded = errors.New("payload exceeds carrier capacity")
	ErrImageRead        = errors.New("image read failure")
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)
