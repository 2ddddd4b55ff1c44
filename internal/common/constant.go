package common

// RequestIDHeader carries the caller's request id from the API to the
// processing worker so both sides log the same identifier.
const RequestIDHeader = "X-Request-ID"

// Printable ASCII bounds accepted in watermark payloads.
const (
	MinPrintable = 32
	MaxPrintable = 126
)
