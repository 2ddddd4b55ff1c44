package api

import (
	"errors"
	"net/http"

	"github.com/pockethour/image-sentinel/internal/common"
)

// errorBody is the client-facing error. Messages are fixed per class and
// never carry internal detail.
type errorBody struct {
	Error string `json:"error"`
}

var errorClasses = []struct {
	err    error
	status int
	msg    string
}{
	{common.ErrInvalidPayload, http.StatusBadRequest, "invalid payload"},
	{common.ErrUnknownAlgorithm, http.StatusBadRequest, "unknown processing mode"},
	{common.ErrImageRead, http.StatusUnprocessableEntity, "image could not be read"},
	{common.ErrCapacityExceeded, http.StatusUnprocessableEntity, "payload too large for this image"},
	{common.ErrorNotFound, http.StatusNotFound, "file not found"},
	{common.ErrArtifactMissing, http.StatusNotFound, "artifact not available"},
	{common.ErrPaymentRequired, http.StatusPaymentRequired, "payment required"},
	{common.ErrInvalidTransition, http.StatusConflict, "operation not allowed in the current state"},
	{common.ErrVersionConflict, http.StatusConflict, "concurrent update, retry"},
	{common.ErrUpstreamUnavailable, http.StatusServiceUnavailable, "processing temporarily unavailable"},
}

// statusFor maps a service error to its HTTP status and message.
func statusFor(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.status, c.msg
		}
	}
	return http.StatusInternalServerError, "internal error"
}
