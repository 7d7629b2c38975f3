package http

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophaccount/internal/common"
)

const internalMessage = "internal server error"

var errorStatuses = []struct {
	kind   error
	status int
}{
	{common.ErrValidation, http.StatusBadRequest},
	{common.ErrorAlreadyExists, http.StatusBadRequest},
	{common.ErrorNotFound, http.StatusNotFound},
	{common.ErrInvalidCredentials, http.StatusUnauthorized},
	{common.ErrorUnauthorized, http.StatusUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized},
	{common.ErrInvalidSignature, http.StatusUnauthorized},
	{common.ErrTokenExpired, http.StatusUnauthorized},
	{common.ErrMissingToken, http.StatusUnauthorized},
	{common.ErrTokenIssuance, http.StatusInternalServerError},
	{common.ErrUploadFailed, http.StatusInternalServerError},
}

// statusFor maps an error to its HTTP status and client-facing message.
// Unclassified errors become a generic 500.
func statusFor(err error) (int, string) {
	for _, e := range errorStatuses {
		if !errors.Is(err, e.kind) {
			continue
		}
		var ce *common.Error
		if errors.As(err, &ce) && ce.Message != "" {
			return e.status, ce.Message
		}
		return e.status, e.kind.Error()
	}
	return http.StatusInternalServerError, internalMessage
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, failure{StatusCode: status, Message: msg, Success: false})
}
