package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorHandler writes StandardErrors as HTTP responses.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// errorEnvelope is the wire shape of a failed request.
type errorEnvelope struct {
	Error  *StandardError `json:"error"`
	Reason string         `json:"reason,omitempty"`
}

// HTTPStatus maps internal error codes onto HTTP status codes. Expiry and
// missing records are both 401 so the client redirects to login either way;
// the code in the body tells it which message to show.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthenticated, ErrCodeSessionExpired, ErrCodeSessionNotFound, ErrCodeCredentialsInvalid:
		return http.StatusUnauthorized
	case ErrCodeSessionStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTP normalizes err, logs it, and renders the JSON error envelope.
func (h *ErrorHandler) WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)

	if h.logger != nil && status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"code":    string(stdErr.Code),
			"message": stdErr.Message,
			"details": stdErr.Details,
			"path":    r.URL.Path,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error:  stdErr,
		Reason: Reason(stdErr),
	})
}
