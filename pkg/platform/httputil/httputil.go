package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "attestor/pkg/domain-errors"
)

// ErrorResponse is the single error envelope returned by every endpoint.
// Kind is machine-readable; Error is a user-safe detail string.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind"`
	Reasons []string `json:"reasons,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// Unexpected errors never leak their message; they collapse to a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		msg := domainErr.Message
		if msg == "" || status == http.StatusInternalServerError {
			msg = defaultMessage(domainErr.Code)
		}
		WriteJSON(w, status, ErrorResponse{
			Error:   msg,
			Kind:    string(domainErr.Code),
			Reasons: domainErr.Details,
		})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: defaultMessage(dErrors.CodeInternal),
		Kind:  string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest, dErrors.CodeValidation,
		dErrors.CodeProofNotFound, dErrors.CodePolicyNotMet:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func defaultMessage(code dErrors.Code) string {
	switch code {
	case dErrors.CodeUnavailable:
		return "upstream service unavailable, retry later"
	case dErrors.CodeTimeout:
		return "upstream service timed out"
	case dErrors.CodeInternal:
		return "internal error"
	default:
		return string(code)
	}
}
