package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "attestor/pkg/domain-errors"
	"attestor/pkg/requestcontext"
)

// Normalizable request types are cleaned up before validation.
type Normalizable interface {
	Normalize()
}

type Validatable interface {
	Validate() error
}

// Decode reads exactly one JSON object into T. Unknown fields, trailing data
// and bodies cut off by http.MaxBytesReader are all CodeInvalidInput.
func Decode[T any](r *http.Request) (*T, error) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var v T
	if err := dec.Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "request body too large")
		case errors.Is(err, io.EOF):
			return nil, dErrors.New(dErrors.CodeInvalidInput, "request body is empty")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid request body")
		}
	}
	if dec.More() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "request body must hold a single JSON object")
	}
	return &v, nil
}

// Prepare runs Normalize then Validate when req implements them. Plain
// validation errors become CodeInvalidInput with their message kept.
func Prepare(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	v, ok := req.(Validatable)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil {
		return nil
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error())
}

// DecodeAndPrepare decodes and prepares a request body. On failure it writes
// the error response and returns false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, err := Decode[T](r)
	if err == nil {
		err = Prepare(req)
	}
	if err != nil {
		ctx := r.Context()
		logger.WarnContext(ctx, "rejected request body",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
