package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "attestor/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{"invalid input", dErrors.New(dErrors.CodeInvalidInput, "wallet is required"), http.StatusBadRequest, "invalid_input", "wallet is required"},
		{"not a verified identity", dErrors.New(dErrors.CodeForbidden, "not a verified identity"), http.StatusForbidden, "forbidden", "not a verified identity"},
		{"no proof", dErrors.New(dErrors.CodeProofNotFound, "no proof of revoke"), http.StatusBadRequest, "proof_not_found", "no proof of revoke"},
		{"provider down", dErrors.New(dErrors.CodeUnavailable, ""), http.StatusServiceUnavailable, "unavailable", "upstream service unavailable, retry later"},
		{"wrapped keeps code", fmt.Errorf("stage: %w", dErrors.New(dErrors.CodeForbidden, "not a verified identity")), http.StatusForbidden, "forbidden", "not a verified identity"},
		{"internal hides message", dErrors.New(dErrors.CodeInternal, "key file /etc/secret unreadable"), http.StatusInternalServerError, "internal_error", "internal error"},
		{"foreign error", errors.New("boom"), http.StatusInternalServerError, "internal_error", "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.wantMsg, resp.Error)
		})
	}
}

func TestWriteErrorIncludesReasons(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, dErrors.NewWithDetails(dErrors.CodePolicyNotMet, "eligibility policy not met",
		[]string{"account age 3 days below minimum 30", "followers 2 below minimum 10"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "policy_not_met", resp.Kind)
	assert.Len(t, resp.Reasons, 2)
}
