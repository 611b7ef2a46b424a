package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attestor/pkg/domain-errors"
)

type claimBody struct {
	Wallet string `json:"wallet"`
}

// plainValidating returns a non-domain error from Validate()
type plainValidating struct {
	Wallet string `json:"wallet"`
}

func (r *plainValidating) Validate() error {
	if r.Wallet == "" {
		return errors.New("wallet is required")
	}
	return nil
}

// normalizing lower-cases before validation runs
type normalizing struct {
	Wallet     string `json:"wallet"`
	normalized bool
}

func (r *normalizing) Normalize() {
	r.Wallet = strings.ToLower(strings.TrimSpace(r.Wallet))
	r.normalized = true
}

func (r *normalizing) Validate() error {
	if r.Wallet != strings.ToLower(r.Wallet) {
		return errors.New("validate ran before normalize")
	}
	return nil
}

type domainValidating struct {
	Spender string `json:"spender"`
}

func (r *domainValidating) Validate() error {
	if r.Spender == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "spender is required")
	}
	return nil
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func newBodyRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
}

func TestDecode(t *testing.T) {
	t.Run("decodes one object", func(t *testing.T) {
		got, err := Decode[claimBody](newBodyRequest(`{"wallet":"0xabc"}`))
		require.NoError(t, err)
		assert.Equal(t, "0xabc", got.Wallet)
	})

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "malformed", body: `{invalid json}`, msg: "invalid request body"},
		{name: "unknown field", body: `{"wallet":"0xabc","fid":1}`, msg: "invalid request body"},
		{name: "empty", body: ``, msg: "request body is empty"},
		{name: "trailing object", body: `{"wallet":"0xabc"}{"wallet":"0xdef"}`, msg: "request body must hold a single JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode[claimBody](newBodyRequest(tt.body))
			assert.Nil(t, got)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	t.Run("body cut off by MaxBytesReader", func(t *testing.T) {
		req := newBodyRequest(`{"wallet":"` + strings.Repeat("a", 64) + `"}`)
		req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, 16)

		_, err := Decode[claimBody](req)
		require.Error(t, err)
		assert.Equal(t, "request body too large", err.Error())
	})
}

func TestPrepare(t *testing.T) {
	assert.NoError(t, Prepare(&plainValidating{Wallet: "0xabc"}))
	assert.NoError(t, Prepare(&claimBody{}))

	err := Prepare(&plainValidating{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Equal(t, "wallet is required", err.Error())

	n := &normalizing{Wallet: " 0xABC "}
	require.NoError(t, Prepare(n))
	assert.True(t, n.normalized)
	assert.Equal(t, "0xabc", n.Wallet)
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("normalizes before validating", func(t *testing.T) {
		w := httptest.NewRecorder()
		result, ok := DecodeAndPrepare[normalizing](w, newBodyRequest(`{"wallet":" 0xABC "}`), logger)

		require.True(t, ok)
		assert.True(t, result.normalized)
		assert.Equal(t, "0xabc", result.Wallet)
	})

	t.Run("decode failure writes invalid_input", func(t *testing.T) {
		w := httptest.NewRecorder()
		result, ok := DecodeAndPrepare[claimBody](w, newBodyRequest(`{invalid json}`), logger)

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_input", decodeError(t, w).Kind)
	})

	t.Run("plain validation error keeps its message", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[plainValidating](w, newBodyRequest(`{"wallet":""}`), logger)

		assert.False(t, ok)
		resp := decodeError(t, w)
		assert.Equal(t, "invalid_input", resp.Kind)
		assert.Equal(t, "wallet is required", resp.Error)
	})

	t.Run("domain error from Validate is preserved", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[domainValidating](w, newBodyRequest(`{"spender":""}`), logger)

		assert.False(t, ok)
		resp := decodeError(t, w)
		assert.Equal(t, "invalid_input", resp.Kind)
		assert.Equal(t, "spender is required", resp.Error)
	})
}
