package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attestor/internal/attestation/service"
	"attestor/pkg/platform/httputil"
)

// Service is the claim pipeline behind POST /attest.
type Service interface {
	Attest(ctx context.Context, req service.Request) (*service.Attestation, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/attest", h.handleAttest)
}

func (h *Handler) handleAttest(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[service.Request](w, r, h.logger)
	if !ok {
		return
	}

	att, err := h.service.Attest(r.Context(), *req)
	if err != nil {
		// The service already logged and audited the rejection.
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, att)
}
