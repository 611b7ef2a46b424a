// Package handler exposes the admin view of the revoke index.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"attestor/internal/audit"
	"attestor/internal/indexer"
	"attestor/internal/proof/models"
	"attestor/pkg/domain"
	dErrors "attestor/pkg/domain-errors"
	"attestor/pkg/platform/httputil"
	"attestor/pkg/requestcontext"
)

const auditLimit = 20

type ProofLister interface {
	ListByWallet(ctx context.Context, wallet common.Address) ([]models.Record, error)
}

type Syncer interface {
	TriggerCatchUp(reason string) bool
	State(ctx context.Context) (indexer.State, error)
}

type Option func(*Handler)

// WithAuditReader adds recent claim outcomes to the check response.
func WithAuditReader(r audit.Reader) Option {
	return func(h *Handler) { h.audit = r }
}

type Handler struct {
	proofs ProofLister
	syncer Syncer
	audit  audit.Reader
	logger *slog.Logger
}

func New(proofs ProofLister, syncer Syncer, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{proofs: proofs, syncer: syncer, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes; the caller applies the admin guard.
func (h *Handler) Register(r chi.Router) {
	r.Get("/check/{wallet}", h.handleCheck)
	r.Post("/sync", h.handleSync)
}

type proofResponse struct {
	Token       string    `json:"token"`
	Spender     string    `json:"spender"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	ObservedAt  time.Time `json:"observed_at"`
}

type checkResponse struct {
	Wallet string          `json:"wallet"`
	Proofs []proofResponse `json:"proofs"`
	Sync   indexer.State   `json:"sync"`
	Claims []audit.Event   `json:"claims,omitempty"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	wallet, err := domain.ParseAddress(chi.URLParam(r, "wallet"), "wallet")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.proofs.ListByWallet(ctx, wallet)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list proofs", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "proof store unavailable"))
		return
	}
	state, err := h.syncer.State(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load sync state", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "proof store unavailable"))
		return
	}

	resp := checkResponse{
		Wallet: domain.Lower(wallet),
		Proofs: make([]proofResponse, 0, len(records)),
		Sync:   state,
	}
	for _, rec := range records {
		resp.Proofs = append(resp.Proofs, proofResponse{
			Token:       domain.Lower(rec.Token),
			Spender:     domain.Lower(rec.Spender),
			BlockNumber: rec.BlockNumber,
			TxHash:      rec.TxHash.Hex(),
			ObservedAt:  rec.ObservedAt,
		})
	}
	if h.audit != nil {
		claims, err := h.audit.ListByWallet(ctx, wallet.Hex(), auditLimit)
		if err != nil {
			h.logger.WarnContext(ctx, "failed to list claim history", "request_id", requestID, "error", err)
		}
		resp.Claims = claims
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type syncResponse struct {
	Status          string `json:"status"`
	LastSyncedBlock uint64 `json:"last_synced_block"`
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "started"
	if !h.syncer.TriggerCatchUp(indexer.ReasonAdmin) {
		status = "in_flight"
	}
	h.logger.InfoContext(ctx, "sync requested",
		"request_id", requestcontext.RequestID(ctx),
		"status", status,
	)

	state, err := h.syncer.State(ctx)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "proof store unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, syncResponse{Status: status, LastSyncedBlock: state.LastSyncedBlock})
}
