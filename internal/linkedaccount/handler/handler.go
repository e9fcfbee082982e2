// Package handler wires the linked-account endpoints to the verification
// coordinator. Handlers stay thin: decode, resolve identity, call the
// service, translate the outcome.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tunelink/internal/linkedaccount/service"
	id "tunelink/pkg/domain"
	dErrors "tunelink/pkg/domain-errors"
	"tunelink/pkg/platform/httputil"
	"tunelink/pkg/requestcontext"
)

// Service defines the coordinator operations the HTTP layer depends on.
type Service interface {
	AddAccount(ctx context.Context, userID id.UserID, req service.AddAccountRequest) (service.AddAccountResult, error)
	GetTokenVerification(ctx context.Context, userID id.UserID, accountID string) (string, error)
	StartVerifyAccount(ctx context.Context, userID id.UserID, accountID string) (service.StartVerifyResult, error)
	GetAccountVerificationState(ctx context.Context, userID id.UserID, accountID string) (*service.StateSummary, error)
	DeleteAccount(ctx context.Context, userID id.UserID, accountID string) error
}

// Handler wires linked-account endpoints to the coordinator service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a linked-account handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the linked-account endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts", h.HandleAddAccount)
	r.Get("/accounts/{accountID}/token", h.HandleGetToken)
	r.Post("/accounts/{accountID}/verify", h.HandleStartVerify)
	r.Get("/accounts/{accountID}/state", h.HandleGetState)
	r.Delete("/accounts/{accountID}", h.HandleDeleteAccount)
}

// HandleAddAccount handles POST /accounts.
func (h *Handler) HandleAddAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[AddAccountRequest](w, r)
	if !ok {
		return
	}

	result, err := h.service.AddAccount(ctx, userID, service.AddAccountRequest{
		Platform:   req.Platform,
		AccountID:  req.AccountID,
		ProfileURL: req.ProfileURL,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "add account failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, addAccountStatus(result), AddAccountResponse{
		OK:        result.OK,
		AccountID: result.AccountID,
		Reason:    result.Reason,
	})
}

// addAccountStatus maps the business outcome to an HTTP status.
func addAccountStatus(result service.AddAccountResult) int {
	switch {
	case result.OK:
		return http.StatusCreated
	case result.Reason == service.ReasonInvalidPlatform:
		return http.StatusBadRequest
	case result.Reason == service.ReasonAlreadyLinked:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// HandleGetToken handles GET /accounts/{accountID}/token.
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	accountID := chi.URLParam(r, "accountID")

	token, err := h.service.GetTokenVerification(ctx, userID, accountID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "token issuance failed",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", userID.String(),
				"account_id", accountID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// HandleStartVerify handles POST /accounts/{accountID}/verify.
func (h *Handler) HandleStartVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	accountID := chi.URLParam(r, "accountID")

	result, err := h.service.StartVerifyAccount(ctx, userID, accountID)
	if err != nil {
		h.logger.ErrorContext(ctx, "start verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"account_id", accountID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if !result.Started {
		httputil.WriteJSON(w, http.StatusConflict, StartVerifyResponse{Message: result.Message})
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, StartVerifyResponse{Started: true})
}

// HandleGetState handles GET /accounts/{accountID}/state.
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	accountID := chi.URLParam(r, "accountID")

	summary, err := h.service.GetAccountVerificationState(ctx, userID, accountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if summary == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no verification state"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleDeleteAccount handles DELETE /accounts/{accountID}.
func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	accountID := chi.URLParam(r, "accountID")

	if err := h.service.DeleteAccount(ctx, userID, accountID); err != nil {
		h.logger.ErrorContext(ctx, "delete account failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"account_id", accountID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
