package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/certlogin/internal/account"
	"github.com/vyrodovalexey/certlogin/internal/auth"
	"github.com/vyrodovalexey/certlogin/internal/middleware"
	"github.com/vyrodovalexey/certlogin/internal/model"
)

// AccountHandler serves the account of the authenticated principal.
type AccountHandler struct {
	responder
	accounts account.Store
}

// NewAccountHandler creates a new AccountHandler instance.
func NewAccountHandler(accounts account.Store, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		responder: responder{logger: logger},
		accounts:  accounts,
	}
}

// RegisterRoutes registers the account routes with the router. The router
// is expected to run the Auth middleware.
func (h *AccountHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.Me).Methods(http.MethodGet)
}

// Me handles GET /api/v1/me requests.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, ok := auth.FromContext(ctx)
	if !ok {
		middleware.WriteAuthError(w, auth.ErrUnauthenticated)
		return
	}

	acc, err := h.accounts.Get(ctx, info.AccountID)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(newAccountResponse(info, acc)))
	case errors.Is(err, account.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, account.ErrInvalidID):
		h.writeError(w, http.StatusBadRequest, "invalid account ID")
	default:
		h.logger.Error("failed to load account",
			zap.String("account_id", info.AccountID),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
