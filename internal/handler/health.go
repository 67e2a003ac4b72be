package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/certlogin/internal/account"
	"github.com/vyrodovalexey/certlogin/internal/model"
)

// readyTimeout bounds the account store check of a readiness probe.
const readyTimeout = 2 * time.Second

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	responder
	accounts account.Store
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(accounts account.Store, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		responder: responder{logger: logger},
		accounts:  accounts,
	}
}

// RegisterRoutes registers the probe routes with the router.
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
}

// HealthCheck handles GET /health requests.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(HealthResponse{
		Status:  "healthy",
		Version: Version,
	}))
}

// ReadyCheck handles GET /ready requests. The server is ready when the
// account store answers.
func (h *HealthHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := account.Ping(ctx, h.accounts); err != nil {
		h.logger.Warn("account store not ready", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable,
			model.NewErrorResponse[ReadyResponse]("account store unavailable"))
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(ReadyResponse{Status: "ready"}))
}
