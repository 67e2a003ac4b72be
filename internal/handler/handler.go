// Package handler provides the HTTP handlers of the certificate login server.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/certlogin/internal/account"
	"github.com/vyrodovalexey/certlogin/internal/auth"
	"github.com/vyrodovalexey/certlogin/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// responder writes JSON responses.
type responder struct {
	logger *zap.Logger
}

// writeJSON writes a JSON response with the given status code.
func (h responder) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h responder) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, model.ErrorResponse{
		Code:    status,
		Message: message,
	})
}

// newAccountResponse describes the principal of info. acc may be nil when
// the account record could not be loaded.
func newAccountResponse(info *auth.AuthInfo, acc *account.Account) model.AccountResponse {
	resp := model.AccountResponse{
		ID:         info.AccountID,
		Login:      info.Subject,
		AuthMethod: string(info.Method),
	}

	if acc != nil {
		resp.ID = acc.ID
		resp.Login = acc.Login
		resp.CreatedAt = acc.CreatedAt
	}

	if cn, ok := info.Claims[auth.ClaimCommonName].(string); ok {
		resp.CommonName = cn
	}
	if dn, ok := info.Claims[auth.ClaimDistinguishedName].(string); ok {
		resp.DistinguishedName = dn
	}
	if provisioned, ok := info.Claims[auth.ClaimProvisioned].(bool); ok {
		resp.Provisioned = provisioned
	}

	return resp
}
