package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/certlogin/internal/account"
	"github.com/vyrodovalexey/certlogin/internal/auth"
	"github.com/vyrodovalexey/certlogin/internal/middleware"
	"github.com/vyrodovalexey/certlogin/internal/model"
	"github.com/vyrodovalexey/certlogin/internal/uritemplate"
)

// Route paths served by LoginHandler.
const (
	LoginPath     = "/login"
	LoginLinkPath = "/login/link"
	LogoutPath    = "/logout"
)

// LoginHandler runs the authentication chain for login requests and
// builds the login and logout redirect URIs.
type LoginHandler struct {
	responder
	authenticator auth.Authenticator
	accounts      account.Store
	config        auth.ConfigSource
	links         *uritemplate.Links
	siteHost      string
}

// NewLoginHandler creates a new LoginHandler instance for the site at
// siteURL.
func NewLoginHandler(
	authenticator auth.Authenticator,
	accounts account.Store,
	config auth.ConfigSource,
	siteURL string,
	logger *zap.Logger,
) *LoginHandler {
	var siteHost string
	if u, err := url.Parse(siteURL); err == nil {
		siteHost = u.Host
	}

	return &LoginHandler{
		responder:     responder{logger: logger},
		authenticator: authenticator,
		accounts:      accounts,
		config:        config,
		links:         uritemplate.NewLinks(siteURL, LoginPath),
		siteHost:      siteHost,
	}
}

// RegisterRoutes registers the login routes with the router.
func (h *LoginHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(LoginPath, h.Login).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc(LoginLinkPath, h.LoginLink).Methods(http.MethodGet)
	router.HandleFunc(LogoutPath, h.Logout).Methods(http.MethodGet)
}

// Login handles GET and POST /login requests. On success it redirects to
// the redirect_to target when one is given and answers with the account
// otherwise.
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, err := h.authenticator.Authenticate(r)
	if err != nil {
		h.logger.Warn("login failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("request_id", middleware.RequestIDFromContext(ctx)),
			zap.Error(err),
		)
		middleware.WriteAuthError(w, err)
		return
	}

	middleware.AnnotateLog(ctx,
		zap.String("subject", info.Subject),
		zap.String("auth_method", string(info.Method)),
	)

	if target := h.safeRedirect(r.FormValue(uritemplate.RedirectParam)); target != "" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	acc, err := h.accounts.Get(ctx, info.AccountID)
	if err != nil {
		h.logger.Warn("failed to load authenticated account",
			zap.String("account_id", info.AccountID),
			zap.Error(err),
		)
		acc = nil
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(newAccountResponse(info, acc)))
}

// LoginLink handles GET /login/link requests with the certificate login
// URI for a login page.
func (h *LoginHandler) LoginLink(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.AuthConfig(r.Context())
	if err != nil {
		h.logger.Error("failed to load auth config", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	returnTo := h.safeRedirect(r.URL.Query().Get(uritemplate.RedirectParam))
	if returnTo == "" {
		returnTo = "/"
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.LoginLinkResponse{
		URI:           h.links.Login(cfg.LoginURITemplate, r.Host, returnTo),
		Label:         cfg.AuthLabel,
		PasswordLogin: cfg.AllowPasswordFallback,
	}))
}

// Logout handles GET /logout requests by redirecting to the logout URI.
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.AuthConfig(r.Context())
	if err != nil {
		h.logger.Error("failed to load auth config", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	target := h.links.Logout(cfg.LogoutURITemplate, r.Host)
	if target == "" {
		target = h.links.SiteURL
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// safeRedirect returns target when it is a local path or an absolute URL
// on the site host, and "" otherwise.
func (h *LoginHandler) safeRedirect(target string) string {
	if target == "" {
		return ""
	}

	u, err := url.Parse(target)
	if err != nil {
		return ""
	}

	if !u.IsAbs() {
		if u.Host != "" || !strings.HasPrefix(target, "/") ||
			strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
			return ""
		}
		return target
	}

	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == h.siteHost {
		return target
	}

	return ""
}
