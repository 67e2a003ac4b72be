package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/certlogin/internal/auth"
)

// Realm is advertised in WWW-Authenticate challenges.
const Realm = "certlogin"

// Auth returns a middleware that requires an authenticated request.
// CORS preflight requests pass through unauthenticated.
func Auth(authenticator auth.Authenticator, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			info, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("request_id", getRequestID(r)),
					zap.Error(err),
				)
				WriteAuthError(w, err)
				return
			}

			AnnotateLog(r.Context(),
				zap.String("subject", info.Subject),
				zap.String("auth_method", string(info.Method)),
			)

			ctx := auth.WithAuthInfo(r.Context(), info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthStatus maps an authentication error to its HTTP status code.
func AuthStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrUserCreationFailed):
		return http.StatusInternalServerError
	case errors.Is(err, auth.ErrAuthenticationFailed),
		errors.Is(err, auth.ErrEmptyUsername):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrNoClientCertificate),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteAuthError writes the JSON error response for an authentication
// error. Only the user-visible message of err is sent.
func WriteAuthError(w http.ResponseWriter, err error) {
	status := AuthStatus(err)
	if status == http.StatusUnauthorized {
		setWWWAuthenticateHeader(w, err)
	}

	writeJSONError(w, status, auth.UserMessage(err))
}

// setWWWAuthenticateHeader sets the challenge for a 401 response.
func setWWWAuthenticateHeader(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNoClientCertificate):
		w.Header().Set("WWW-Authenticate", "mTLS")
	default:
		w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`", charset="UTF-8"`)
	}
}
