// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/certlogin/internal/account"
	"github.com/vyrodovalexey/certlogin/internal/auth"
	"github.com/vyrodovalexey/certlogin/internal/config"
	"github.com/vyrodovalexey/certlogin/internal/handler"
	"github.com/vyrodovalexey/certlogin/internal/middleware"
)

// APIPrefix is the path prefix of the routes that require authentication.
const APIPrefix = "/api/v1"

// Server represents the HTTP server.
type Server struct {
	httpServer    *http.Server
	router        *mux.Router
	config        *config.Config
	logger        *zap.Logger
	accounts      account.Store
	authenticator auth.Authenticator
	initErr       error
}

// New creates a new Server instance. A TLS setup failure is reported by
// Start.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	accounts account.Store,
	authenticator auth.Authenticator,
) *Server {
	router := mux.NewRouter()

	s := &Server{
		router:        router,
		config:        cfg,
		logger:        logger,
		accounts:      accounts,
		authenticator: authenticator,
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware() {
	allowedOrigins := []string{s.config.SiteURL}
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"Authorization",
		middleware.RequestIDHeader,
	}

	// Apply middleware in order (first applied = outermost)
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.CORS(allowedOrigins, allowedMethods, allowedHeaders)))
}

// setupRoutes configures the routes. Probes, login and logout are public;
// everything under APIPrefix requires an authenticated request.
func (s *Server) setupRoutes() {
	handler.NewHealthHandler(s.accounts, s.logger).RegisterRoutes(s.router)

	handler.NewLoginHandler(
		s.authenticator,
		s.accounts,
		s.config,
		s.config.SiteURL,
		s.logger,
	).RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix(APIPrefix).Subrouter()
	api.Use(mux.MiddlewareFunc(middleware.Auth(s.authenticator, s.logger)))
	handler.NewAccountHandler(s.accounts, s.logger).RegisterRoutes(api)
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	if !s.config.TLSEnabled {
		return
	}

	tlsConfig, err := s.buildTLSConfig()
	if err != nil {
		s.initErr = err
		return
	}
	s.httpServer.TLSConfig = tlsConfig
}

// buildTLSConfig loads the server key pair and the client CA pool.
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(s.config.TLSCertPath, s.config.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		ClientAuth:   clientAuthType(s.config.TLSClientAuth),
	}

	if s.config.TLSCAPath != "" {
		pem, err := os.ReadFile(s.config.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("reading TLS CA cert: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parsing TLS CA cert: no certificates in %s", s.config.TLSCAPath)
		}
		tlsConfig.ClientCAs = pool
	}

	return tlsConfig, nil
}

// clientAuthType maps a client auth mode to the TLS policy. Presented
// certificates are always verified against the client CA pool.
func clientAuthType(mode string) tls.ClientAuthType {
	switch mode {
	case config.ClientAuthRequire:
		return tls.RequireAndVerifyClientCert
	case config.ClientAuthRequest:
		return tls.VerifyClientCertIfGiven
	default:
		return tls.NoClientCert
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.initErr != nil {
		return fmt.Errorf("server initialization: %w", s.initErr)
	}

	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("tls_enabled", s.config.TLSEnabled),
		zap.String("tls_client_auth", s.config.TLSClientAuth),
		zap.String("client_cert_source", s.config.ClientCertSource),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
	)

	var err error
	if s.config.TLSEnabled {
		err = s.httpServer.ListenAndServeTLS("", "")
	} else {
		err = s.httpServer.ListenAndServe()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}
