package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/certlogin/internal/account"
	"github.com/vyrodovalexey/certlogin/internal/identity"
)

// Error kinds of a certificate authentication attempt. Every kind except
// ErrNoClientCertificate with the password fallback enabled ends the
// attempt. Their messages are safe to show to users.
var (
	ErrNoClientCertificate  = identity.ErrNoClientCertificate
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUserCreationFailed   = errors.New("user account could not be created")
	ErrEmptyUsername        = errors.New("no users found for your provided credentials")
)

// fatalErrors lists the error kinds that end an attempt for good.
var fatalErrors = []error{
	ErrNoClientCertificate,
	ErrAuthenticationFailed,
	ErrUserCreationFailed,
	ErrEmptyUsername,
}

// IsFatal reports whether err ends the authentication attempt without
// consulting any further authenticator.
func IsFatal(err error) bool {
	for _, kind := range fatalErrors {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// UserMessage returns the user-visible message for err, hiding any
// wrapped internal detail.
func UserMessage(err error) string {
	for _, kind := range fatalErrors {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials.Error()
	case errors.Is(err, ErrUnauthenticated):
		return ErrUnauthenticated.Error()
	}
	return ErrAuthenticationFailed.Error()
}

// Outcome is the non-error result of a decision.
type Outcome string

const (
	// OutcomeAuthenticated means Decision.Account is the principal.
	OutcomeAuthenticated Outcome = "authenticated"
	// OutcomeDeferred means no certificate was presented and the caller
	// may continue with password authentication.
	OutcomeDeferred Outcome = "deferred"
)

// Decision is the result of a certificate authentication attempt.
type Decision struct {
	Outcome Outcome
	// Account and Login are set when Outcome is OutcomeAuthenticated.
	Account *account.Account
	Login   string
	// Provisioned is true when the account was created by this attempt.
	Provisioned bool
}

// AccountFinder looks accounts up by login.
type AccountFinder interface {
	FindByLogin(ctx context.Context, login string) (*account.Account, error)
}

// Provisioner creates an account for a login unless one exists. created
// reports whether the call inserted the account.
type Provisioner interface {
	CreateOrGet(ctx context.Context, login string) (acc *account.Account, created bool, err error)
}

// Engine maps a certificate subject to an account.
type Engine struct {
	accounts    AccountFinder
	provisioner Provisioner
	logger      *zap.Logger
	resolve     func(identity.Subject) (string, error)
}

// NewEngine creates a decision engine.
func NewEngine(accounts AccountFinder, provisioner Provisioner, logger *zap.Logger) *Engine {
	return &Engine{
		accounts:    accounts,
		provisioner: provisioner,
		logger:      logger,
		resolve:     identity.Resolve,
	}
}

// Decide runs one authentication attempt for subject under cfg.
//
// A missing certificate defers to password authentication when
// cfg.AllowPasswordFallback is set and fails otherwise. A known login
// authenticates; an unknown one is provisioned when cfg.AutoCreateUser is
// set and rejected otherwise. Nothing is retried.
func (e *Engine) Decide(ctx context.Context, subject identity.Subject, cfg Config) (Decision, error) {
	login, err := e.resolve(subject)
	if err != nil {
		if errors.Is(err, ErrNoClientCertificate) && cfg.AllowPasswordFallback {
			recordDecision(labelDeferred)
			e.logger.Debug("no client certificate, deferring to password authentication")
			return Decision{Outcome: OutcomeDeferred}, nil
		}

		recordDecision(labelNoCertificate)
		return Decision{}, err
	}

	if login == "" {
		recordDecision(labelEmptyUsername)
		return Decision{}, ErrEmptyUsername
	}

	logger := e.logger.With(zap.String("login", login))

	acc, err := e.accounts.FindByLogin(ctx, login)
	switch {
	case err == nil:
		recordDecision(labelAuthenticated)
		logger.Debug("certificate matched existing account", zap.String("account_id", acc.ID))
		return Decision{Outcome: OutcomeAuthenticated, Account: acc, Login: login}, nil
	case !errors.Is(err, account.ErrNotFound):
		recordDecision(labelAuthFailed)
		logger.Error("account lookup failed", zap.Error(err))
		return Decision{}, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	if !cfg.AutoCreateUser {
		recordDecision(labelAuthFailed)
		logger.Info("no account for certificate and auto-create is disabled")
		return Decision{}, ErrAuthenticationFailed
	}

	acc, created, err := e.provisioner.CreateOrGet(ctx, login)
	if err != nil {
		recordDecision(labelUserCreationFailed)
		logger.Error("account provisioning failed", zap.Error(err))
		return Decision{}, fmt.Errorf("%w: %w", ErrUserCreationFailed, err)
	}

	if !created {
		recordDecision(labelAuthenticated)
		logger.Debug("account created by a concurrent login", zap.String("account_id", acc.ID))
		return Decision{Outcome: OutcomeAuthenticated, Account: acc, Login: login}, nil
	}

	recordDecision(labelProvisioned)
	accountsProvisionedTotal.Inc()
	logger.Info("account provisioned from client certificate",
		zap.String("account_id", acc.ID),
		zap.String("common_name", subject.CommonName),
	)

	return Decision{
		Outcome:     OutcomeAuthenticated,
		Account:     acc,
		Login:       login,
		Provisioned: true,
	}, nil
}
