package auth

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/certlogin/internal/account"
)

// Form fields read by PasswordAuthenticator on POST requests.
const (
	FormFieldUsername = "username"
	FormFieldPassword = "password"
)

// dummyHash is compared against when the login is unknown so both
// rejection paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("certlogin"), bcrypt.DefaultCost)
	return hash
})

// PasswordAuthenticator authenticates requests with a login and password
// checked against the account store. Credentials come from HTTP Basic
// authentication or, for POST requests, the username and password form
// fields.
type PasswordAuthenticator struct {
	accounts AccountFinder
	logger   *zap.Logger
}

// NewPasswordAuthenticator creates a password authenticator.
func NewPasswordAuthenticator(accounts AccountFinder, logger *zap.Logger) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		accounts: accounts,
		logger:   logger,
	}
}

// Authenticate verifies the request's credentials. It returns
// ErrUnauthenticated when the request carries none.
func (a *PasswordAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	login, password, ok := credentials(r)
	if !ok {
		recordDecision(labelPasswordUnavailable)
		return nil, ErrUnauthenticated
	}

	acc, err := a.accounts.FindByLogin(r.Context(), login)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) && !errors.Is(err, account.ErrInvalidLogin) {
			recordDecision(labelPasswordRejected)
			a.logger.Error("account lookup failed", zap.String("login", login), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}

		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		recordDecision(labelPasswordRejected)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		recordDecision(labelPasswordRejected)
		return nil, ErrInvalidCredentials
	}

	recordDecision(labelPasswordSucceeded)

	return &AuthInfo{
		Method:    AuthMethodPassword,
		Subject:   acc.Login,
		AccountID: acc.ID,
	}, nil
}

// Method returns the authentication method type.
func (a *PasswordAuthenticator) Method() AuthMethod {
	return AuthMethodPassword
}

// credentials extracts login and password from Basic auth or a POST form.
func credentials(r *http.Request) (login, password string, ok bool) {
	if login, password, ok = r.BasicAuth(); ok {
		return login, password, login != ""
	}

	if r.Method != http.MethodPost {
		return "", "", false
	}

	login = r.PostFormValue(FormFieldUsername)
	password = r.PostFormValue(FormFieldPassword)

	return login, password, login != ""
}
