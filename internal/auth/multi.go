package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// MultiAuthenticator runs authenticators in order and returns the first
// success. ErrUnauthenticated passes the request to the next
// authenticator; any other error ends the chain.
type MultiAuthenticator struct {
	authenticators []Authenticator
	logger         *zap.Logger
}

// NewMultiAuthenticator creates a chain of the given authenticators.
func NewMultiAuthenticator(logger *zap.Logger, authenticators ...Authenticator) *MultiAuthenticator {
	return &MultiAuthenticator{
		authenticators: authenticators,
		logger:         logger,
	}
}

// Authenticate tries each authenticator in order. It returns
// ErrUnauthenticated when none of them found credentials.
func (a *MultiAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	for _, authenticator := range a.authenticators {
		info, err := authenticator.Authenticate(r)
		if err == nil {
			return info, nil
		}

		if !errors.Is(err, ErrUnauthenticated) {
			a.logger.Debug("authentication rejected",
				zap.String("method", string(authenticator.Method())),
				zap.Error(err),
			)
			return nil, err
		}
	}

	return nil, ErrUnauthenticated
}

// Method returns the authentication method type.
func (a *MultiAuthenticator) Method() AuthMethod {
	return AuthMethodMulti
}
