package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/certlogin/internal/identity"
)

// Claim keys set by CertificateAuthenticator.
const (
	ClaimCommonName        = "common_name"
	ClaimDistinguishedName = "distinguished_name"
	ClaimProvisioned       = "provisioned"
)

// CertificateAuthenticator authenticates requests by the subject of their
// TLS client certificate, provisioning accounts on first use when allowed.
type CertificateAuthenticator struct {
	engine *Engine
	source identity.Source
	config ConfigSource
}

// NewCertificateAuthenticator creates a certificate authenticator. The
// policy is read from config on every request.
func NewCertificateAuthenticator(
	engine *Engine,
	source identity.Source,
	config ConfigSource,
) *CertificateAuthenticator {
	return &CertificateAuthenticator{
		engine: engine,
		source: source,
		config: config,
	}
}

// Authenticate resolves the request's certificate subject to an account.
// It returns ErrUnauthenticated when no certificate was presented and the
// password fallback is allowed.
func (a *CertificateAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	ctx := r.Context()

	cfg, err := a.config.AuthConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load policy: %w", ErrAuthenticationFailed, err)
	}

	subject := a.source.Subject(r)

	decision, err := a.engine.Decide(ctx, subject, cfg)
	if err != nil {
		return nil, err
	}

	if decision.Outcome == OutcomeDeferred {
		return nil, ErrUnauthenticated
	}
	if decision.Account == nil {
		return nil, errors.Join(ErrAuthenticationFailed, errors.New("decision without account"))
	}

	return &AuthInfo{
		Method:    AuthMethodMTLS,
		Subject:   decision.Login,
		AccountID: decision.Account.ID,
		Claims: map[string]any{
			ClaimCommonName:        subject.CommonName,
			ClaimDistinguishedName: subject.DistinguishedName,
			ClaimProvisioned:       decision.Provisioned,
		},
	}, nil
}

// Method returns the authentication method type.
func (a *CertificateAuthenticator) Method() AuthMethod {
	return AuthMethodMTLS
}
