package auth_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/certlogin/internal/account"
	"github.com/vyrodovalexey/certlogin/internal/auth"
	"github.com/vyrodovalexey/certlogin/internal/identity"
)

// failingConfig is a ConfigSource that always fails.
type failingConfig struct{}

func (failingConfig) AuthConfig(context.Context) (auth.Config, error) {
	return auth.Config{}, errors.New("config backend unavailable")
}

func newTLSRequest(cn string, orgs ...string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.TLS = &tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{
			{Subject: pkix.Name{CommonName: cn, Organization: orgs}},
		},
	}
	return req
}

func newCertificateAuthenticator(
	t *testing.T,
	store account.Store,
	cfg auth.Config,
) *auth.CertificateAuthenticator {
	t.Helper()

	provisioner := account.NewProvisioner(store, account.WithBcryptCost(bcrypt.MinCost))
	engine := auth.NewEngine(store, provisioner, zap.NewNop())

	return auth.NewCertificateAuthenticator(
		engine,
		identity.NewTLSSource(),
		auth.NewStaticConfig(cfg),
	)
}

func TestCertificateAuthenticator_Authenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		cfg             auth.Config
		setupReq        func() *http.Request
		wantSubject     string
		wantProvisioned bool
		wantErrIs       error
	}{
		{
			name: "certificate provisions account",
			cfg:  auth.Config{AutoCreateUser: true, AllowPasswordFallback: true},
			setupReq: func() *http.Request {
				return newTLSRequest("john smith", "Example")
			},
			wantSubject:     johnSmithLogin,
			wantProvisioned: true,
		},
		{
			name: "plain HTTP with fallback is unauthenticated",
			cfg:  auth.Config{AutoCreateUser: true, AllowPasswordFallback: true},
			setupReq: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/login", nil)
			},
			wantErrIs: auth.ErrUnauthenticated,
		},
		{
			name: "plain HTTP without fallback requires a certificate",
			cfg:  auth.Config{AutoCreateUser: true},
			setupReq: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/login", nil)
			},
			wantErrIs: auth.ErrNoClientCertificate,
		},
		{
			name: "unknown certificate without auto-create fails",
			cfg:  auth.Config{AllowPasswordFallback: true},
			setupReq: func() *http.Request {
				return newTLSRequest("john smith", "Example")
			},
			wantErrIs: auth.ErrAuthenticationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			authenticator := newCertificateAuthenticator(t, account.NewMemoryStore(), tt.cfg)

			// Act
			info, err := authenticator.Authenticate(tt.setupReq())

			// Assert
			if tt.wantErrIs != nil {
				if !errors.Is(err, tt.wantErrIs) {
					t.Fatalf("Authenticate() error = %v, want errors.Is %v", err, tt.wantErrIs)
				}
				if info != nil {
					t.Errorf("Authenticate() info = %+v, want nil", info)
				}
				return
			}

			if err != nil {
				t.Fatalf("Authenticate() unexpected error: %v", err)
			}
			if info.Method != auth.AuthMethodMTLS {
				t.Errorf("Method = %q, want %q", info.Method, auth.AuthMethodMTLS)
			}
			if info.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", info.Subject, tt.wantSubject)
			}
			if info.AccountID == "" {
				t.Error("AccountID should be set")
			}
			if got := info.Claims[auth.ClaimProvisioned]; got != tt.wantProvisioned {
				t.Errorf("Claims[provisioned] = %v, want %v", got, tt.wantProvisioned)
			}
			if got := info.Claims[auth.ClaimCommonName]; got != "john smith" {
				t.Errorf("Claims[common_name] = %v, want %q", got, "john smith")
			}
			if got := info.Claims[auth.ClaimDistinguishedName]; got != "CN=john smith,O=Example" {
				t.Errorf("Claims[distinguished_name] = %v, want %q", got, "CN=john smith,O=Example")
			}
		})
	}
}

func TestCertificateAuthenticator_ExistingAccount(t *testing.T) {
	t.Parallel()

	// Arrange
	store := account.NewMemoryStore()
	acc, err := store.Create(context.Background(), &account.Account{
		Login:        johnSmithLogin,
		PasswordHash: "$2a$04$abcdefghijklmnopqrstuuABCDEFGHIJKLMNOPQRSTUVWXYZ012",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	authenticator := newCertificateAuthenticator(t, store, auth.Config{})

	// Act
	info, err := authenticator.Authenticate(newTLSRequest("john smith", "Example"))

	// Assert
	if err != nil {
		t.Fatalf("Authenticate() unexpected error: %v", err)
	}
	if info.AccountID != acc.ID {
		t.Errorf("AccountID = %q, want %q", info.AccountID, acc.ID)
	}
	if got := info.Claims[auth.ClaimProvisioned]; got != false {
		t.Errorf("Claims[provisioned] = %v, want false", got)
	}
}

func TestCertificateAuthenticator_HeaderSource(t *testing.T) {
	t.Parallel()

	// Arrange
	store := account.NewMemoryStore()
	provisioner := account.NewProvisioner(store, account.WithBcryptCost(bcrypt.MinCost))
	authenticator := auth.NewCertificateAuthenticator(
		auth.NewEngine(store, provisioner, zap.NewNop()),
		identity.NewHeaderSource("", ""),
		auth.NewStaticConfig(auth.Config{AutoCreateUser: true}),
	)
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set(identity.DefaultCommonNameHeader, "john smith")
	req.Header.Set(identity.DefaultDistinguishedNameHeader, "CN=john smith,O=Example")

	// Act
	info, err := authenticator.Authenticate(req)

	// Assert
	if err != nil {
		t.Fatalf("Authenticate() unexpected error: %v", err)
	}
	if info.Subject != johnSmithLogin {
		t.Errorf("Subject = %q, want %q", info.Subject, johnSmithLogin)
	}
}

func TestCertificateAuthenticator_ConfigError(t *testing.T) {
	t.Parallel()

	// Arrange
	store := account.NewMemoryStore()
	authenticator := auth.NewCertificateAuthenticator(
		auth.NewEngine(store, account.NewProvisioner(store), zap.NewNop()),
		identity.NewTLSSource(),
		failingConfig{},
	)

	// Act
	_, err := authenticator.Authenticate(newTLSRequest("john smith"))

	// Assert
	if !errors.Is(err, auth.ErrAuthenticationFailed) {
		t.Errorf("Authenticate() error = %v, want %v", err, auth.ErrAuthenticationFailed)
	}
}

func TestCertificateAuthenticator_Method(t *testing.T) {
	t.Parallel()

	authenticator := newCertificateAuthenticator(t, account.NewMemoryStore(), auth.Config{})

	if got := authenticator.Method(); got != auth.AuthMethodMTLS {
		t.Errorf("Method() = %q, want %q", got, auth.AuthMethodMTLS)
	}
}
