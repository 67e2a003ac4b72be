package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// credentialBytes is the entropy of a generated account credential.
const credentialBytes = 32

// Provisioner creates accounts for certificate-derived logins.
type Provisioner struct {
	store Store
	cost  int
}

// ProvisionerOption customizes a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithBcryptCost sets the bcrypt cost used for generated credentials.
func WithBcryptCost(cost int) ProvisionerOption {
	return func(p *Provisioner) {
		p.cost = cost
	}
}

// NewProvisioner creates a Provisioner backed by store.
func NewProvisioner(store Store, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		store: store,
		cost:  bcrypt.DefaultCost,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// CreateOrGet returns the account for login, creating it when none exists.
// created is true only when this call inserted the account.
//
// New accounts receive a random credential that is hashed and then
// discarded: certificate-backed accounts never log in with it. When a
// concurrent request wins the insert, its account is returned.
func (p *Provisioner) CreateOrGet(ctx context.Context, login string) (acc *Account, created bool, err error) {
	if login == "" {
		return nil, false, ErrInvalidLogin
	}

	acc, err = p.store.FindByLogin(ctx, login)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("provision %q: %w", login, err)
	}

	hash, err := p.randomCredentialHash()
	if err != nil {
		return nil, false, fmt.Errorf("provision %q: %w", login, err)
	}

	acc, err = p.store.Create(ctx, &Account{
		Login:        login,
		PasswordHash: hash,
	})
	if err == nil {
		return acc, true, nil
	}
	if !errors.Is(err, ErrAlreadyExists) {
		return nil, false, fmt.Errorf("provision %q: %w", login, err)
	}

	acc, err = p.store.FindByLogin(ctx, login)
	if err != nil {
		return nil, false, fmt.Errorf("provision %q: %w", login, err)
	}

	return acc, false, nil
}

// randomCredentialHash returns the bcrypt hash of a fresh random secret.
func (p *Provisioner) randomCredentialHash() (string, error) {
	secret := make([]byte, credentialBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate credential: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword(
		[]byte(base64.RawURLEncoding.EncodeToString(secret)), p.cost,
	)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}

	return string(hash), nil
}
