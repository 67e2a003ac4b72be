// Package account provides the account model, account stores, and
// provisioning of certificate-backed accounts.
package account

import (
	"errors"
	"time"
)

// Validation constants.
const (
	MaxLoginLength = 255
)

// Account is an application user account keyed by its unique login.
type Account struct {
	ID           string    `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validation errors for Account.
var (
	ErrEmptyPasswordHash = errors.New("password hash cannot be empty")
	ErrLoginTooLong      = errors.New("login cannot exceed 255 characters")
)

// Validate checks that the account can be persisted.
func (a *Account) Validate() error {
	if a.Login == "" {
		return ErrInvalidLogin
	}

	if len(a.Login) > MaxLoginLength {
		return ErrLoginTooLong
	}

	if a.PasswordHash == "" {
		return ErrEmptyPasswordHash
	}

	return nil
}
