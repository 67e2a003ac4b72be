package account

import (
	"context"
	"errors"
)

// Store errors.
var (
	ErrNotFound      = errors.New("account not found")
	ErrAlreadyExists = errors.New("account already exists")
	ErrInvalidID     = errors.New("invalid account ID")
	ErrInvalidLogin  = errors.New("invalid account login")
	ErrNilAccount    = errors.New("account cannot be nil")
)

// Store defines the account storage operations.
type Store interface {
	// Get retrieves an account by its ID.
	Get(ctx context.Context, id string) (*Account, error)
	// FindByLogin retrieves an account by its unique login.
	FindByLogin(ctx context.Context, login string) (*Account, error)
	// Create inserts the account if no account with the same login exists.
	// It returns ErrAlreadyExists otherwise; the check and the insert are
	// atomic with respect to concurrent Create calls.
	Create(ctx context.Context, account *Account) (*Account, error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the backend of store when it has one.
func Ping(ctx context.Context, store Store) error {
	if p, ok := store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
