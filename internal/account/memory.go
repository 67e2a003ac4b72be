package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with in-memory storage.
type MemoryStore struct {
	mu      sync.RWMutex
	byLogin map[string]Account
	byID    map[string]string // id -> login
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byLogin: make(map[string]Account),
		byID:    make(map[string]string),
	}
}

// Get retrieves an account by its ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get account: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	login, exists := s.byID[id]
	if !exists {
		return nil, ErrNotFound
	}

	acc := s.byLogin[login]
	return &acc, nil
}

// FindByLogin retrieves an account by its login.
func (s *MemoryStore) FindByLogin(ctx context.Context, login string) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("find account: %w", ctx.Err())
	default:
	}

	if login == "" {
		return nil, ErrInvalidLogin
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, exists := s.byLogin[login]
	if !exists {
		return nil, ErrNotFound
	}

	return &acc, nil
}

// Create adds a new account and returns it with a generated ID.
func (s *MemoryStore) Create(ctx context.Context, account *Account) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create account: %w", ctx.Err())
	default:
	}

	if account == nil {
		return nil, ErrNilAccount
	}

	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byLogin[account.Login]; exists {
		return nil, ErrAlreadyExists
	}

	newAccount := Account{
		ID:           uuid.New().String(),
		Login:        account.Login,
		PasswordHash: account.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}

	s.byLogin[newAccount.Login] = newAccount
	s.byID[newAccount.ID] = newAccount.Login

	return &newAccount, nil
}
