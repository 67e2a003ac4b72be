package account

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedStore is a read-through cache of found accounts in front of
// another Store. Lookups that miss are never cached, so an account
// created elsewhere becomes visible on the next lookup.
type CachedStore struct {
	next  Store
	cache *gocache.Cache
}

// NewCachedStore wraps next with a cache holding accounts for ttl.
func NewCachedStore(next Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Ping checks the wrapped store.
func (s *CachedStore) Ping(ctx context.Context) error {
	return Ping(ctx, s.next)
}

// Get retrieves an account by ID, consulting the cache first.
func (s *CachedStore) Get(ctx context.Context, id string) (*Account, error) {
	if acc, ok := s.lookup("id:" + id); ok {
		return acc, nil
	}

	acc, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.remember(acc)
	return acc, nil
}

// FindByLogin retrieves an account by login, consulting the cache first.
func (s *CachedStore) FindByLogin(ctx context.Context, login string) (*Account, error) {
	if acc, ok := s.lookup("login:" + login); ok {
		return acc, nil
	}

	acc, err := s.next.FindByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	s.remember(acc)
	return acc, nil
}

// Create delegates to the wrapped store and caches the new account.
func (s *CachedStore) Create(ctx context.Context, account *Account) (*Account, error) {
	acc, err := s.next.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	s.remember(acc)
	return acc, nil
}

func (s *CachedStore) lookup(key string) (*Account, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}

	acc := v.(Account)
	return &acc, true
}

func (s *CachedStore) remember(acc *Account) {
	s.cache.SetDefault("id:"+acc.ID, *acc)
	s.cache.SetDefault("login:"+acc.Login, *acc)
}
