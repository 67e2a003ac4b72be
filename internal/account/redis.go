package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix used when none is configured.
const DefaultRedisPrefix = "certlogin:"

// redisRecord is the JSON document stored under the login key.
type redisRecord struct {
	ID           string    `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// RedisStore implements Store on top of Redis. The login key is written
// with SET NX, which makes Create an atomic insert-if-absent.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	newID  func() string
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store using the given key prefix.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		newID:  func() string { return uuid.New().String() },
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) loginKey(login string) string {
	return s.prefix + "account:login:" + login
}

func (s *RedisStore) idKey(id string) string {
	return s.prefix + "account:id:" + id
}

// Get retrieves an account by its ID.
func (s *RedisStore) Get(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	login, err := s.client.Get(ctx, s.idKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	acc, err := s.FindByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	// An index left behind by a lost create race points at another
	// account's login.
	if acc.ID != id {
		return nil, ErrNotFound
	}

	return acc, nil
}

// FindByLogin retrieves an account by its login.
func (s *RedisStore) FindByLogin(ctx context.Context, login string) (*Account, error) {
	if login == "" {
		return nil, ErrInvalidLogin
	}

	data, err := s.client.Get(ctx, s.loginKey(login)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode account %q: %w", login, err)
	}

	return &Account{
		ID:           rec.ID,
		Login:        rec.Login,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
	}, nil
}

// Create adds a new account unless its login is already taken.
func (s *RedisStore) Create(ctx context.Context, account *Account) (*Account, error) {
	if account == nil {
		return nil, ErrNilAccount
	}

	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	rec := redisRecord{
		ID:           s.newID(),
		Login:        account.Login,
		PasswordHash: account.PasswordHash,
		CreatedAt:    s.now(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}

	// The id index is written first so a successful login insert is
	// always reachable by ID.
	if err := s.client.Set(ctx, s.idKey(rec.ID), rec.Login, 0).Err(); err != nil {
		return nil, fmt.Errorf("create account index: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.loginKey(rec.Login), data, 0).Result()
	if err != nil {
		s.dropIndex(ctx, rec.ID)
		return nil, fmt.Errorf("create account: %w", err)
	}
	if !created {
		s.dropIndex(ctx, rec.ID)
		return nil, ErrAlreadyExists
	}

	return &Account{
		ID:           rec.ID,
		Login:        rec.Login,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
	}, nil
}

// dropIndex removes the id index of a login insert that did not happen.
// A leftover index is harmless because Get checks the record ID.
func (s *RedisStore) dropIndex(ctx context.Context, id string) {
	_ = s.client.Del(ctx, s.idKey(id)).Err()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
