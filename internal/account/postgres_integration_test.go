//go:build integration

package account

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	store, err := OpenPostgresStore(dsn)
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}
	if err := store.db.Exec("TRUNCATE TABLE accounts").Error; err != nil {
		t.Fatalf("truncate accounts: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestPostgresStore_CreateAndFind(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, &Account{Login: "John Smith 87e24e23bb", PasswordHash: testHash})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	byLogin, err := store.FindByLogin(ctx, created.Login)
	if err != nil {
		t.Fatalf("find by login: %v", err)
	}
	if byLogin.ID != created.ID {
		t.Fatalf("expected id %s, got %s", created.ID, byLogin.ID)
	}

	byID, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if byID.Login != created.Login {
		t.Fatalf("expected login %q, got %q", created.Login, byID.Login)
	}

	if _, err := store.FindByLogin(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestPostgresStore_ConcurrentCreate(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, &Account{Login: "alice", PasswordHash: testHash})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrAlreadyExists) {
				t.Errorf("unexpected create error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected exactly 1 insert, got %d", created)
	}
}
