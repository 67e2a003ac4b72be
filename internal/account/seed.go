package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SeedEntry is a password-capable account created at startup.
type SeedEntry struct {
	Login        string
	PasswordHash string
}

// ParseSeed parses a seed configuration string in the format
// "login1:hash1,login2:hash2". Each entry must contain a colon separating
// the login from the bcrypt hash. An empty string yields no entries.
func ParseSeed(config string) ([]SeedEntry, error) {
	trimmed := strings.TrimSpace(config)
	if trimmed == "" {
		return nil, nil
	}

	var entries []SeedEntry
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		// Bcrypt hashes contain '$' but no colons, so the first colon
		// separates the login from the hash.
		idx := strings.Index(entry, ":")
		if idx < 0 {
			return nil, fmt.Errorf(
				"seed accounts: invalid entry format, expected login:hash",
			)
		}

		login := entry[:idx]
		hash := entry[idx+1:]

		if login == "" || hash == "" {
			return nil, fmt.Errorf(
				"seed accounts: login and hash must not be empty",
			)
		}

		entries = append(entries, SeedEntry{Login: login, PasswordHash: hash})
	}

	return entries, nil
}

// Seed creates the given accounts, leaving existing logins untouched.
// It returns the number of accounts created.
func Seed(ctx context.Context, store Store, entries []SeedEntry) (int, error) {
	created := 0

	for _, e := range entries {
		_, err := store.Create(ctx, &Account{
			Login:        e.Login,
			PasswordHash: e.PasswordHash,
		})
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed account %q: %w", e.Login, err)
		}
		created++
	}

	return created, nil
}
