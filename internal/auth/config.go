package auth

import "context"

// Config is the authentication policy read for each attempt. Values are
// immutable; a new policy is a new Config.
type Config struct {
	// AllowPasswordFallback lets requests without a certificate continue
	// to password authentication.
	AllowPasswordFallback bool
	// AutoCreateUser provisions an account for an unknown certificate.
	AutoCreateUser bool
	// LoginURITemplate and LogoutURITemplate are uritemplate strings.
	LoginURITemplate  string
	LogoutURITemplate string
	// AuthLabel names certificate login in user-facing links.
	AuthLabel string
}

// ConfigSource supplies the policy for an authentication attempt.
type ConfigSource interface {
	AuthConfig(ctx context.Context) (Config, error)
}

// StaticConfig is a ConfigSource returning one fixed policy.
type StaticConfig struct {
	cfg Config
}

// NewStaticConfig creates a ConfigSource that always returns cfg.
func NewStaticConfig(cfg Config) *StaticConfig {
	return &StaticConfig{cfg: cfg}
}

// AuthConfig returns the fixed policy.
func (s *StaticConfig) AuthConfig(_ context.Context) (Config, error) {
	return s.cfg, nil
}
