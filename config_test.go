package secureauth

import (
	"context"
	"testing"
	"time"
)

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing secrets", func(c *Config) { c.JWT.AccessSecret = nil }, true},
		{"identical secrets", func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret }, true},
		{"refresh not longer", func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL }, true},
		{"zero otp ttl", func(c *Config) { c.OTP.TTL = 0 }, true},
		{"otp too short", func(c *Config) { c.OTP.Length = 4 }, true},
		{"otp too long", func(c *Config) { c.OTP.Length = 12 }, true},
		{"zero reset ttl", func(c *Config) { c.PasswordReset.TTL = 0 }, true},
		{"rate limit without budget", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.MaxSigninAttempts = 0
		}, true},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, true},
		{"zero page size", func(c *Config) { c.Pagination.DefaultLimit = 0 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := validateConfig(cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.JWT.AccessTTL != 60*time.Minute {
		t.Fatalf("access TTL = %v, want 60m", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("refresh TTL = %v, want 720h", cfg.JWT.RefreshTTL)
	}
	if cfg.OTP.TTL != 300*time.Second {
		t.Fatalf("otp TTL = %v, want 300s", cfg.OTP.TTL)
	}
	if cfg.OTP.Length != 6 {
		t.Fatalf("otp length = %d, want 6", cfg.OTP.Length)
	}
	if cfg.PasswordReset.TTL != time.Hour {
		t.Fatalf("reset TTL = %v, want 1h", cfg.PasswordReset.TTL)
	}
	if cfg.Pagination.DefaultLimit != 10 {
		t.Fatalf("page size = %d, want 10", cfg.Pagination.DefaultLimit)
	}
}

func TestBuilderRequiresStore(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("Build without store must fail")
	}
}

func TestBuilderRequiresRedisForRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true

	_, err := New().WithConfig(cfg).WithStore(newMockStore()).Build()
	if err == nil {
		t.Fatal("rate limiting without redis must fail")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithStore(newMockStore())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build on the same builder must fail")
	}
}

func TestBuilderConfigIsolation(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg).WithStore(newMockStore())

	// Mutating the caller's secret after WithConfig must not reach the
	// engine.
	cfg.JWT.AccessSecret[0] ^= 0xFF

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	pair := mustSignup(t, engine, "a@x.com", "1", "p1")
	if _, err := engine.VerifyAccess(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("token round-trip after caller mutation: %v", err)
	}
}
