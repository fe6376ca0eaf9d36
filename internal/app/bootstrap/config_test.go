package bootstrap

import (
	"strings"
	"testing"
	"time"
)

func validConfig() AppConfig {
	return AppConfig{
		UsersMongoURI:           "mongodb://localhost:27017",
		UsersMongoDatabase:      "taskspace_users",
		WorkspacesMongoURI:      "mongodb://localhost:27017",
		WorkspacesMongoDatabase: "taskspace_workspaces",
		MongoMaxPoolSize:        100,
		MongoMinPoolSize:        10,
		JWTSecret:               strings.Repeat("s", 32),
		SessionMaxAge:           720 * time.Hour,
		BcryptCost:              10,
		InviteCodeBytes:         8,
		InviteCodeAttempts:      5,
		BootRetryDelay:          time.Minute,
		BootRetryAttempts:       5,
		APIPrefix:               "/tw/v1",
	}
}

func TestValidateAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		prod    bool
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, true, ""},
		{"missing db name", func(c *AppConfig) { c.WorkspacesMongoDatabase = "" }, false, "workspaces_mongo_database"},
		{"missing secret in prod", func(c *AppConfig) { c.JWTSecret = "" }, true, "required in prod"},
		{"invite bytes too small", func(c *AppConfig) { c.InviteCodeBytes = 2 }, false, "invite_code_bytes"},
		{"no invite attempts", func(c *AppConfig) { c.InviteCodeAttempts = 0 }, false, "invite_code_attempts"},
		{"bcrypt cost too low", func(c *AppConfig) { c.BcryptCost = 1 }, false, "bcrypt_cost"},
		{"negative login limit", func(c *AppConfig) { c.LoginEmailLimit = -1 }, false, "login_email_limit"},
		{"no boot attempts", func(c *AppConfig) { c.BootRetryAttempts = 0 }, false, "boot_retry_attempts"},
		{"pool sizes inverted", func(c *AppConfig) { c.MongoMinPoolSize = 200 }, false, "mongo_min_pool_size"},
		{"negative reconcile", func(c *AppConfig) { c.ReconcileInterval = -time.Second }, false, "reconcile_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := validateAppConfig(tt.prod, cfg, testLogger())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"/":       "",
		"/tw/v1":  "/tw/v1",
		"tw/v1/":  "/tw/v1",
		" /api/ ": "/api",
		"//api//": "/api",
	}
	for in, want := range tests {
		if got := normalizePrefix(in); got != want {
			t.Errorf("normalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
