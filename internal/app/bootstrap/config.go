// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/taskspace/internal/app/services/membership"
	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/dalemusser/taskspace/internal/app/system/invitecode"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// appConfigKeys defines the configuration keys for taskspace.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: users_mongo_uri, jwt_secret, etc.
//   - Environment variables: TASKSPACE_USERS_MONGO_URI, TASKSPACE_JWT_SECRET, etc.
//   - Command-line flags: --users_mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "users_mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI for user records"},
	{Name: "users_mongo_database", Default: "taskspace_users", Desc: "MongoDB database name for user records"},
	{Name: "workspaces_mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI for workspaces"},
	{Name: "workspaces_mongo_database", Default: "taskspace_workspaces", Desc: "MongoDB database name for workspaces"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size per client (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size per client (default: 10)"},

	{Name: "jwt_secret", Default: "", Desc: "Session token signing secret (required in prod; 32+ chars)"},
	{Name: "session_cookie_name", Default: auth.DefaultCookieName, Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session lifetime (e.g., 720h)"},

	{Name: "bcrypt_cost", Default: bcrypt.DefaultCost, Desc: "bcrypt cost for password digests"},
	{Name: "login_ip_limit", Default: 10, Desc: "Login attempts per minute per client IP (0 disables)"},
	{Name: "login_email_limit", Default: 5, Desc: "Login attempts per 5 minutes per email (0 disables)"},

	{Name: "invite_code_bytes", Default: invitecode.DefaultBytes, Desc: "Random bytes per invite code (rendered as 2x hex chars)"},
	{Name: "invite_code_attempts", Default: membership.DefaultMaxAttempts, Desc: "Attempts to find an unused invite code"},

	{Name: "boot_retry_delay", Default: "1m", Desc: "Delay between database connection attempts at startup"},
	{Name: "boot_retry_attempts", Default: 5, Desc: "Database connection attempts at startup"},

	{Name: "api_prefix", Default: "/tw/v1", Desc: "Path prefix for the REST API"},
	{Name: "reconcile_interval", Default: "0s", Desc: "Membership reconciliation interval (0 disables)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, TASKSPACE_* for app) and
// flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TASKSPACE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		UsersMongoURI:           appValues.String("users_mongo_uri"),
		UsersMongoDatabase:      appValues.String("users_mongo_database"),
		WorkspacesMongoURI:      appValues.String("workspaces_mongo_uri"),
		WorkspacesMongoDatabase: appValues.String("workspaces_mongo_database"),
		MongoMaxPoolSize:        uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize:        uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:         appValues.String("jwt_secret"),
		SessionCookieName: appValues.String("session_cookie_name"),
		SessionDomain:     appValues.String("session_domain"),
		SessionMaxAge:     appValues.Duration("session_max_age", auth.DefaultMaxAge),

		BcryptCost:      appValues.Int("bcrypt_cost"),
		LoginIPLimit:    appValues.Int("login_ip_limit"),
		LoginEmailLimit: appValues.Int("login_email_limit"),

		InviteCodeBytes:    appValues.Int("invite_code_bytes"),
		InviteCodeAttempts: appValues.Int("invite_code_attempts"),

		BootRetryDelay:    appValues.Duration("boot_retry_delay", time.Minute),
		BootRetryAttempts: appValues.Int("boot_retry_attempts"),

		APIPrefix:         normalizePrefix(appValues.String("api_prefix")),
		ReconcileInterval: appValues.Duration("reconcile_interval", 0),
	}

	// Dev convenience: a per-process random secret. Sessions do not survive
	// a restart, which is fine locally.
	if appCfg.JWTSecret == "" && coreCfg.Env != "prod" {
		appCfg.JWTSecret = fmt.Sprintf("%x", securecookie.GenerateRandomKey(32))
		logger.Warn("jwt_secret not set; using a random per-process secret (dev only)")
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Both MongoDB URIs are checked up front so a typo fails fast, before the
// boot retry loop starts waiting on an unreachable server.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	return validateAppConfig(coreCfg.Env == "prod", appCfg, logger)
}

func validateAppConfig(prod bool, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.UsersMongoURI); err != nil {
		logger.Error("invalid users MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid users MongoDB URI: %w", err)
	}
	if err := wafflemongo.ValidateURI(appCfg.WorkspacesMongoURI); err != nil {
		logger.Error("invalid workspaces MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid workspaces MongoDB URI: %w", err)
	}
	if appCfg.UsersMongoDatabase == "" || appCfg.WorkspacesMongoDatabase == "" {
		return fmt.Errorf("users_mongo_database and workspaces_mongo_database are required")
	}

	if appCfg.JWTSecret == "" {
		if prod {
			return fmt.Errorf("jwt_secret is required in prod")
		}
		return fmt.Errorf("jwt_secret is empty")
	}

	if appCfg.InviteCodeBytes < 4 || appCfg.InviteCodeBytes > 32 {
		return fmt.Errorf("invite_code_bytes must be between 4 and 32, got %d", appCfg.InviteCodeBytes)
	}
	if appCfg.InviteCodeAttempts < 1 {
		return fmt.Errorf("invite_code_attempts must be at least 1, got %d", appCfg.InviteCodeAttempts)
	}
	if appCfg.BcryptCost < bcrypt.MinCost || appCfg.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, appCfg.BcryptCost)
	}
	if appCfg.LoginIPLimit < 0 || appCfg.LoginEmailLimit < 0 {
		return fmt.Errorf("login_ip_limit and login_email_limit must not be negative")
	}
	if appCfg.BootRetryAttempts < 1 {
		return fmt.Errorf("boot_retry_attempts must be at least 1, got %d", appCfg.BootRetryAttempts)
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)", appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}
	if appCfg.ReconcileInterval < 0 {
		return fmt.Errorf("reconcile_interval must not be negative")
	}
	return nil
}

// normalizePrefix returns p with exactly one leading slash and no trailing
// slash. "" and "/" mean no prefix.
func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
