// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, env); everything specific
// to taskspace lives here.
type AppConfig struct {
	// Users and workspaces are kept in separate MongoDB deployments (or at
	// least separate databases). Each side gets its own client.
	UsersMongoURI           string
	UsersMongoDatabase      string
	WorkspacesMongoURI      string
	WorkspacesMongoDatabase string
	MongoMaxPoolSize        uint64
	MongoMinPoolSize        uint64

	// Session
	JWTSecret         string        // HS256 signing secret; required in prod
	SessionCookieName string        // default "token"
	SessionDomain     string        // blank means current host
	SessionMaxAge     time.Duration // cookie and token lifetime

	BcryptCost int

	// Login throttling: attempts per minute per client IP and per five
	// minutes per email. 0 disables that side.
	LoginIPLimit    int
	LoginEmailLimit int

	// Workspace invite codes: InviteCodeBytes random bytes rendered as hex,
	// retried up to InviteCodeAttempts times on collision.
	InviteCodeBytes    int
	InviteCodeAttempts int

	// Initial connection is retried as a whole after BootRetryDelay.
	BootRetryDelay    time.Duration
	BootRetryAttempts int

	APIPrefix string // e.g. "/tw/v1"

	// ReconcileInterval enables the membership reconciler when > 0.
	ReconcileInterval time.Duration
}
