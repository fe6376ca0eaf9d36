package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/taskspace/internal/app/system/apperr"
	"github.com/dalemusser/taskspace/internal/app/system/respond"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	// DefaultCookieName is the cookie carrying the session token.
	DefaultCookieName = "token"
	// DefaultMaxAge is the session lifetime.
	DefaultMaxAge = 30 * 24 * time.Hour
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is the verified identity injected into r.Context().
type SessionUser struct {
	ID    string
	Email string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects u into the request context. Handler tests use it to
// skip the cookie round trip.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session manager                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager issues session cookies and guards routes that need one.
// Sessions are stateless: the cookie holds a signed token and nothing is
// kept on the server.
type SessionManager struct {
	tokens *TokenIssuer
	name   string
	opts   *sessions.Options
	log    *zap.Logger
}

// NewSessionManager builds a manager whose cookies are named cookieName and
// live for maxAge.
//
// In production (secure=true) cookies are Secure + SameSite=None so the API
// can be called cross-site over HTTPS. In local dev over http://localhost,
// use secure=false so cookies are accepted.
func NewSessionManager(secret, cookieName, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is empty; provide ≥32 random chars")
	}
	if len(secret) < 32 {
		logger.Warn("session secret is short; 32+ chars recommended",
			zap.Int("length", len(secret)))
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	tokens, err := NewTokenIssuer([]byte(secret), maxAge)
	if err != nil {
		return nil, err
	}

	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}

	logger.Info("session manager initialized",
		zap.String("cookie", cookieName),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{tokens: tokens, name: cookieName, opts: opts, log: logger}, nil
}

// CookieName returns the session cookie name.
func (sm *SessionManager) CookieName() string { return sm.name }

// Tokens exposes the underlying issuer.
func (sm *SessionManager) Tokens() *TokenIssuer { return sm.tokens }

// SignIn issues a token for the user and sets it as the session cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, userID, email string) error {
	token, err := sm.tokens.Issue(userID, email)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(sm.name, token, sm.opts))
	return nil
}

// SignOut overwrites the session cookie with an already expired one.
func (sm *SessionManager) SignOut(w http.ResponseWriter) {
	expired := *sm.opts
	expired.MaxAge = -1
	http.SetCookie(w, sessions.NewCookie(sm.name, "", &expired))
}

// RequireSession verifies the session cookie and injects the user.
//   - no cookie:       401 "Unauthorized"
//   - invalid/expired: 403 "Token Expired"
func (sm *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sm.name)
		if err != nil || c.Value == "" {
			respond.Error(w, sm.log, apperr.New(apperr.Unauthorized, "Unauthorized"))
			return
		}

		claims, err := sm.tokens.Verify(c.Value)
		if err != nil {
			respond.Error(w, sm.log, apperr.Wrap(apperr.Forbidden, "Token Expired", err))
			return
		}

		next.ServeHTTP(w, withUser(r, &SessionUser{ID: claims.UserID, Email: claims.Email}))
	})
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}
