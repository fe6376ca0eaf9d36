// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	healthfeature "github.com/dalemusser/taskspace/internal/app/features/health"
	loginfeature "github.com/dalemusser/taskspace/internal/app/features/login"
	logoutfeature "github.com/dalemusser/taskspace/internal/app/features/logout"
	usersfeature "github.com/dalemusser/taskspace/internal/app/features/users"
	workspacesfeature "github.com/dalemusser/taskspace/internal/app/features/workspaces"
	"github.com/dalemusser/taskspace/internal/app/services/accounts"
	"github.com/dalemusser/taskspace/internal/app/services/membership"
	loginstore "github.com/dalemusser/taskspace/internal/app/store/logins"
	userstore "github.com/dalemusser/taskspace/internal/app/store/users"
	workspacestore "github.com/dalemusser/taskspace/internal/app/store/workspaces"
	"github.com/dalemusser/taskspace/internal/app/system/apperr"
	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/dalemusser/taskspace/internal/app/system/invitecode"
	"github.com/dalemusser/taskspace/internal/app/system/ratelimit"
	"github.com/dalemusser/taskspace/internal/app/system/requestlog"
	"github.com/dalemusser/taskspace/internal/app/system/respond"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// appServices bundles the domain services shared by the HTTP features and
// the background workers.
type appServices struct {
	accounts     *accounts.Service
	membership   *membership.Service
	loginLimiter *ratelimit.LoginLimiter
	logins       loginHistory
}

// loginHistory is what the login and users features need from the login
// record store.
type loginHistory interface {
	loginfeature.LoginRecorder
	usersfeature.LoginHistory
}

func newServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) appServices {
	users := userstore.New(deps.UsersMongoDatabase)
	workspaces := workspacestore.New(deps.WorkspacesMongoDatabase)
	hasher := auth.NewPasswordHasher(appCfg.BcryptCost)
	codes := invitecode.New(appCfg.InviteCodeBytes)

	return appServices{
		accounts:     accounts.New(users, hasher, logger.Named("accounts")),
		membership:   membership.New(workspaces, users, codes, appCfg.InviteCodeAttempts, logger.Named("membership")),
		loginLimiter: ratelimit.NewLoginLimiter(appCfg.LoginIPLimit, appCfg.LoginEmailLimit),
		logins:       loginstore.New(deps.UsersMongoDatabase),
	}
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. The session cookie is marked Secure with
// SameSite=None when running in prod.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.JWTSecret, appCfg.SessionCookieName, appCfg.SessionDomain,
		appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	svc := newServices(appCfg, deps, logger)
	return newRouter(appCfg.APIPrefix, svc, sessionMgr, deps.UsersMongoClient, deps.WorkspacesMongoClient, logger), nil
}

// newRouter mounts every feature. It takes its collaborators directly so
// tests can drive the full HTTP surface against in-memory stores.
func newRouter(prefix string, svc appServices, sessionMgr *auth.SessionManager, usersDB, workspacesDB healthfeature.Pinger, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestlog.Middleware(logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, logger, apperr.New(apperr.NotFound, "Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, logger, apperr.New(apperr.InvalidRequest, "Method not allowed").WithStatus(http.StatusMethodNotAllowed))
	})

	healthH := healthfeature.NewHandler(usersDB, workspacesDB, logger)
	r.Mount("/health", healthfeature.Routes(healthH))

	loginH := loginfeature.NewHandler(svc.accounts, sessionMgr, svc.loginLimiter, svc.logins, logger)
	logoutH := logoutfeature.NewHandler(sessionMgr, logger)
	usersH := usersfeature.NewHandler(svc.accounts, svc.logins, logger)
	workspacesH := workspacesfeature.NewHandler(svc.membership, logger)

	api := chi.Router(r)
	if p := normalizePrefix(prefix); p != "" {
		api = chi.NewRouter()
		r.Mount(p, api)
	}
	api.Mount("/auth/logout", logoutfeature.Routes(logoutH))
	api.Mount("/auth", loginfeature.Routes(loginH))
	api.Mount("/users", usersfeature.Routes(usersH, sessionMgr))
	api.Mount("/workspaces", workspacesfeature.Routes(workspacesH, sessionMgr))

	return r
}
