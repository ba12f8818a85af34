// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	agentsfeature "github.com/dalemusser/leadhub/internal/app/features/agents"
	brokersfeature "github.com/dalemusser/leadhub/internal/app/features/brokers"
	consistencyfeature "github.com/dalemusser/leadhub/internal/app/features/consistency"
	healthfeature "github.com/dalemusser/leadhub/internal/app/features/health"
	leadsfeature "github.com/dalemusser/leadhub/internal/app/features/leads"
	loginfeature "github.com/dalemusser/leadhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/leadhub/internal/app/features/logout"
	ordersfeature "github.com/dalemusser/leadhub/internal/app/features/orders"
	usersfeature "github.com/dalemusser/leadhub/internal/app/features/users"
	"github.com/dalemusser/leadhub/internal/app/store/audit"
	orderstore "github.com/dalemusser/leadhub/internal/app/store/orders"
	userstore "github.com/dalemusser/leadhub/internal/app/store/users"
	"github.com/dalemusser/leadhub/internal/app/system/auditlog"
	"github.com/dalemusser/leadhub/internal/app/system/auth"
	"github.com/dalemusser/leadhub/internal/app/system/authz"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the full HTTP router: session middleware, the
// unauthenticated endpoints (health, login), and the authenticated API.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	db := deps.LeadHubMongoDatabase
	users := userstore.New(db)
	eng := assign.New(deps.LeadHubMongoClient, db, logger)
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:       appCfg.AuditAuth,
		Assignment: appCfg.AuditAssignment,
		Admin:      appCfg.AuditAdmin,
	})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Loads SessionUser into context when the cookie is present, so
	// auth.CurrentUser(r) works everywhere below.
	r.Use(sessionMgr.LoadSessionUser)

	healthHandler := healthfeature.NewHandler(deps.LeadHubMongoClient, appCfg.BaseURL, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Mount("/login", loginfeature.Routes(loginfeature.NewHandler(users, sessionMgr, auditLog, logger)))
	r.Mount("/logout", logoutfeature.Routes(logoutfeature.NewHandler(sessionMgr, auditLog, logger)))

	// Authenticated API.
	r.Group(func(api chi.Router) {
		api.Use(sessionMgr.RequireSignedIn)

		api.Mount("/leads", leadsfeature.Routes(leadsfeature.NewHandler(eng, users, auditLog, logger)))

		manageBrokers := sessionMgr.RequireRole(authz.RoleAdmin, authz.RoleAffiliateManager)
		api.Mount("/brokers", brokersfeature.Routes(brokersfeature.NewHandler(eng, auditLog, logger), manageBrokers))

		api.Mount("/agents", agentsfeature.Routes(agentsfeature.NewHandler(users, eng.Leads(), logger)))
		api.Mount("/orders", ordersfeature.Routes(ordersfeature.NewHandler(orderstore.New(db), logger)))

		api.Group(func(admin chi.Router) {
			admin.Use(sessionMgr.RequireRole(authz.RoleAdmin))
			admin.Mount("/consistency", consistencyfeature.Routes(consistencyfeature.NewHandler(eng, auditLog, logger)))
			admin.Mount("/users", usersfeature.Routes(usersfeature.NewHandler(users, auditLog, logger)))
		})
	})

	return r, nil
}
