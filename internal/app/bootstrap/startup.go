// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	userstore "github.com/dalemusser/leadhub/internal/app/store/users"
	"github.com/dalemusser/leadhub/internal/app/system/authz"
	"github.com/dalemusser/leadhub/internal/app/system/workers"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// sweeper holds the background consistency worker between Startup and
// Shutdown.
var sweeper *workers.ConsistencySweep

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. LeadHub
// uses it to make sure a fresh deployment has an admin to sign in with, and
// to start the background consistency sweep.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.SweepInterval > 0 {
		eng := assign.New(deps.LeadHubMongoClient, deps.LeadHubMongoDatabase, logger)
		sweeper = workers.NewConsistencySweep(eng, logger, appCfg.SweepInterval)
		sweeper.Start()
	}

	if appCfg.AdminEmail == "" {
		return nil
	}
	return seedAdmin(ctx, deps, appCfg, logger)
}

// seedAdmin creates the bootstrap admin account if no user holds the
// configured email yet. An existing account is left untouched, whatever its
// role, so a demoted admin cannot be silently re-promoted by a restart.
func seedAdmin(ctx context.Context, deps DBDeps, appCfg AppConfig, logger *zap.Logger) error {
	users := userstore.New(deps.LeadHubMongoDatabase)

	_, err := users.GetByEmail(ctx, appCfg.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return err
	}

	admin := models.User{
		FullName: "Administrator",
		Email:    appCfg.AdminEmail,
		Role:     authz.RoleAdmin,
		IsActive: true,
		Status:   models.UserStatusApproved,
	}
	if _, err := users.Create(ctx, admin, appCfg.AdminPassword); err != nil {
		return err
	}
	logger.Info("created bootstrap admin user", zap.String("email", appCfg.AdminEmail))
	return nil
}
