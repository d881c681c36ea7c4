package bot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mrcrazy10100/movie-bot/internal/rbac"
)

// RoleResolver maps a user id to a role, provisioning unknown users.
type RoleResolver struct {
	catalog Catalog
	adminID int64
	logger  *zap.Logger
}

// NewRoleResolver returns a resolver that provisions bootstrapAdminID as
// admin on first contact. A zero id disables the bootstrap.
func NewRoleResolver(catalog Catalog, bootstrapAdminID int64, logger *zap.Logger) *RoleResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleResolver{catalog: catalog, adminID: bootstrapAdminID, logger: logger}
}

// Resolve returns the caller's role. The username is recorded on first
// contact and refreshed when it changes.
func (r *RoleResolver) Resolve(ctx context.Context, userID int64, username string) (rbac.Role, error) {
	defaultRole := rbac.RoleUser
	if r.adminID != 0 && userID == r.adminID {
		defaultRole = rbac.RoleAdmin
	}
	user, err := r.catalog.EnsureUser(ctx, userID, username, string(defaultRole))
	if err != nil {
		return "", storageError("resolve role", err)
	}
	return rbac.Normalize(user.Role), nil
}

// Seed forces the bootstrap identity to admin, dropping any agent grant it had.
func (r *RoleResolver) Seed(ctx context.Context) error {
	if r.adminID == 0 {
		return errors.New("bootstrap admin id is not configured")
	}
	if _, err := r.catalog.EnsureUser(ctx, r.adminID, "", string(rbac.RoleAdmin)); err != nil {
		return storageError("seed admin", err)
	}
	if _, err := r.catalog.RevokeAgent(ctx, r.adminID); err != nil {
		return storageError("seed admin", err)
	}
	if err := r.catalog.SetRole(ctx, r.adminID, string(rbac.RoleAdmin)); err != nil {
		return storageError("seed admin", err)
	}
	r.logger.Info("bootstrap admin seeded", zap.Int64("user_id", r.adminID))
	return nil
}
